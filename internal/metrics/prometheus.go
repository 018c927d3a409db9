package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// States exported by the state gauge.
var states = []string{"IDLE", "CAPTURING", "PRINTING", "ERROR"}

// PrometheusRecorder implements Recorder using Prometheus metrics
type PrometheusRecorder struct {
	captureTotal      *prometheus.CounterVec
	captureDuration   *prometheus.HistogramVec
	transformTotal    *prometheus.CounterVec
	transformDuration prometheus.Histogram
	exportTotal       *prometheus.CounterVec
	exportDuration    *prometheus.HistogramVec
	droppedCaptures   prometheus.Counter
	state             *prometheus.GaugeVec
}

// NewPrometheusRecorder creates a PrometheusRecorder and registers its
// metrics with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		captureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sofort_capture_total",
				Help: "Total number of capture attempts",
			},
			[]string{"source", "success"},
		),
		captureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sofort_capture_duration_seconds",
				Help:    "Duration of capture pipeline runs in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source", "success"},
		),
		transformTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sofort_transform_total",
				Help: "Total number of image transform calls",
			},
			[]string{"success"},
		),
		transformDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sofort_transform_duration_seconds",
				Help:    "Duration of image transform calls in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
		),
		exportTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sofort_export_total",
				Help: "Total number of share/download exports",
			},
			[]string{"mode", "success"},
		),
		exportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sofort_export_duration_seconds",
				Help:    "Duration of print packaging in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		droppedCaptures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sofort_capture_dropped_total",
				Help: "Capture requests ignored because the camera was busy",
			},
		),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sofort_controller_state",
				Help: "1 for the current controller state, 0 otherwise",
			},
			[]string{"state"},
		),
	}

	reg.MustRegister(
		r.captureTotal,
		r.captureDuration,
		r.transformTotal,
		r.transformDuration,
		r.exportTotal,
		r.exportDuration,
		r.droppedCaptures,
		r.state,
	)
	r.SetState("IDLE")
	return r
}

// RecordCapture records a finished capture attempt
func (r *PrometheusRecorder) RecordCapture(source string, success bool, duration time.Duration) {
	ok := strconv.FormatBool(success)
	r.captureTotal.WithLabelValues(source, ok).Inc()
	r.captureDuration.WithLabelValues(source, ok).Observe(duration.Seconds())
}

// RecordTransform records a transform service call
func (r *PrometheusRecorder) RecordTransform(success bool, duration time.Duration) {
	r.transformTotal.WithLabelValues(strconv.FormatBool(success)).Inc()
	r.transformDuration.Observe(duration.Seconds())
}

// RecordExport records a print export
func (r *PrometheusRecorder) RecordExport(mode string, success bool, duration time.Duration) {
	r.exportTotal.WithLabelValues(mode, strconv.FormatBool(success)).Inc()
	r.exportDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordDroppedCapture counts a capture request dropped by the busy guard
func (r *PrometheusRecorder) RecordDroppedCapture() {
	r.droppedCaptures.Inc()
}

// SetState sets the state gauge so exactly one state reads 1
func (r *PrometheusRecorder) SetState(state string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		r.state.WithLabelValues(s).Set(v)
	}
}
