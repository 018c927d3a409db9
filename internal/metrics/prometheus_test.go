package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_RecordCapture(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	recorder.RecordCapture("LIVE_CAPTURE", true, 300*time.Millisecond)
	recorder.RecordCapture("LIVE_CAPTURE", true, 200*time.Millisecond)
	recorder.RecordCapture("GALLERY_IMPORT", false, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.captureTotal.WithLabelValues("LIVE_CAPTURE", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.captureTotal.WithLabelValues("GALLERY_IMPORT", "false")))
	assert.Equal(t, 2, testutil.CollectAndCount(recorder.captureDuration))
}

func TestPrometheusRecorder_RecordTransform(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	recorder.RecordTransform(false, time.Second)
	recorder.RecordTransform(true, 2*time.Second)
	recorder.RecordTransform(true, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.transformTotal.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.transformTotal.WithLabelValues("false")))
}

func TestPrometheusRecorder_RecordExport(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	recorder.RecordExport("share", true, 50*time.Millisecond)
	recorder.RecordExport("download", true, 50*time.Millisecond)
	recorder.RecordExport("download", false, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.exportTotal.WithLabelValues("share", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.exportTotal.WithLabelValues("download", "false")))
}

func TestPrometheusRecorder_DroppedAndState(t *testing.T) {
	registry := prometheus.NewRegistry()
	recorder := NewPrometheusRecorder(registry)

	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.state.WithLabelValues("IDLE")))

	recorder.RecordDroppedCapture()
	recorder.RecordDroppedCapture()
	assert.Equal(t, 2.0, testutil.ToFloat64(recorder.droppedCaptures))

	recorder.SetState("PRINTING")
	assert.Equal(t, 0.0, testutil.ToFloat64(recorder.state.WithLabelValues("IDLE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.state.WithLabelValues("PRINTING")))
}

func TestNewPrometheusRecorder_RegistersAll(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewPrometheusRecorder(registry)

	families, err := registry.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{"sofort_controller_state", "sofort_transform_duration_seconds", "sofort_capture_dropped_total"} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordCapture("LIVE_CAPTURE", true, time.Second)
	r.RecordTransform(true, time.Second)
	r.RecordExport("share", true, time.Second)
	r.RecordDroppedCapture()
	r.SetState("IDLE")
}
