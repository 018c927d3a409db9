// Package api exposes the capture controller over HTTP and pushes controller
// events to websocket clients.
package api

import (
	"context"
	"encoding/json"
	"image"
	"net/http"

	"github.com/yangwenmai/sofort/internal/engine"
	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/metrics"
	"github.com/yangwenmai/sofort/internal/share"
)

// maxRequestBody is the maximum allowed size of JSON request bodies (1 MB).
const maxRequestBody int64 = 1 << 20

// defaultMaxUpload caps gallery imports unless overridden (20 MB).
const defaultMaxUpload int64 = 20 << 20

// Camera is the live camera behind the preview and captures.
type Camera interface {
	Frame(ctx context.Context) (image.Image, frame.Facing, error)
	SetFacing(ctx context.Context, facing frame.Facing) error
	Facing() frame.Facing
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	ctrl     *engine.Controller
	composer *share.Composer
	camera   Camera
	hub      *WSHub
	metrics  metrics.Recorder

	metricsHandler http.Handler
	corsOrigin     string
	maxUpload      int64

	mux *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records export metrics on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Server) { s.metrics = r }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithCORSOrigin sets the allowed CORS origin (default "*").
func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithMaxUpload caps the size of gallery imports.
func WithMaxUpload(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// New creates a new API server.
func New(ctrl *engine.Controller, composer *share.Composer, camera Camera, opts ...Option) *Server {
	srv := &Server{
		ctrl:       ctrl,
		composer:   composer,
		camera:     camera,
		metrics:    metrics.Nop{},
		corsOrigin: "*",
		maxUpload:  defaultMaxUpload,
		mux:        http.NewServeMux(),
	}
	for _, o := range opts {
		o(srv)
	}
	srv.hub = NewWSHub(ctrl.Events(), srv.corsOrigin)
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.corsOrigin, s.limitBody(jsonContent(s.mux)))
}

// Close disconnects all websocket clients.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("POST /api/capture", s.handleCapture)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("POST /api/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/restyle", s.handleRestyle)
	s.mux.HandleFunc("PUT /api/settings", s.handleSettings)
	s.mux.HandleFunc("GET /api/artifact", s.handleArtifact)
	s.mux.HandleFunc("GET /api/artifact/image", s.handleArtifactImage)
	s.mux.HandleFunc("GET /api/artifact/export", s.handleExport)
	s.mux.HandleFunc("GET /api/preview", s.handlePreview)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
	if s.metricsHandler != nil {
		s.mux.Handle("GET /metrics", s.metricsHandler)
	}
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// corsMiddleware sets CORS headers for origin.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts request bodies to maxRequestBody bytes, or to the
// upload limit for gallery imports.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := maxRequestBody
		if r.URL.Path == "/api/import" {
			limit = s.maxUpload
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
