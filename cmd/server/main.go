package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yangwenmai/sofort/internal/api"
	"github.com/yangwenmai/sofort/internal/config"
	"github.com/yangwenmai/sofort/internal/engine"
	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/metrics"
	"github.com/yangwenmai/sofort/internal/share"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))

	facing, err := frame.ParseFacing(cfg.DefaultFacing)
	if err != nil {
		return fmt.Errorf("DEFAULT_FACING: %w", err)
	}

	// Camera.
	dev, err := newDevice(cfg)
	if err != nil {
		return err
	}
	lens := frame.NewLens(dev, facing, cfg.OutputSize, cfg.OutputSize)
	defer lens.Close()

	// Image transform service.
	transformer := newTransformer(cfg)

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewPrometheusRecorder(reg)

	opts := engine.Options{
		Features:         cfg.Features,
		OutputSize:       cfg.OutputSize,
		ShutterDelay:     cfg.ShutterDelay,
		TransformTimeout: cfg.TransformTimeout,
		NoticeTTL:        cfg.NoticeTTL,
		ErrorHold:        cfg.ErrorHold,
		LabelRules:       cfg.File.Labels,
	}
	ctrl := engine.NewController(lens, transformer, opts, engine.WithMetrics(rec))

	composer, err := share.NewComposer(cfg.ExportWidth, cfg.ExportHeight, cfg.SharePrefix)
	if err != nil {
		return err
	}

	srv := api.New(ctrl, composer, lens,
		api.WithMetrics(rec),
		api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		api.WithCORSOrigin(cfg.CORSOrigin),
		api.WithMaxUpload(cfg.MaxUploadBytes),
	)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Warm up the camera so the first preview is fast. Failure is not fatal;
	// the lens retries on the next frame request.
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	if err := lens.Open(warmCtx, facing); err != nil {
		slog.Warn("camera not ready", "error", err)
	}
	cancelWarm()

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	slog.Info("sofort server listening", "addr", "http://localhost:"+cfg.Port, "features", cfg.Features)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// newDevice picks the camera. Stubs are used only when USE_STUBS=true; with
// no cameras configured every capture reports the camera as unavailable.
func newDevice(cfg config.Config) (frame.Device, error) {
	if cfg.UseStubs() {
		slog.Info("USE_STUBS set, using test pattern camera")
		return frame.NewStubDevice(), nil
	}
	if len(cfg.File.Cameras) == 0 {
		slog.Warn("no cameras configured, captures will report the camera as unavailable")
		return frame.NoDevice{}, nil
	}
	specs, err := cameraSpecs(cfg.File.Cameras)
	if err != nil {
		return nil, err
	}
	slog.Info("using snapshot cameras", "count", len(specs))
	return frame.NewSnapshotDevice(specs, frame.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})), nil
}

// newTransformer picks the image service. A provider without a key is
// reported as unavailable so instructions print the original with a warning.
func newTransformer(cfg config.Config) engine.ImageTransformer {
	if cfg.UseStubs() {
		slog.Info("USE_STUBS set, using local stub transformer")
		return engine.StubTransformer{}
	}
	if !cfg.HasAPIKey() {
		slog.Warn("no image API key configured, instructions will print the original", "provider", cfg.TransformProvider)
		return engine.UnavailableTransformer{Provider: cfg.TransformProvider}
	}
	switch cfg.TransformProvider {
	case "openai":
		slog.Info("using OpenAI image client", "model", cfg.OpenAIImageModel)
		return engine.NewOpenAIClient(cfg.OpenAIKey,
			engine.WithModel(cfg.OpenAIImageModel),
			engine.WithBaseURL(cfg.OpenAIBaseURL),
			engine.WithTimeout(cfg.HTTPTimeout),
		)
	case "gemini":
		slog.Info("using Gemini image client", "model", cfg.GeminiModel)
		return engine.NewGeminiClient(cfg.GeminiKey,
			engine.WithGeminiModel(cfg.GeminiModel),
			engine.WithGeminiBaseURL(cfg.GeminiBaseURL),
			engine.WithGeminiTimeout(cfg.HTTPTimeout),
		)
	default:
		slog.Warn("unknown transform provider, instructions will print the original", "provider", cfg.TransformProvider)
		return engine.UnavailableTransformer{Provider: cfg.TransformProvider}
	}
}

func cameraSpecs(cams []config.CameraConfig) ([]frame.CameraSpec, error) {
	specs := make([]frame.CameraSpec, 0, len(cams))
	for _, c := range cams {
		spec := frame.CameraSpec{Name: c.Name, URL: c.URL, Width: c.Width, Height: c.Height}
		if c.Facing != "" {
			f, err := frame.ParseFacing(c.Facing)
			if err != nil {
				return nil, fmt.Errorf("camera %q: %w", c.Name, err)
			}
			spec.Facing = f
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
