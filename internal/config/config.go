// Package config provides centralized configuration for the sofort server.
// All configurable values are loaded from environment variables with sensible
// defaults. Cameras and label rules may additionally come from a YAML file.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yangwenmai/sofort/internal/model"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// TransformProvider selects the image service: "gemini" or "openai".
	TransformProvider string

	// GeminiKey is the API key for the Google Gemini service.
	GeminiKey string

	// GeminiModel is the image-capable Gemini model.
	GeminiModel string

	// GeminiBaseURL is the Generative Language API endpoint.
	GeminiBaseURL string

	// OpenAIKey is the API key for the OpenAI service.
	OpenAIKey string

	// OpenAIBaseURL is the base URL for OpenAI-compatible image APIs.
	OpenAIBaseURL string

	// OpenAIImageModel is the model used for image edits.
	OpenAIImageModel string

	// HTTPTimeout is the timeout for outgoing HTTP requests (cameras, image APIs).
	HTTPTimeout time.Duration

	// TransformTimeout bounds one transform call. Zero leaves it unbounded.
	TransformTimeout time.Duration

	// ShutterDelay is how long CAPTURING is held before reading the frame.
	ShutterDelay time.Duration

	// OutputSize is the edge length of artifacts in pixels.
	OutputSize int

	// ExportWidth and ExportHeight size the share print.
	ExportWidth  int
	ExportHeight int

	// SharePrefix prefixes exported file names.
	SharePrefix string

	// NoticeTTL is how long user-visible notices stay up.
	NoticeTTL time.Duration

	// ErrorHold is how long the ERROR state is shown before reverting.
	ErrorHold time.Duration

	// DefaultFacing is the camera opened at startup: "user" or "environment".
	DefaultFacing string

	// MaxUploadBytes caps gallery imports.
	MaxUploadBytes int64

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// ForceStubs selects the stub camera and transformer (USE_STUBS=true).
	ForceStubs bool

	Features model.Features

	// File holds what was read from SOFORT_CONFIG, if set.
	File FileConfig
}

// FileConfig is the optional YAML configuration file.
type FileConfig struct {
	Cameras []CameraConfig    `yaml:"cameras"`
	Labels  []model.LabelRule `yaml:"labels"`
}

// CameraConfig declares one snapshot camera.
type CameraConfig struct {
	Name   string `yaml:"name"`
	URL    string `yaml:"url"`
	Facing string `yaml:"facing"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Load reads configuration from .env.local (if present) and environment
// variables, applying defaults. Real environment variables take precedence
// over values in .env.local. It fails only when SOFORT_CONFIG names a file
// that cannot be read or parsed.
func Load() (Config, error) {
	loadEnvFile(".env.local")

	cfg := Config{
		Port:              envOr("PORT", "8080"),
		LogLevel:          envOr("LOG_LEVEL", "info"),
		TransformProvider: envOr("TRANSFORM_PROVIDER", "gemini"),
		GeminiKey:         envOr("GEMINI_API_KEY", os.Getenv("API_KEY")),
		GeminiModel:       envOr("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:     envOr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIImageModel:  envOr("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		HTTPTimeout:       envDuration("HTTP_TIMEOUT", 60*time.Second),
		TransformTimeout:  envDuration("TRANSFORM_TIMEOUT", 0),
		ShutterDelay:      envDuration("SHUTTER_DELAY", 200*time.Millisecond),
		OutputSize:        envInt("OUTPUT_SIZE", 1000),
		ExportWidth:       envInt("EXPORT_WIDTH", 1080),
		ExportHeight:      envInt("EXPORT_HEIGHT", 1350),
		SharePrefix:       envOr("SHARE_PREFIX", "sofort"),
		NoticeTTL:         envDuration("NOTICE_TTL", 4*time.Second),
		ErrorHold:         envDuration("ERROR_HOLD", 1500*time.Millisecond),
		DefaultFacing:     envOr("DEFAULT_FACING", "user"),
		MaxUploadBytes:    int64(envInt("MAX_UPLOAD_BYTES", 20<<20)),
		CORSOrigin:        envOr("CORS_ORIGIN", "*"),
		ForceStubs:        envBool("USE_STUBS", false),
		Features: model.Features{
			EnableAIPrompt:      envBool("ENABLE_AI_PROMPT", true),
			EnableLocalFilters:  envBool("ENABLE_LOCAL_FILTERS", true),
			EnableCaptionInput:  envBool("ENABLE_CAPTION_INPUT", true),
			EnableGalleryImport: envBool("ENABLE_GALLERY_IMPORT", true),
			EnableShare:         envBool("ENABLE_SHARE", true),
		},
	}

	if path := os.Getenv("SOFORT_CONFIG"); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return cfg, err
		}
		cfg.File = fc
	}
	return cfg, nil
}

// LoadFile parses the YAML configuration file at path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	for i, cam := range fc.Cameras {
		if cam.URL == "" {
			return fc, fmt.Errorf("config file %s: camera %d has no url", path, i)
		}
	}
	for i, r := range fc.Labels {
		if r.Label == "" || len(r.Keywords) == 0 {
			return fc, fmt.Errorf("config file %s: label rule %d needs keywords and a label", path, i)
		}
	}
	return fc, nil
}

// UseStubs reports whether the stub camera and transformer were requested
// with USE_STUBS. Stubs are never selected implicitly.
func (c Config) UseStubs() bool {
	return c.ForceStubs
}

// HasAPIKey reports whether the selected transform provider has a key.
func (c Config) HasAPIKey() bool {
	switch c.TransformProvider {
	case "openai":
		return c.OpenAIKey != ""
	default:
		return c.GeminiKey != ""
	}
}

// loadEnvFile reads KEY=VALUE lines from path and sets them in the process
// environment. Lines starting with # are comments. Values may be quoted.
// Existing environment variables are not overwritten.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
