package model

import (
	"errors"
	"time"
)

// Pipeline error kinds. Callers match them with errors.Is.
var (
	ErrCameraUnavailable    = errors.New("camera unavailable")
	ErrFrameNotReady        = errors.New("frame not ready")
	ErrDecode               = errors.New("image decode failed")
	ErrTransformUnavailable = errors.New("transformation unavailable")
	ErrShareExport          = errors.New("share export failed")

	ErrBusy            = errors.New("camera busy")
	ErrNoArtifact      = errors.New("no current artifact")
	ErrFeatureDisabled = errors.New("feature disabled")
)

// Notice levels
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Notice is a transient user-facing message that dismisses itself after ExpiresAt.
type Notice struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Active reports whether the notice is still visible at now.
func (n Notice) Active(now time.Time) bool {
	return now.Before(n.ExpiresAt)
}
