// Package frame turns camera streams and imported files into normalized
// square stills.
package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/yangwenmai/sofort/internal/model"
)

// Facing selects the front ("user") or back ("environment") camera.
type Facing string

// Facing constants
const (
	FacingUser        Facing = "user"
	FacingEnvironment Facing = "environment"
)

// ParseFacing validates a facing mode string.
func ParseFacing(s string) (Facing, error) {
	switch Facing(s) {
	case FacingUser, FacingEnvironment:
		return Facing(s), nil
	default:
		return "", fmt.Errorf("unknown facing mode %q", s)
	}
}

// Constraints narrows which camera a Device may open. Zero values mean "any".
type Constraints struct {
	Facing      Facing
	IdealWidth  int
	IdealHeight int
}

func (c Constraints) String() string {
	if c == (Constraints{}) {
		return "any camera"
	}
	s := "facing=" + string(c.Facing)
	if c.IdealWidth > 0 || c.IdealHeight > 0 {
		s += fmt.Sprintf(" ideal=%dx%d", c.IdealWidth, c.IdealHeight)
	}
	return s
}

// Device opens live camera streams.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open camera. The owner must call Stop when done with it.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Facing() Facing
	Stop() error
}

var errStreamStopped = errors.New("stream stopped")

// ConstraintFallbacks returns the constraint sets tried, in order, when
// acquiring a live stream: preferred facing with ideal resolution, preferred
// facing only, then any camera.
func ConstraintFallbacks(preferred Facing, idealW, idealH int) []Constraints {
	out := make([]Constraints, 0, 3)
	if idealW > 0 || idealH > 0 {
		out = append(out, Constraints{Facing: preferred, IdealWidth: idealW, IdealHeight: idealH})
	}
	out = append(out, Constraints{Facing: preferred}, Constraints{})
	return out
}

// AcquireLive opens the first stream dev accepts, walking the constraint
// fallbacks in order. It fails with model.ErrCameraUnavailable when every
// attempt is rejected.
func AcquireLive(ctx context.Context, dev Device, preferred Facing, idealW, idealH int) (Stream, error) {
	if dev == nil {
		return nil, fmt.Errorf("%w: no camera device configured", model.ErrCameraUnavailable)
	}
	var lastErr error
	for _, c := range ConstraintFallbacks(preferred, idealW, idealH) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := dev.Open(ctx, c)
		if err == nil {
			slog.Info("camera stream acquired", "constraints", c.String(), "facing", s.Facing())
			return s, nil
		}
		slog.Warn("camera constraint rejected", "constraints", c.String(), "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", model.ErrCameraUnavailable, lastErr)
}
