package frame

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/yangwenmai/sofort/internal/model"
)

// Lens owns the live camera stream shown in the preview. It releases the
// stream when the facing mode changes and on Close.
type Lens struct {
	dev    Device
	idealW int
	idealH int

	mu     sync.Mutex
	stream Stream
	facing Facing
	closed bool
}

// NewLens creates a lens over dev. No stream is opened until Open or the
// first Frame call.
func NewLens(dev Device, facing Facing, idealW, idealH int) *Lens {
	return &Lens{dev: dev, facing: facing, idealW: idealW, idealH: idealH}
}

// Open acquires a stream for facing, releasing any stream already held.
func (l *Lens) Open(ctx context.Context, facing Facing) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("%w: lens closed", model.ErrCameraUnavailable)
	}
	l.releaseLocked()
	l.facing = facing

	s, err := AcquireLive(ctx, l.dev, facing, l.idealW, l.idealH)
	if err != nil {
		return err
	}
	l.stream = s
	return nil
}

// SetFacing switches cameras. The old stream is stopped before the new one
// is requested.
func (l *Lens) SetFacing(ctx context.Context, facing Facing) error {
	return l.Open(ctx, facing)
}

// Facing returns the facing mode of the open stream, or the requested mode
// when no stream is open.
func (l *Lens) Facing() Facing {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stream != nil {
		return l.stream.Facing()
	}
	return l.facing
}

// Frame reads one still from the live stream, opening it first if needed.
// The returned facing is the one of the stream that produced the frame.
func (l *Lens) Frame(ctx context.Context) (image.Image, Facing, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, "", fmt.Errorf("%w: lens closed", model.ErrCameraUnavailable)
	}
	if l.stream == nil {
		s, err := AcquireLive(ctx, l.dev, l.facing, l.idealW, l.idealH)
		if err != nil {
			l.mu.Unlock()
			return nil, "", err
		}
		l.stream = s
	}
	s := l.stream
	l.mu.Unlock()

	img, err := s.Frame(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrCameraUnavailable) {
			err = fmt.Errorf("%w: %v", model.ErrCameraUnavailable, err)
		}
		return nil, "", err
	}
	return img, s.Facing(), nil
}

// Close stops the stream. It is safe to call more than once.
func (l *Lens) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return l.releaseLocked()
}

func (l *Lens) releaseLocked() error {
	if l.stream == nil {
		return nil
	}
	err := l.stream.Stop()
	if err != nil {
		slog.Warn("camera stream stop failed", "error", err)
	}
	l.stream = nil
	return err
}
