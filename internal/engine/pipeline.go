package engine

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"

	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/model"
)

// Pipeline step names
const (
	StepAcquire   = "acquire"
	StepDecode    = "decode"
	StepCrop      = "crop"
	StepTransform = "transform"
)

// StepError wraps an error with the step name that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return e.Step + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// StepName returns the failed step.
func (e *StepError) StepName() string {
	return e.Step
}

// LiveSource yields stills from the live camera together with the facing
// mode of the stream that produced them.
type LiveSource interface {
	Frame(ctx context.Context) (image.Image, frame.Facing, error)
}

// captureSession tracks one pipeline run. It lives for a single Capture,
// ImportFromGallery or Restyle call.
type captureSession struct {
	kind        model.SourceKind
	instruction string
	filter      string
	started     time.Time
}

// acquireLive reads and normalizes a live frame. Front camera frames are
// mirrored.
func (c *Controller) acquireLive(ctx context.Context, filter frame.Filter) (*frame.Still, error) {
	img, facing, err := c.live.Frame(ctx)
	if err != nil {
		return nil, &StepError{Step: StepAcquire, Err: err}
	}
	still, err := c.cropper.Normalize(img, frame.Options{Mirror: facing == frame.FacingUser, Filter: filter})
	if err != nil {
		return nil, &StepError{Step: StepCrop, Err: err}
	}
	return still, nil
}

// acquireImport decodes and normalizes an imported file. Imports are never
// mirrored.
func (c *Controller) acquireImport(data []byte, filter frame.Filter) (*frame.Still, error) {
	img, err := frame.DecodeStaticImage(data)
	if err != nil {
		return nil, &StepError{Step: StepDecode, Err: err}
	}
	still, err := c.cropper.Normalize(img, frame.Options{Filter: filter})
	if err != nil {
		return nil, &StepError{Step: StepCrop, Err: err}
	}
	return still, nil
}

// transform calls the image service once. Every failure mode (error, empty
// answer, undecodable image, panic) reports ok=false so the caller prints
// the original.
func (c *Controller) transform(ctx context.Context, still *frame.Still, instruction string) (png []byte, ok bool) {
	start := c.now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("transform panicked", "panic", fmt.Sprint(r))
			png, ok = nil, false
		}
		c.metrics.RecordTransform(ok, c.now().Sub(start))
	}()

	if c.opts.TransformTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.TransformTimeout)
		defer cancel()
	}

	res, err := c.transformer.Transform(ctx, model.Image{Data: still.PNG, MimeType: "image/png"}, instruction)
	if err != nil {
		slog.Warn("transform failed, printing original", "error", &StepError{Step: StepTransform, Err: err})
		return nil, false
	}
	if res == nil || len(res.Data) == 0 {
		slog.Warn("transform returned no image, printing original")
		return nil, false
	}

	// Services answer at their own resolution; bring the result back to
	// the fixed square output.
	img, err := imaging.Decode(bytes.NewReader(res.Data))
	if err != nil {
		slog.Warn("transform result undecodable, printing original", "error", err)
		return nil, false
	}
	out, err := c.cropper.Normalize(img, frame.Options{})
	if err != nil {
		slog.Warn("transform result unusable, printing original", "error", err)
		return nil, false
	}
	return out.PNG, true
}
