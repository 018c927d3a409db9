package engine

import (
	"context"
	"fmt"

	"github.com/yangwenmai/sofort/internal/model"
)

// ImageTransformer edits an image according to a free-form instruction.
// Implementations make a single attempt and never retry. A nil image with a
// nil error means the service answered without an image.
type ImageTransformer interface {
	Transform(ctx context.Context, img model.Image, instruction string) (*model.Image, error)
}

// ErrNoCredentials is returned by clients constructed without an API key.
var ErrNoCredentials = fmt.Errorf("%w: no API key configured", model.ErrTransformUnavailable)
