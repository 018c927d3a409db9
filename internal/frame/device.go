package frame

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/yangwenmai/sofort/internal/model"
)

// maxSnapshotSize caps a single camera snapshot response (32MB).
const maxSnapshotSize = 32 << 20

// CameraSpec describes one network camera that serves still snapshots over HTTP.
type CameraSpec struct {
	Name   string
	URL    string
	Facing Facing
	Width  int
	Height int
}

func (c CameraSpec) satisfies(con Constraints) bool {
	if con.Facing != "" && c.Facing != con.Facing {
		return false
	}
	if con.IdealWidth > 0 && c.Width < con.IdealWidth {
		return false
	}
	if con.IdealHeight > 0 && c.Height < con.IdealHeight {
		return false
	}
	return true
}

// NoDevice stands in when no camera is configured. Open always fails with
// model.ErrCameraUnavailable.
type NoDevice struct{}

func (NoDevice) Open(context.Context, Constraints) (Stream, error) {
	return nil, fmt.Errorf("%w: no camera configured", model.ErrCameraUnavailable)
}

// SnapshotDevice opens streams on HTTP snapshot cameras (IP cameras,
// phone webcam apps). Each Frame call fetches a fresh JPEG or PNG.
type SnapshotDevice struct {
	cameras    []CameraSpec
	httpClient *http.Client
}

// SnapshotOption configures a SnapshotDevice.
type SnapshotOption func(*SnapshotDevice)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) SnapshotOption {
	return func(d *SnapshotDevice) { d.httpClient = c }
}

// NewSnapshotDevice creates a device over the given cameras, tried in order.
func NewSnapshotDevice(cameras []CameraSpec, opts ...SnapshotOption) *SnapshotDevice {
	d := &SnapshotDevice{
		cameras: cameras,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Open returns a stream on the first camera that satisfies c and answers a
// test snapshot.
func (d *SnapshotDevice) Open(ctx context.Context, c Constraints) (Stream, error) {
	var lastErr error
	for _, cam := range d.cameras {
		if !cam.satisfies(c) {
			continue
		}
		s := &snapshotStream{spec: cam, client: d.httpClient}
		if _, err := s.Frame(ctx); err != nil {
			lastErr = fmt.Errorf("open %s: %w", cam.Name, err)
			continue
		}
		return s, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("no camera satisfies constraints")
}

type snapshotStream struct {
	spec    CameraSpec
	client  *http.Client
	stopped atomic.Bool
}

func (s *snapshotStream) Facing() Facing { return s.spec.Facing }

func (s *snapshotStream) Frame(ctx context.Context) (image.Image, error) {
	if s.stopped.Load() {
		return nil, errStreamStopped
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.spec.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "image/jpeg, image/png;q=0.9, */*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch snapshot: %v", model.ErrCameraUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", model.ErrCameraUnavailable, resp.StatusCode, s.spec.Name)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", model.ErrCameraUnavailable, err)
	}
	if err := checkPixels(body); err != nil {
		return nil, fmt.Errorf("snapshot from %s: %w", s.spec.Name, err)
	}
	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", model.ErrDecode, err)
	}
	return img, nil
}

func (s *snapshotStream) Stop() error {
	s.stopped.Store(true)
	s.client.CloseIdleConnections()
	return nil
}
