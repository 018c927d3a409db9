package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/metrics"
	"github.com/yangwenmai/sofort/internal/model"
)

// Options configures a Controller.
type Options struct {
	Features model.Features

	// OutputSize is the edge length of artifacts in pixels.
	OutputSize int

	// ShutterDelay holds CAPTURING before the frame is read.
	ShutterDelay time.Duration

	// TransformTimeout bounds the image service call. Zero means unbounded.
	TransformTimeout time.Duration

	// NoticeTTL is how long notices stay visible.
	NoticeTTL time.Duration

	// ErrorHold is how long ERROR is shown before reverting to IDLE.
	// Zero reverts immediately.
	ErrorHold time.Duration

	// LabelRules classifies instructions; nil uses model.DefaultLabelRules.
	LabelRules []model.LabelRule
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Features:     model.AllFeatures(),
		OutputSize:   frame.DefaultOutputSize,
		ShutterDelay: 200 * time.Millisecond,
		NoticeTTL:    4 * time.Second,
		ErrorHold:    1500 * time.Millisecond,
	}
}

// ControllerOption overrides a collaborator of the controller.
type ControllerOption func(*Controller)

// WithClock sets the time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithSleep replaces the shutter delay wait.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) ControllerOption {
	return func(c *Controller) { c.sleep = sleep }
}

// WithIDGenerator sets the artifact ID generator.
func WithIDGenerator(newID func() string) ControllerOption {
	return func(c *Controller) { c.newID = newID }
}

// WithMetrics records pipeline metrics on r.
func WithMetrics(r metrics.Recorder) ControllerOption {
	return func(c *Controller) { c.metrics = r }
}

// Snapshot is a consistent view of the controller.
type Snapshot struct {
	State       model.State     `json:"state"`
	Artifact    *model.Artifact `json:"artifact,omitempty"`
	Notices     []model.Notice  `json:"notices"`
	Instruction string          `json:"instruction"`
	Filter      string          `json:"filter"`
	Features    model.Features  `json:"features"`
}

// Controller is the capture state machine. It holds the current artifact
// and is the only component that changes pipeline state.
type Controller struct {
	live        LiveSource
	transformer ImageTransformer
	cropper     frame.Cropper
	opts        Options

	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration)
	newID   func() string
	events  *Broadcaster
	metrics metrics.Recorder

	mu          sync.Mutex
	state       model.State
	current     *model.Artifact
	original    *frame.Still // untransformed crop behind current
	instruction string
	filter      string
	notices     []model.Notice
	revert      *time.Timer
}

// NewController creates a controller in IDLE.
func NewController(live LiveSource, tr ImageTransformer, opts Options, extra ...ControllerOption) *Controller {
	if opts.LabelRules == nil {
		opts.LabelRules = model.DefaultLabelRules
	}
	c := &Controller{
		live:        live,
		transformer: tr,
		cropper:     frame.NewCropper(opts.OutputSize),
		opts:        opts,
		now:         time.Now,
		sleep:       sleepCtx,
		newID:       func() string { return uuid.New().String() },
		events:      NewBroadcaster(),
		metrics:     metrics.Nop{},
		state:       model.StateIdle,
		filter:      model.FilterNone,
	}
	for _, o := range extra {
		o(c)
	}
	return c
}

// Events returns the broadcaster the controller publishes on.
func (c *Controller) Events() *Broadcaster { return c.events }

// Features returns the enabled options.
func (c *Controller) Features() model.Features { return c.opts.Features }

// Capture runs one live capture. It returns model.ErrBusy, without touching
// state or the current artifact, unless the controller is IDLE.
func (c *Controller) Capture(ctx context.Context) (*model.Artifact, error) {
	sess, filter, err := c.begin(model.SourceLiveCapture)
	if err != nil {
		return nil, err
	}

	c.sleep(ctx, c.opts.ShutterDelay)

	still, err := c.acquireLive(ctx, filter)
	if err != nil {
		return nil, c.fail(sess, err)
	}
	return c.develop(ctx, sess, still), nil
}

// ImportFromGallery runs the pipeline on an imported image instead of a
// live frame.
func (c *Controller) ImportFromGallery(ctx context.Context, data []byte) (*model.Artifact, error) {
	if !c.opts.Features.EnableGalleryImport {
		return nil, fmt.Errorf("gallery import: %w", model.ErrFeatureDisabled)
	}
	sess, filter, err := c.begin(model.SourceGalleryImport)
	if err != nil {
		return nil, err
	}

	still, err := c.acquireImport(data, filter)
	if err != nil {
		return nil, c.fail(sess, err)
	}
	return c.develop(ctx, sess, still), nil
}

// Restyle re-runs the transform on the current artifact's original crop
// with a new instruction. The result replaces the current artifact under a
// new ID. Only allowed while PRINTING. The instruction applies to this print
// only; the active instruction used by Capture is left unchanged.
func (c *Controller) Restyle(ctx context.Context, instruction string) (*model.Artifact, error) {
	if !c.opts.Features.EnableAIPrompt {
		return nil, fmt.Errorf("restyle: %w", model.ErrFeatureDisabled)
	}
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, errors.New("restyle: instruction is required")
	}

	c.mu.Lock()
	if c.state != model.StatePrinting || c.current == nil || c.original == nil {
		state := c.state
		c.mu.Unlock()
		if state == model.StateCapturing {
			return nil, model.ErrBusy
		}
		return nil, model.ErrNoArtifact
	}
	sess := captureSession{
		kind:        c.current.Source,
		instruction: instruction,
		filter:      c.current.Filter,
		started:     c.now(),
	}
	still := c.original
	c.setStateLocked(model.StateCapturing)
	c.mu.Unlock()

	return c.develop(ctx, sess, still), nil
}

// Reset returns to IDLE from PRINTING or ERROR and drops the current
// artifact. It reports whether anything changed.
func (c *Controller) Reset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StatePrinting && c.state != model.StateError {
		return false
	}
	c.stopRevertLocked()
	c.current = nil
	c.original = nil
	c.setStateLocked(model.StateIdle)
	return true
}

// SetInstruction sets the transform instruction used by later captures.
func (c *Controller) SetInstruction(instruction string) error {
	instruction = strings.TrimSpace(instruction)
	if instruction != "" && !c.opts.Features.EnableAIPrompt {
		return fmt.Errorf("ai prompt: %w", model.ErrFeatureDisabled)
	}
	c.mu.Lock()
	c.instruction = instruction
	c.mu.Unlock()
	return nil
}

// SetFilter selects the cosmetic filter used by later captures.
func (c *Controller) SetFilter(name string) error {
	if name == "" {
		name = model.FilterNone
	}
	if name != model.FilterNone && !c.opts.Features.EnableLocalFilters {
		return fmt.Errorf("local filters: %w", model.ErrFeatureDisabled)
	}
	if _, err := frame.LookupFilter(name); err != nil {
		return err
	}
	c.mu.Lock()
	c.filter = name
	c.mu.Unlock()
	return nil
}

// Current returns the current artifact or model.ErrNoArtifact.
func (c *Controller) Current() (*model.Artifact, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, model.ErrNoArtifact
	}
	return c.current, nil
}

// State returns the current state.
func (c *Controller) State() model.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns the state, current artifact and the notices still visible.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	active := c.notices[:0]
	for _, n := range c.notices {
		if n.Active(now) {
			active = append(active, n)
		}
	}
	c.notices = active
	return Snapshot{
		State:       c.state,
		Artifact:    c.current,
		Notices:     append([]model.Notice(nil), active...),
		Instruction: c.instruction,
		Filter:      c.filter,
		Features:    c.opts.Features,
	}
}

// Notify posts a self-dismissing notice, for failures outside the capture
// pipeline such as a failed export.
func (c *Controller) Notify(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.noticeLocked(level, msg)
}

// begin applies the IDLE guard and enters CAPTURING.
func (c *Controller) begin(kind model.SourceKind) (captureSession, frame.Filter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateIdle {
		c.metrics.RecordDroppedCapture()
		slog.Debug("capture dropped", "state", c.state)
		return captureSession{}, nil, model.ErrBusy
	}

	// The filter name was validated by SetFilter.
	filter, _ := frame.LookupFilter(c.filter)
	sess := captureSession{
		kind:        kind,
		instruction: c.instruction,
		filter:      c.filter,
		started:     c.now(),
	}
	c.setStateLocked(model.StateCapturing)
	return sess, filter, nil
}

// develop runs the optional transform and publishes the new artifact. It
// cannot fail: a failed transform prints the original.
func (c *Controller) develop(ctx context.Context, sess captureSession, still *frame.Still) *model.Artifact {
	png, transformed := still.PNG, false
	if sess.instruction != "" {
		if out, ok := c.transform(ctx, still, sess.instruction); ok {
			png, transformed = out, true
		}
	}

	a := model.NewArtifact(c.newID(), png, sess.kind,
		model.Classify(sess.kind, sess.instruction, sess.filter, c.opts.LabelRules), c.now())
	a.Instruction = sess.instruction
	a.Filter = sess.filter
	a.FilterName = model.FilterName(sess.instruction, sess.filter)
	a.Transformed = transformed
	a.Size = c.cropper.Size

	c.mu.Lock()
	if sess.instruction != "" && !transformed {
		c.noticeLocked(model.LevelWarning, "Transformation failed, printed original.")
	}
	c.current = a
	c.original = still
	c.setStateLocked(model.StatePrinting)
	c.mu.Unlock()

	c.events.Publish(Event{Type: EventArtifact, ArtifactID: a.ID, Label: a.Label, State: model.StatePrinting})
	c.metrics.RecordCapture(string(sess.kind), true, c.now().Sub(sess.started))
	slog.Info("artifact printed",
		"artifact_id", a.ID,
		"source", sess.kind,
		"label", a.Label,
		"transformed", transformed,
	)
	return a
}

// fail moves to ERROR, posts a user-visible notice and schedules the revert
// to IDLE. No artifact is produced; the previous one is already gone since
// captures only start from IDLE.
func (c *Controller) fail(sess captureSession, err error) error {
	slog.Error("capture failed", "source", sess.kind, "error", err)
	c.metrics.RecordCapture(string(sess.kind), false, c.now().Sub(sess.started))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.noticeLocked(model.LevelError, userMessage(err))
	c.setStateLocked(model.StateError)

	if c.opts.ErrorHold <= 0 {
		c.setStateLocked(model.StateIdle)
		return err
	}
	c.stopRevertLocked()
	c.revert = time.AfterFunc(c.opts.ErrorHold, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == model.StateError {
			c.setStateLocked(model.StateIdle)
		}
	})
	return err
}

func (c *Controller) stopRevertLocked() {
	if c.revert != nil {
		c.revert.Stop()
		c.revert = nil
	}
}

func (c *Controller) setStateLocked(next model.State) {
	if err := c.state.ValidateTransition(next); err != nil {
		slog.Error("refusing state change", "error", err)
		return
	}
	c.state = next
	c.metrics.SetState(string(next))
	c.events.Publish(Event{Type: EventState, State: next})
}

func (c *Controller) noticeLocked(level, msg string) {
	now := c.now()
	n := model.Notice{Level: level, Message: msg, CreatedAt: now, ExpiresAt: now.Add(c.opts.NoticeTTL)}
	c.notices = append(c.notices, n)
	c.events.Publish(Event{Type: EventNotice, Level: level, Message: msg})
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrCameraUnavailable):
		return "Camera unavailable. Check permissions and try again."
	case errors.Is(err, model.ErrFrameNotReady):
		return "Camera is still starting, try again."
	case errors.Is(err, model.ErrDecode):
		return "That file could not be read as an image."
	default:
		return "Capture failed."
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
