package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/yangwenmai/sofort/internal/engine"
	"github.com/yangwenmai/sofort/internal/frame"
	"github.com/yangwenmai/sofort/internal/model"
)

// artifactView is the JSON form of an artifact. The image itself is served
// separately.
type artifactView struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Date        string           `json:"date"`
	Metadata    string           `json:"metadata"`
	FilterName  string           `json:"filter_name"`
	Source      model.SourceKind `json:"source_kind"`
	Instruction string           `json:"instruction,omitempty"`
	Filter      string           `json:"filter,omitempty"`
	Transformed bool             `json:"transformed"`
	CapturedAt  time.Time        `json:"captured_at"`
	Size        int              `json:"size"`
	Bytes       int              `json:"bytes"`
	ImageURL    string           `json:"image_url"`
}

func newArtifactView(a *model.Artifact) *artifactView {
	if a == nil {
		return nil
	}
	return &artifactView{
		ID:          a.ID,
		Label:       a.Label,
		Date:        a.Date(),
		Metadata:    a.MetadataLine(),
		FilterName:  a.FilterName,
		Source:      a.Source,
		Instruction: a.Instruction,
		Filter:      a.Filter,
		Transformed: a.Transformed,
		CapturedAt:  a.CapturedAt,
		Size:        a.Size,
		Bytes:       a.Len(),
		ImageURL:    "/api/artifact/image?id=" + a.ID,
	}
}

type stateResponse struct {
	State       model.State    `json:"state"`
	Artifact    *artifactView  `json:"artifact"`
	Notices     []model.Notice `json:"notices"`
	Instruction string         `json:"instruction"`
	Filter      string         `json:"filter"`
	Filters     []string       `json:"filters"`
	Facing      frame.Facing   `json:"facing"`
	Features    model.Features `json:"features"`
}

func (s *Server) state() stateResponse {
	snap := s.ctrl.Snapshot()
	notices := snap.Notices
	if notices == nil {
		notices = []model.Notice{}
	}
	return stateResponse{
		State:       snap.State,
		Artifact:    newArtifactView(snap.Artifact),
		Notices:     notices,
		Instruction: snap.Instruction,
		Filter:      snap.Filter,
		Filters:     frame.FilterNames(),
		Facing:      s.camera.Facing(),
		Features:    snap.Features,
	}
}

// writeControllerError maps controller errors to HTTP statuses.
func writeControllerError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, model.ErrBusy):
		writeError(w, http.StatusConflict, "a capture is already in progress")
	case errors.Is(err, model.ErrNoArtifact):
		writeError(w, http.StatusConflict, "no artifact")
	case errors.Is(err, model.ErrFeatureDisabled):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrCameraUnavailable), errors.Is(err, model.ErrFrameNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, model.ErrDecode):
		writeError(w, http.StatusUnprocessableEntity, "file is not a supported image")
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// ---------------------------------------------------------------------------
// GET /api/state
// ---------------------------------------------------------------------------

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

// ---------------------------------------------------------------------------
// POST /api/capture
// ---------------------------------------------------------------------------

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	// A capture runs to completion even if the client goes away.
	ctx := context.WithoutCancel(r.Context())

	a, err := s.ctrl.Capture(ctx)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArtifactView(a))
}

// ---------------------------------------------------------------------------
// POST /api/import
// ---------------------------------------------------------------------------

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.Features().EnableGalleryImport {
		writeError(w, http.StatusForbidden, "gallery import is disabled")
		return
	}

	data, err := readUpload(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}

	a, err := s.ctrl.ImportFromGallery(context.WithoutCancel(r.Context()), data)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArtifactView(a))
}

// readUpload returns the "file" part of a multipart form, or the raw body.
func readUpload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errors.New("multipart field \"file\" is required")
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ---------------------------------------------------------------------------
// POST /api/reset
// ---------------------------------------------------------------------------

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	changed := s.ctrl.Reset()
	writeJSON(w, http.StatusOK, map[string]any{
		"reset": changed,
		"state": s.ctrl.State(),
	})
}

// ---------------------------------------------------------------------------
// POST /api/restyle
// ---------------------------------------------------------------------------

type restyleRequest struct {
	Instruction string `json:"instruction"`
}

func (s *Server) handleRestyle(w http.ResponseWriter, r *http.Request) {
	var req restyleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "instruction is required")
		return
	}

	a, err := s.ctrl.Restyle(context.WithoutCancel(r.Context()), req.Instruction)
	if err != nil {
		writeControllerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newArtifactView(a))
}

// ---------------------------------------------------------------------------
// PUT /api/settings
// ---------------------------------------------------------------------------

// settingsRequest updates only the fields that are present.
type settingsRequest struct {
	Instruction *string `json:"instruction"`
	Filter      *string `json:"filter"`
	Facing      *string `json:"facing"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var facing frame.Facing
	if req.Facing != nil {
		f, err := frame.ParseFacing(*req.Facing)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		facing = f
	}
	if req.Instruction != nil {
		if err := s.ctrl.SetInstruction(*req.Instruction); err != nil {
			writeControllerError(w, err)
			return
		}
	}
	if req.Filter != nil {
		if err := s.ctrl.SetFilter(*req.Filter); err != nil {
			if errors.Is(err, model.ErrFeatureDisabled) {
				writeControllerError(w, err)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if facing != "" && facing != s.camera.Facing() {
		if err := s.camera.SetFacing(r.Context(), facing); err != nil {
			writeControllerError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.state())
}

// ---------------------------------------------------------------------------
// GET /api/artifact, GET /api/artifact/image
// ---------------------------------------------------------------------------

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.ctrl.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "no artifact")
		return
	}
	writeJSON(w, http.StatusOK, newArtifactView(a))
}

func (s *Server) handleArtifactImage(w http.ResponseWriter, r *http.Request) {
	a, err := s.ctrl.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "no artifact")
		return
	}
	if id := r.URL.Query().Get("id"); id != "" && id != a.ID {
		writeError(w, http.StatusNotFound, "artifact replaced")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(a.Bytes())
}

// ---------------------------------------------------------------------------
// GET /api/artifact/export
// ---------------------------------------------------------------------------

// Export delivery modes. Both serve the same bytes.
const (
	modeShare    = "share"
	modeDownload = "download"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	features := s.ctrl.Features()
	if !features.EnableShare {
		writeError(w, http.StatusForbidden, "share is disabled")
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = modeDownload
	}
	if mode != modeShare && mode != modeDownload {
		writeError(w, http.StatusBadRequest, "mode must be share or download")
		return
	}
	caption := ""
	if features.EnableCaptionInput {
		caption = r.URL.Query().Get("caption")
	}

	a, err := s.ctrl.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, "no artifact")
		return
	}

	start := time.Now()
	exp, err := s.composer.Package(a, caption)
	s.metrics.RecordExport(mode, err == nil, time.Since(start))
	if err != nil {
		slog.Error("export failed", "artifact_id", a.ID, "mode", mode, "error", err)
		s.ctrl.Notify(model.LevelError, "Could not prepare the print for sharing.")
		writeError(w, http.StatusInternalServerError, "share export failed")
		return
	}

	disposition := "attachment"
	if mode == modeShare {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": exp.FileName}))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(exp.Data)
}

// ---------------------------------------------------------------------------
// GET /api/preview
// ---------------------------------------------------------------------------

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	img, facing, err := s.camera.Frame(r.Context())
	if err != nil {
		writeControllerError(w, err)
		return
	}
	// Front camera previews are mirrored like the prints they produce.
	if facing == frame.FacingUser {
		img = imaging.FlipH(img)
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		slog.Warn("preview encode failed", "error", err)
	}
}

// ---------------------------------------------------------------------------
// GET /api/events
// ---------------------------------------------------------------------------

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleWebSocket(w, r, engine.Event{Type: engine.EventState, State: s.ctrl.State()})
}
