package model

import "time"

// SourceKind records where the pixels of an artifact came from.
type SourceKind string

// Source kind constants
const (
	SourceLiveCapture   SourceKind = "LIVE_CAPTURE"
	SourceGalleryImport SourceKind = "GALLERY_IMPORT"
)

// DateLayout renders capture dates as DD.MM.YYYY.
const DateLayout = "02.01.2006"

// Image is an encoded raster image together with its MIME type.
type Image struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
}

// Artifact is the immutable result of one capture cycle.
type Artifact struct {
	ID          string     `json:"id"`
	Label       string     `json:"label"`
	FilterName  string     `json:"filter_name"`
	Source      SourceKind `json:"source_kind"`
	Instruction string     `json:"instruction,omitempty"`
	Filter      string     `json:"filter,omitempty"`
	Transformed bool       `json:"transformed"`
	CapturedAt  time.Time  `json:"captured_at"`
	Size        int        `json:"size"`

	image []byte
}

// NewArtifact builds an Artifact from a PNG. The image bytes are copied so
// later changes to png do not leak into the artifact.
func NewArtifact(id string, png []byte, source SourceKind, label string, capturedAt time.Time) *Artifact {
	buf := make([]byte, len(png))
	copy(buf, png)
	return &Artifact{
		ID:         id,
		Label:      label,
		Source:     source,
		CapturedAt: capturedAt,
		image:      buf,
	}
}

// Bytes returns a copy of the encoded PNG.
func (a *Artifact) Bytes() []byte {
	out := make([]byte, len(a.image))
	copy(out, a.image)
	return out
}

// Len returns the size of the encoded image in bytes.
func (a *Artifact) Len() int { return len(a.image) }

// Date returns the capture date formatted for display.
func (a *Artifact) Date() string {
	return a.CapturedAt.Format(DateLayout)
}

// MetadataLine is the "date • label" line printed under the caption.
func (a *Artifact) MetadataLine() string {
	return a.Date() + " • " + a.Label
}
