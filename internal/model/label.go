package model

import "strings"

// Labels that do not come from keyword rules.
const (
	LabelInstantFilm    = "INSTANT FILM"
	LabelAIEnhanced     = "AI ENHANCED"
	LabelGalleryArchive = "GALLERY ARCHIVE"
)

// FilterNone is the filter name meaning "no cosmetic filter".
const FilterNone = "none"

// LabelRule maps any of its keywords, found in an instruction, to Label.
type LabelRule struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Label    string   `yaml:"label" json:"label"`
}

// DefaultLabelRules is the ordered keyword list used when none is configured.
var DefaultLabelRules = []LabelRule{
	{Keywords: []string{"anime"}, Label: "ANIME VARIANT"},
	{Keywords: []string{"zootopia"}, Label: "ZOOTOPIA VARIANT"},
	{Keywords: []string{"pixar"}, Label: "PIXAR VARIANT"},
	{Keywords: []string{"ghibli"}, Label: "GHIBLI VARIANT"},
	{Keywords: []string{"sketch", "pencil"}, Label: "SKETCH VARIANT"},
	{Keywords: []string{"vintage", "retro"}, Label: "VINTAGE VARIANT"},
}

// Classify derives the label of an artifact. It is a pure function of its
// arguments: the first rule with a keyword contained in the instruction wins
// (case-insensitive).
func Classify(kind SourceKind, instruction, filter string, rules []LabelRule) string {
	instruction = strings.TrimSpace(instruction)
	if instruction != "" {
		lower := strings.ToLower(instruction)
		for _, r := range rules {
			for _, kw := range r.Keywords {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw != "" && strings.Contains(lower, kw) {
					return r.Label
				}
			}
		}
		return LabelAIEnhanced
	}

	if kind == SourceGalleryImport {
		return LabelGalleryArchive
	}
	if hasFilter(filter) {
		return strings.ToUpper(filter) + " FILM"
	}
	return LabelInstantFilm
}

// FilterName is the short tag printed next to the date on the polaroid frame.
func FilterName(instruction, filter string) string {
	switch {
	case strings.TrimSpace(instruction) != "":
		return "AI"
	case hasFilter(filter):
		return strings.ToUpper(filter)
	default:
		return "ANALOG"
	}
}

func hasFilter(filter string) bool {
	return filter != "" && filter != FilterNone
}
