package model

// Features toggles optional parts of the capture flow.
type Features struct {
	EnableAIPrompt      bool `json:"enable_ai_prompt"`
	EnableLocalFilters  bool `json:"enable_local_filters"`
	EnableCaptionInput  bool `json:"enable_caption_input"`
	EnableGalleryImport bool `json:"enable_gallery_import"`
	EnableShare         bool `json:"enable_share"`
}

// AllFeatures has every option enabled.
func AllFeatures() Features {
	return Features{
		EnableAIPrompt:      true,
		EnableLocalFilters:  true,
		EnableCaptionInput:  true,
		EnableGalleryImport: true,
		EnableShare:         true,
	}
}
