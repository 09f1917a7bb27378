package api

// GenerationRequest is the form posted to /generate.
type GenerationRequest struct {
	Prompt         string  `schema:"prompt"`
	NumImages      int     `schema:"num_images"`
	Width          int     `schema:"width"`
	Height         int     `schema:"height"`
	Steps          int     `schema:"steps"`
	GuidanceScale  float64 `schema:"guidance_scale"`
	Seed           int     `schema:"seed"` // -1 lets the server pick
	Model          string  `schema:"model"`
	FormatEnhance  string  `schema:"format_enhance"`
	Style          string  `schema:"style"`
	PrivateMode    bool    `schema:"private_mode"`
	NegativePrompt string  `schema:"negative_prompt"`
}

type GenerateResponse struct {
	Success         bool     `json:"success"`
	Images          []string `json:"images"`
	SessionID       string   `json:"session_id"`
	RemainingTokens *float64 `json:"remaining_tokens,omitempty"`
	Error           string   `json:"error,omitempty"`
}

// FilterRequest is the form posted to /apply_filter.
type FilterRequest struct {
	SessionID  string  `schema:"session_id"`
	ImageID    int     `schema:"image_id"`
	FilterType string  `schema:"filter_type"`
	Intensity  float64 `schema:"intensity"` // 0.0 to 1.0
}

type FilterResponse struct {
	Success       bool   `json:"success"`
	FilteredImage string `json:"filtered_image"`
	Error         string `json:"error,omitempty"`
}

// DownloadRequest selects a stored session image and the format to
// convert it to.
type DownloadRequest struct {
	SessionID string `schema:"session_id"`
	ImageID   int    `schema:"image_id"`
	Filtered  bool   `schema:"filtered"`
	Format    string `schema:"format"`
	Quality   int    `schema:"quality"`
}

type tokenBalanceResponse struct {
	Success      bool    `json:"success"`
	TokenBalance float64 `json:"token_balance"`
	Error        string  `json:"error,omitempty"`
}

// Filters accepted by /apply_filter.
var Filters = []string{
	"None",
	"Sepia",
	"Grayscale",
	"Blur",
	"Sharpen",
}
