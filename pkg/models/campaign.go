package models

import (
	"time"

	"github.com/google/uuid"
)

// ImageStatus is the terminal state of one image-generation attempt.
type ImageStatus string

const (
	ImageGenerated ImageStatus = "generated"
	ImageFailed    ImageStatus = "failed"
	ImageTimeout   ImageStatus = "timeout"
)

// ImageDimensions is the requested output size.
type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// GeneratedImage is the outcome of one generation request, keyed by the
// composite subject key (user+interest, or a preview format name). A timeout
// or provider failure is still a GeneratedImage, with an empty URL.
type GeneratedImage struct {
	SubjectKey string          `json:"subject_key"`
	ImageURL   string          `json:"image_url,omitempty"`
	PromptUsed string          `json:"prompt_used"`
	Dimensions ImageDimensions `json:"dimensions"`
	Status     ImageStatus     `json:"status"`
}

// InterestImage is one per-interest entry in a user's campaign result.
// ImageURL is nil when generation failed or timed out for that interest.
type InterestImage struct {
	Interest string      `json:"interest"`
	ImageURL *string     `json:"image_url"`
	Status   ImageStatus `json:"status"`
	Message  string      `json:"message,omitempty"`
}

// CampaignResult is the per-user aggregate of a campaign run. Partial
// success is always representable: a failed interest appears with a failed
// status rather than collapsing the user's whole result.
type CampaignResult struct {
	UserID          int             `json:"user_id"`
	UserName        string          `json:"user_name"`
	Interests       []string        `json:"interests"`
	GeneratedImages []InterestImage `json:"generated_images"`
	ImagesCount     int             `json:"images_count"`
}

// CallTally is the operational call-count summary for one run: LLM calls
// split into the two cost tiers, plus image-generation submissions.
type CallTally struct {
	FastLLMCalls    int64 `json:"fast_llm_calls"`
	QualityLLMCalls int64 `json:"quality_llm_calls"`
	ImageCalls      int64 `json:"image_generation_calls"`
}

// CampaignResponse is the full aggregate response of one campaign run.
type CampaignResponse struct {
	RunID         uuid.UUID        `json:"run_id"`
	PreviewUserID int              `json:"preview_user_id"`
	Results       []CampaignResult `json:"results"`
	Previews      []GeneratedImage `json:"preview_images"`
	CallTally     CallTally        `json:"call_tally"`
	GeneratedAt   time.Time        `json:"generated_at"`
	Duration      time.Duration    `json:"-"`
}
