package models

// PromptSubject describes one subject placed in the generated scene.
type PromptSubject struct {
	Description  string   `json:"description"`
	Pose         string   `json:"pose"`
	Position     string   `json:"position"`
	ColorPalette []string `json:"color_palette,omitempty"`
}

// PromptContext carries the audience framing plus the two pass-through
// directives that must survive prompt optimization verbatim: the
// reference-image instruction and the language instruction.
type PromptContext struct {
	TargetAudience      string   `json:"target_audience,omitempty"`
	TrendCategory       string   `json:"trend_category,omitempty"`
	PrimaryInterest     string   `json:"primary_interest,omitempty"`
	TrendingInterests   []string `json:"trending_interests,omitempty"`
	TrendCategories     []string `json:"trend_categories,omitempty"`
	LifestyleTheme      string   `json:"lifestyle_theme,omitempty"`
	ReferenceImage      string   `json:"reference_image_instruction,omitempty"`
	LanguageInstruction string   `json:"language_instruction,omitempty"`
}

// CameraSettings pins the photographic framing of the scene.
type CameraSettings struct {
	Angle    string `json:"angle"`
	Distance string `json:"distance"`
	Focus    string `json:"focus"`
	LensMM   int    `json:"lens-mm"`
	FNumber  string `json:"f-number"`
	ISO      int    `json:"ISO"`
}

// StructuredPrompt is the language-agnostic scene description built
// deterministically from product and audience context, prior to text
// flattening. It has no identity and no lifecycle; identical inputs always
// rebuild an identical value.
type StructuredPrompt struct {
	Scene             string          `json:"scene"`
	Subjects          []PromptSubject `json:"subjects"`
	Context           PromptContext   `json:"context"`
	Style             string          `json:"style"`
	ColorPalette      []string        `json:"color_palette"`
	Lighting          string          `json:"lighting"`
	Mood              string          `json:"mood"`
	Background        string          `json:"background"`
	Composition       string          `json:"composition"`
	Camera            CameraSettings  `json:"camera"`
	AdditionalDetails string          `json:"additional_details,omitempty"`
}

// StylePreset selects the register of the prompt-optimization system
// instructions.
type StylePreset string

const (
	StyleRealistic     StylePreset = "realistic"
	StyleSemiRealistic StylePreset = "semi-realistic"
	StyleStylized      StylePreset = "stylized"
)

// ValidStylePreset reports whether s names a known preset.
func ValidStylePreset(s StylePreset) bool {
	switch s {
	case StyleRealistic, StyleSemiRealistic, StyleStylized:
		return true
	}
	return false
}
