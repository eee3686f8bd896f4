package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/marketeam/adpilot/pkg/models"
)

// ReferenceImageDirective is injected into the structured prompt when the
// campaign request carried a product photo. The optimizer must carry it into
// its output verbatim.
const ReferenceImageDirective = "Use the product from the provided input image"

// PromptBuilder deterministically maps product and audience context onto a
// structured scene description. It holds no state and performs no I/O;
// identical inputs always produce identical prompts.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildForUser builds the structured prompt for one (user, matched
// interests) pair.
func (b *PromptBuilder) BuildForUser(
	productDescription string,
	user *models.UserProfile,
	matches []models.InterestMatch,
	additionalContext string,
	hasReferenceImage bool,
) *models.StructuredPrompt {
	topInterests := make([]string, 0, 3)
	categorySet := make(map[string]bool)
	var categories []string
	for i, m := range matches {
		if i >= 3 {
			break
		}
		topInterests = append(topInterests, m.MatchedInterest)
		if !categorySet[m.Category] {
			categorySet[m.Category] = true
			categories = append(categories, m.Category)
		}
	}

	palette := b.paletteFor(categories)
	prompt := &models.StructuredPrompt{
		Scene: fmt.Sprintf("Professional advertising photography setup with %s as the hero product", productDescription),
		Subjects: []models.PromptSubject{{
			Description:  productDescription,
			Pose:         "Prominently displayed with appealing presentation",
			Position:     "Center foreground on clean surface",
			ColorPalette: palette[:2],
		}},
		Context: models.PromptContext{
			TargetAudience:      fmt.Sprintf("%d year old %s from %s", user.Age, user.Occupation, user.Location),
			TrendingInterests:   topInterests,
			TrendCategories:     categories,
			LifestyleTheme:      b.lifestyleContext(topInterests, user.Occupation),
			LanguageInstruction: languageInstruction(user.Language),
		},
		Style:        fmt.Sprintf("%s, ultra-realistic advertising photography with commercial quality", visualStyle(user.Age)),
		ColorPalette: palette,
		Lighting:     "Three-point softbox setup creating soft, diffused highlights with no harsh shadows",
		Mood:         b.moodFor(categories),
		Background:   b.backgroundFor(categories),
		Composition:  "rule of thirds with clear focus on product",
		Camera: models.CameraSettings{
			Angle:    "slightly elevated angle for premium feel",
			Distance: "medium shot emphasizing product",
			Focus:    "Sharp focus on main product with subtle depth of field",
			LensMM:   85,
			FNumber:  "f/4.0",
			ISO:      200,
		},
		AdditionalDetails: additionalContext,
	}
	if hasReferenceImage {
		prompt.Context.ReferenceImage = ReferenceImageDirective
	}
	return prompt
}

// BuildForTrend builds the structured prompt for a trend category without a
// specific user, used for the preview-format variants.
func (b *PromptBuilder) BuildForTrend(
	productDescription string,
	category string,
	interests []string,
	additionalContext string,
	hasReferenceImage bool,
) *models.StructuredPrompt {
	primary := category
	if len(interests) > 0 {
		primary = interests[0]
	}

	categories := []string{category}
	palette := b.paletteFor(categories)
	prompt := &models.StructuredPrompt{
		Scene: fmt.Sprintf("Professional studio product photography setup with polished surface, %s", lifestyleAtmosphere(primary)),
		Subjects: []models.PromptSubject{{
			Description:  fmt.Sprintf("%s as hero product", productDescription),
			Pose:         "Stationary on surface",
			Position:     "Center foreground on polished surface",
			ColorPalette: palette[:2],
		}},
		Context: models.PromptContext{
			TrendCategory:   category,
			PrimaryInterest: primary,
			LifestyleTheme:  fmt.Sprintf("Atmospheric environment inspired by %s lifestyle with immersive background depth and thematic mood", primary),
		},
		Style:        "Ultra-realistic product photography with commercial quality",
		ColorPalette: palette,
		Lighting:     "Three-point softbox setup creating soft, diffused highlights with no harsh shadows",
		Mood:         b.moodFor(categories),
		Background:   b.backgroundFor(categories),
		Composition:  "rule of thirds with clear focus on product",
		Camera: models.CameraSettings{
			Angle:    "slightly elevated angle for premium feel",
			Distance: "medium shot emphasizing product",
			Focus:    "Sharp focus on product details with subtle depth of field on background",
			LensMM:   85,
			FNumber:  "f/4.0",
			ISO:      200,
		},
		AdditionalDetails: additionalContext,
	}
	if hasReferenceImage {
		prompt.Context.ReferenceImage = ReferenceImageDirective
	}
	return prompt
}

// Flatten converts a structured prompt to the deterministic single-string
// form: subject, action, style, context. It is both the text API format and
// the optimizer's fallback; the pass-through directives survive flattening.
func (b *PromptBuilder) Flatten(p *models.StructuredPrompt) string {
	subject := "product"
	action := "displayed prominently"
	if len(p.Subjects) > 0 {
		subject = p.Subjects[0].Description
		if p.Subjects[0].Pose != "" {
			action = p.Subjects[0].Pose
		}
	}

	colorText := ""
	if len(p.ColorPalette) > 0 {
		n := len(p.ColorPalette)
		if n > 3 {
			n = 3
		}
		colorText = fmt.Sprintf("with %s color palette", strings.Join(p.ColorPalette[:n], ", "))
	}

	parts := []string{
		fmt.Sprintf("%s, %s", subject, action),
		p.Style,
		fmt.Sprintf("%s, %s", p.Scene, p.Background),
		fmt.Sprintf("%s, %s", p.Lighting, p.Mood),
		colorText,
		p.Context.ReferenceImage,
		p.Context.LanguageInstruction,
	}

	kept := parts[:0]
	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ", ")
}

// FormatForAPI renders a structured prompt either as indented JSON or as
// the flattened text form.
func (b *PromptBuilder) FormatForAPI(p *models.StructuredPrompt, format string) string {
	if format == "text" {
		return b.Flatten(p)
	}
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return b.Flatten(p)
	}
	return string(raw)
}

func (b *PromptBuilder) moodFor(categories []string) string {
	for _, c := range categories {
		if mood, ok := categoryMoods[c]; ok {
			return mood
		}
	}
	return "Clean, professional, lifestyle-oriented, aspirational"
}

func (b *PromptBuilder) paletteFor(categories []string) []string {
	for _, c := range categories {
		if palette, ok := categoryPalettes[c]; ok {
			return palette
		}
	}
	return []string{"sophisticated navy", "warm beige", "soft white", "accent gold"}
}

func (b *PromptBuilder) backgroundFor(categories []string) string {
	for _, c := range categories {
		if bg, ok := categoryBackgrounds[c]; ok {
			return bg
		}
	}
	return "Professional lifestyle setting with clean, aspirational atmosphere"
}

func (b *PromptBuilder) lifestyleContext(interests []string, occupation string) string {
	if occupation == "" {
		occupation = "professional"
	}
	if len(interests) == 0 {
		return fmt.Sprintf("Product showcased in aspirational %s lifestyle context", occupation)
	}
	return fmt.Sprintf("Product integrated into %s lifestyle with connection to %s", occupation, strings.Join(interests, ", "))
}

var categoryMoods = map[string]string{
	"Technology":    "Sleek, modern, innovative, tech-forward",
	"Sports":        "Energetic, dynamic, active, motivating",
	"Food":          "Warm, inviting, appetizing, gourmet",
	"Travel":        "Adventurous, exciting, wanderlust, aspirational",
	"Entertainment": "Vibrant, engaging, culturally rich, entertaining",
}

var categoryPalettes = map[string][]string{
	"Technology":    {"sleek black", "metallic silver", "electric blue", "pure white"},
	"Sports":        {"vibrant red", "energetic orange", "fresh green", "deep blue"},
	"Food":          {"warm brown", "rich red", "fresh green", "golden yellow"},
	"Travel":        {"sky blue", "sunset orange", "earth brown", "ocean teal"},
	"Entertainment": {"vibrant purple", "bold red", "golden yellow", "deep blue"},
}

var categoryBackgrounds = map[string]string{
	"Technology":    "Modern minimalist space with subtle tech elements, clean lines, futuristic ambiance",
	"Sports":        "Active lifestyle setting with subtle athletic elements, energetic atmosphere",
	"Food":          "Elegant dining atmosphere with subtle gourmet elements, warm ambiance",
	"Travel":        "Sophisticated travel-inspired setting with subtle adventure elements",
	"Entertainment": "Vibrant cultural setting with entertainment-themed accents",
	"Gaming":        "Modern gaming setup with subtle gaming peripherals in soft focus background",
	"Music":         "Creative studio space with subtle musical instruments as background elements",
	"Fashion":       "Minimalist fashion setting with subtle textile elements, elegant atmosphere",
}

// lifestyleAtmosphere maps a single specific interest to an atmospheric
// environment description. Unknown interests get a generic thematic branch.
func lifestyleAtmosphere(interest string) string {
	lower := strings.ToLower(interest)
	switch {
	case strings.Contains(lower, "machine learning"), strings.Contains(lower, "deep learning"):
		return "modern tech workspace atmosphere with subtle digital elements and clean minimalist aesthetic in background"
	case strings.Contains(lower, "ai"):
		return "contemporary digital workspace environment with soft ambient glow and technological aesthetic"
	case strings.Contains(lower, "trail running"):
		return "natural outdoor environment with organic textures and athletic energy in the atmospheric background"
	case strings.Contains(lower, "marathon"), strings.Contains(lower, "running"):
		return "active lifestyle setting with dynamic energy and achievement-oriented atmosphere"
	case strings.Contains(lower, "gaming"):
		return "immersive gaming setup environment with ambient lighting and entertainment-focused atmosphere"
	case strings.Contains(lower, "photography"):
		return "artistic creative workspace with visual storytelling atmosphere and professional aesthetic"
	case strings.Contains(lower, "cooking"), strings.Contains(lower, "cuisine"):
		return "gourmet kitchen environment with culinary passion and sophisticated food culture atmosphere"
	case strings.Contains(lower, "music"), strings.Contains(lower, "concert"):
		return "artistic musical atmosphere with creative energy and cultural lifestyle aesthetic"
	case strings.Contains(lower, "beach"), strings.Contains(lower, "holiday"):
		return "relaxed travel lifestyle atmosphere with wanderlust aesthetic and vacation vibes"
	case strings.Contains(lower, "fine dining"), strings.Contains(lower, "wine"):
		return "sophisticated dining atmosphere with refined taste and elegant lifestyle aesthetic"
	case strings.Contains(lower, "fitness"), strings.Contains(lower, "crossfit"):
		return "active wellness lifestyle setting with health-conscious atmosphere and motivational energy"
	case strings.Contains(lower, "basketball"), strings.Contains(lower, "football"):
		return "dynamic sports environment with athletic energy and competitive spirit atmosphere"
	case strings.Contains(lower, "smart home"), strings.Contains(lower, "wearable"):
		return "cutting-edge tech lifestyle environment with innovative atmosphere and futuristic aesthetic"
	default:
		return fmt.Sprintf("%s inspired lifestyle environment with thematic atmosphere and cultural aesthetic", interest)
	}
}

func visualStyle(age int) string {
	switch {
	case age < 30:
		return "Contemporary, bold, social media ready"
	case age < 45:
		return "Modern, sophisticated, professional"
	default:
		return "Classic, refined, premium quality"
	}
}

// languageInstruction builds the target-language directive for any text the
// generator renders. The profile's language code is canonicalized so "de",
// "de-DE" and "DE" all yield the same instruction.
func languageInstruction(lang string) string {
	if lang == "" {
		return ""
	}
	name := lang
	if tag, err := language.Parse(lang); err == nil {
		name = display.English.Languages().Name(tag)
	}
	return fmt.Sprintf("If the image contains any text or should include any, it must be rendered in %s", name)
}
