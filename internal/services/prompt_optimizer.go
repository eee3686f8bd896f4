package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/llm"
	"github.com/marketeam/adpilot/internal/metrics"
	"github.com/marketeam/adpilot/pkg/models"
)

// PromptOptimizer rewrites a structured prompt into optimized free text for
// the image generator: one LLM call, no retry, and a deterministic flatten
// fallback so Optimize never fails.
type PromptOptimizer struct {
	llm     *llm.Client
	builder *PromptBuilder
	logger  *logrus.Logger
}

func NewPromptOptimizer(llmClient *llm.Client, builder *PromptBuilder, logger *logrus.Logger) *PromptOptimizer {
	return &PromptOptimizer{
		llm:     llmClient,
		builder: builder,
		logger:  logger,
	}
}

// Optimize returns the optimized prompt text for one (user, interest) pair.
// The two pass-through directives of the base prompt (reference image,
// target language) survive both the success and the fallback path.
func (o *PromptOptimizer) Optimize(
	ctx context.Context,
	productDescription string,
	user *models.UserProfile,
	matches []models.InterestMatch,
	base *models.StructuredPrompt,
	style models.StylePreset,
	imageAnalysis string,
) string {
	if o.llm == nil {
		return o.builder.Flatten(base)
	}

	optimized, err := o.optimizeWithLLM(ctx, productDescription, user, matches, base, style, imageAnalysis)
	if err != nil {
		o.logger.WithError(err).Warn("Prompt optimization failed, falling back to rule-based prompt")
		return o.builder.Flatten(base)
	}
	if optimized == "" {
		o.logger.Warn("Prompt optimization returned empty output, falling back to rule-based prompt")
		return o.builder.Flatten(base)
	}

	return ensureDirectives(optimized, base)
}

func (o *PromptOptimizer) optimizeWithLLM(
	ctx context.Context,
	productDescription string,
	user *models.UserProfile,
	matches []models.InterestMatch,
	base *models.StructuredPrompt,
	style models.StylePreset,
	imageAnalysis string,
) (string, error) {
	baseJSON, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal base prompt: %w", err)
	}

	niche := "lifestyle"
	if len(matches) > 0 {
		niche = matches[0].MatchedInterest
	}

	var analysisSection string
	if imageAnalysis != "" {
		analysisSection = fmt.Sprintf("\nIMAGE ANALYSIS OF THE PROVIDED PRODUCT PHOTO:\n%s\n", imageAnalysis)
	}

	userMessage := fmt.Sprintf(`Create an advertising scenario prompt for image generation:

CONTEXT:
- Product: %s
- Target Audience: %d year old %s
- Target Language: %s
- Specific Interest Niche: %s
%s
BASE PROMPT STRUCTURE:
%s

Requirements:
1. Show the product in action in a concrete, specific scenario matching the EXACT interest niche, not the generic category
2. Describe dramatic lighting, motion and scene details in 100-150 words
3. If the base prompt contains a reference-image instruction, you MUST include it verbatim in your output
4. If the base prompt contains a language instruction for text, you MUST include it verbatim in your output
5. Any text found in the image analysis must be preserved exactly (1:1) in the generated image

OUTPUT: only the final optimized prompt text, no explanations or markdown.`,
		productDescription, user.Age, user.Occupation, user.Language, niche, analysisSection, baseJSON)

	return o.llm.Complete(ctx, llm.ChatRequest{
		Tier:        metrics.TierQuality,
		System:      systemPromptFor(style),
		User:        userMessage,
		Temperature: 0.9,
		MaxTokens:   300,
	})
}

// legalCompliance is shared across every style preset: the optimizer, not
// its callers, is responsible for generalizing protected names.
const legalCompliance = `
LEGAL COMPLIANCE - COPYRIGHT & TRADEMARK PROTECTION:
- NEVER use specific brand names, trademarks, or company names; generalize them ("athletic footwear", "smartphone", "luxury car")
- NEVER use real person names, celebrities, or public figures; use their venue or context instead ("professional football stadium", "sold-out arena concert stage")
- NEVER reference copyrighted characters, franchises, or IP; use the setting instead ("retro arcade game room", "futuristic space station cockpit")
- ALWAYS use specific, vivid locations and scenarios in place of protected names`

func systemPromptFor(style models.StylePreset) string {
	switch style {
	case models.StyleSemiRealistic:
		return `You are an expert in crafting prompts for advertising image generation.
Create vivid scenarios with a semi-realistic, editorial-illustration feel: painterly light,
slightly heightened color, believable physics. The product is the hero of the scene.` + legalCompliance
	case models.StyleStylized:
		return `You are an expert in crafting prompts for advertising image generation.
Create bold, highly stylized scenarios: graphic shapes, exaggerated perspective, poster-like
color blocking. Realism is secondary to visual impact. The product is the hero of the scene.` + legalCompliance
	default:
		return `You are an expert in crafting DYNAMIC, ACTION-PACKED prompts for photorealistic
advertising image generation. Create vivid, dramatic scenarios that put the product IN MOTION
and IN UNEXPECTED SITUATIONS: cinematic language, concrete locations, dramatic lighting,
motion blur, energy. The product is the hero of the scene.` + legalCompliance
	}
}

// ensureDirectives re-appends any pass-through directive the model dropped.
// The round-trip guarantee is enforced here rather than trusted to the model.
func ensureDirectives(optimized string, base *models.StructuredPrompt) string {
	out := optimized
	if d := base.Context.ReferenceImage; d != "" && !containsFold(out, d) {
		out = strings.TrimRight(out, " .") + ". " + d
	}
	if d := base.Context.LanguageInstruction; d != "" && !containsFold(out, d) {
		out = strings.TrimRight(out, " .") + ". " + d
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
