package services

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketeam/adpilot/pkg/models"
)

func sampleMatches() []models.InterestMatch {
	return []models.InterestMatch{
		{UserInterest: "artificial intelligence", MatchedInterest: "machine learning", Category: "Technology", RelevanceScore: 92, PopularityScore: 95},
		{UserInterest: "running", MatchedInterest: "running", Category: "Sports", RelevanceScore: 100, PopularityScore: 88},
	}
}

func TestPromptBuilder_BuildForUser_Deterministic(t *testing.T) {
	builder := NewPromptBuilder()
	user := testUser()

	first := builder.BuildForUser("wireless earbuds", user, sampleMatches(), "", false)
	second := builder.BuildForUser("wireless earbuds", user, sampleMatches(), "", false)

	assert.Equal(t, first, second)
	assert.Equal(t, builder.Flatten(first), builder.Flatten(second))
}

func TestPromptBuilder_BuildForUser_TopThreeInterests(t *testing.T) {
	builder := NewPromptBuilder()
	matches := []models.InterestMatch{
		{MatchedInterest: "a", Category: "Technology"},
		{MatchedInterest: "b", Category: "Sports"},
		{MatchedInterest: "c", Category: "Food"},
		{MatchedInterest: "d", Category: "Travel"},
	}

	prompt := builder.BuildForUser("a product", testUser(), matches, "", false)

	assert.Equal(t, []string{"a", "b", "c"}, prompt.Context.TrendingInterests)
	assert.NotContains(t, prompt.Context.TrendCategories, "Travel")
}

func TestPromptBuilder_BuildForUser_CategoryTables(t *testing.T) {
	builder := NewPromptBuilder()

	tests := []struct {
		name         string
		category     string
		wantMood     string
		wantPalette  string
		wantFallback bool
	}{
		{name: "technology", category: "Technology", wantMood: "Sleek, modern, innovative, tech-forward", wantPalette: "sleek black"},
		{name: "food", category: "Food", wantMood: "Warm, inviting, appetizing, gourmet", wantPalette: "warm brown"},
		{name: "unknown category falls back", category: "Astrology", wantMood: "Clean, professional, lifestyle-oriented, aspirational", wantPalette: "sophisticated navy", wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches := []models.InterestMatch{{MatchedInterest: "x", Category: tt.category}}
			prompt := builder.BuildForUser("a product", testUser(), matches, "", false)

			assert.Equal(t, tt.wantMood, prompt.Mood)
			assert.Equal(t, tt.wantPalette, prompt.ColorPalette[0])
			if tt.wantFallback {
				assert.Equal(t, "Professional lifestyle setting with clean, aspirational atmosphere", prompt.Background)
			}
		})
	}
}

func TestPromptBuilder_BuildForUser_ReferenceDirective(t *testing.T) {
	builder := NewPromptBuilder()

	with := builder.BuildForUser("a product", testUser(), sampleMatches(), "", true)
	without := builder.BuildForUser("a product", testUser(), sampleMatches(), "", false)

	assert.Equal(t, ReferenceImageDirective, with.Context.ReferenceImage)
	assert.Empty(t, without.Context.ReferenceImage)
}

func TestPromptBuilder_BuildForUser_LanguageInstruction(t *testing.T) {
	builder := NewPromptBuilder()

	tests := []struct {
		name     string
		language string
		want     string
	}{
		{name: "code canonicalized", language: "de", want: "German"},
		{name: "region variant canonicalized", language: "de-DE", want: "German"},
		{name: "already a name", language: "Spanish", want: "Spanish"},
		{name: "empty yields no instruction", language: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := testUser()
			user.Language = tt.language
			prompt := builder.BuildForUser("a product", user, sampleMatches(), "", false)

			if tt.want == "" {
				assert.Empty(t, prompt.Context.LanguageInstruction)
				return
			}
			assert.Contains(t, prompt.Context.LanguageInstruction, tt.want)
		})
	}
}

func TestPromptBuilder_BuildForUser_VisualStyleByAge(t *testing.T) {
	builder := NewPromptBuilder()

	tests := []struct {
		age  int
		want string
	}{
		{age: 24, want: "Contemporary, bold, social media ready"},
		{age: 38, want: "Modern, sophisticated, professional"},
		{age: 60, want: "Classic, refined, premium quality"},
	}

	for _, tt := range tests {
		user := testUser()
		user.Age = tt.age
		prompt := builder.BuildForUser("a product", user, sampleMatches(), "", false)
		assert.True(t, strings.HasPrefix(prompt.Style, tt.want), "age %d: got style %q", tt.age, prompt.Style)
	}
}

func TestPromptBuilder_BuildForTrend(t *testing.T) {
	builder := NewPromptBuilder()

	prompt := builder.BuildForTrend("wireless earbuds", "Entertainment", []string{"gaming"}, "", true)

	assert.Equal(t, "Entertainment", prompt.Context.TrendCategory)
	assert.Equal(t, "gaming", prompt.Context.PrimaryInterest)
	assert.Contains(t, prompt.Scene, "gaming setup environment")
	assert.Equal(t, ReferenceImageDirective, prompt.Context.ReferenceImage)
}

func TestPromptBuilder_BuildForTrend_NoInterestsUsesCategory(t *testing.T) {
	builder := NewPromptBuilder()

	prompt := builder.BuildForTrend("wireless earbuds", "Sports", nil, "", false)

	assert.Equal(t, "Sports", prompt.Context.PrimaryInterest)
}

func TestPromptBuilder_Flatten(t *testing.T) {
	builder := NewPromptBuilder()
	user := testUser()
	user.Language = "de"

	prompt := builder.BuildForUser("wireless earbuds", user, sampleMatches(), "", true)
	flat := builder.Flatten(prompt)

	assert.Contains(t, flat, "wireless earbuds")
	assert.Contains(t, flat, ReferenceImageDirective)
	assert.Contains(t, flat, "German")
	assert.NotContains(t, flat, ", ,", "empty segments must be skipped")
}

func TestPromptBuilder_Flatten_EmptyPrompt(t *testing.T) {
	builder := NewPromptBuilder()

	flat := builder.Flatten(&models.StructuredPrompt{})

	assert.Contains(t, flat, "product, displayed prominently")
}

func TestPromptBuilder_FormatForAPI(t *testing.T) {
	builder := NewPromptBuilder()
	prompt := builder.BuildForUser("wireless earbuds", testUser(), sampleMatches(), "", false)

	text := builder.FormatForAPI(prompt, "text")
	assert.Equal(t, builder.Flatten(prompt), text)

	jsonForm := builder.FormatForAPI(prompt, "json")
	var decoded models.StructuredPrompt
	require.NoError(t, json.Unmarshal([]byte(jsonForm), &decoded))
	assert.Equal(t, prompt.Scene, decoded.Scene)
}
