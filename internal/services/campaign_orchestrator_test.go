package services

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/imagegen"
	"github.com/marketeam/adpilot/internal/llm"
	"github.com/marketeam/adpilot/internal/store"
	"github.com/marketeam/adpilot/pkg/models"
)

const orchestratorUsers = `[
	{"id": 1, "name": "Ada", "age": 30, "occupation": "Engineer", "language": "English", "interests": ["running"], "hobbies": []},
	{"id": 2, "name": "Ben", "age": 45, "occupation": "Chef", "language": "German", "interests": ["cooking"], "hobbies": ["artificial intelligence"]},
	{"id": 3, "name": "Cy", "age": 27, "occupation": "Writer", "language": "English", "interests": ["knitting"], "hobbies": []}
]`

const orchestratorTrends = `{
	"trends": [
		{"category": "Technology", "interests": ["artificial intelligence", "machine learning"], "popularity_score": 95},
		{"category": "Sports", "interests": ["running", "basketball"], "popularity_score": 88},
		{"category": "Food", "interests": ["cooking", "street food"], "popularity_score": 82}
	]
}`

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestOrchestrator(
	t *testing.T,
	llmClient *llm.Client,
	imageClient *imagegen.Client,
	usersJSON, trendsJSON string,
) *CampaignOrchestrator {
	t.Helper()
	logger := testLogger()

	users, err := store.LoadUsers(writeTempFile(t, "users.json", usersJSON), logger)
	require.NoError(t, err)

	trends := store.NewTrendStore(writeTempFile(t, "trends.json", trendsJSON), logger)
	_, err = trends.Refresh()
	require.NoError(t, err)

	cfg := config.CampaignConfig{
		TrendFilterEnabled: true,
		SafeCategories:     []string{"Technology", "Food", "Sports"},
		CompanyValues:      []string{"positive"},
		MaxConcurrency:     4,
		ImageWidth:         1024,
		ImageHeight:        768,
	}

	builder := NewPromptBuilder()
	orchestrator := NewCampaignOrchestrator(
		users,
		trends,
		NewInterestMatcher(llmClient, logger),
		NewTrendFilter(llmClient, cfg.SafeCategories, logger),
		builder,
		NewPromptOptimizer(llmClient, builder, logger),
		NewImageGenerator(imageClient, fastGenConfig(), cfg.MaxConcurrency, logger),
		llmClient,
		cfg,
		logger,
	)
	orchestrator.pickPreview = func(n int) int { return 0 }
	return orchestrator
}

func TestCampaignOrchestrator_Generate_NoProviders(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil, nil, orchestratorUsers, orchestratorTrends)

	resp, err := orchestrator.GenerateCampaign(context.Background(), CampaignRequest{
		ProductDescription: "wireless earbuds",
	})
	require.NoError(t, err)

	// Exact matching only: Ada matches running, Ben matches cooking and
	// artificial intelligence, Cy matches nothing.
	require.Len(t, resp.Results, 2)
	assert.Equal(t, 1, resp.Results[0].UserID)
	assert.Equal(t, 2, resp.Results[1].UserID)
	assert.Len(t, resp.Results[1].GeneratedImages, 2)

	for _, result := range resp.Results {
		assert.Zero(t, result.ImagesCount)
		for _, entry := range result.GeneratedImages {
			assert.Equal(t, models.ImageFailed, entry.Status)
			assert.Nil(t, entry.ImageURL)
			assert.NotEmpty(t, entry.Message)
		}
	}

	assert.Empty(t, resp.Previews, "no provider, no preview images")
	assert.Equal(t, models.CallTally{}, resp.CallTally)
	assert.Equal(t, 1, resp.PreviewUserID)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", resp.RunID.String())

	// Prompts exist for every pair regardless: the optimizer fell back to
	// the deterministic flattening.
	prompts := orchestrator.LastRun().Prompts()
	assert.Contains(t, prompts, SubjectKey(1, "running"))
	assert.Contains(t, prompts, SubjectKey(2, "cooking"))
	assert.Contains(t, prompts, SubjectKey(2, "artificial intelligence"))
	assert.Contains(t, prompts, PreviewKey("square", 1))
	assert.Contains(t, prompts, PreviewKey("story", 1))
	assert.Contains(t, prompts, PreviewKey("banner", 1))
}

func TestCampaignOrchestrator_Generate_FullPipeline(t *testing.T) {
	llmClient := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		message := chatUserMessage(r)
		switch {
		case strings.Contains(message, "Find all relevant matches"):
			writeChatContent(w, `{"matches": [
				{"user_interest": "jogging", "matched_trend_interest": "running", "category": "Sports", "relevance_score": 95, "reasoning": "semantic"}
			]}`)
		case strings.Contains(message, "review these trends"):
			writeChatContent(w, `{"trends": [
				{"category": "Technology", "action": "KEEP"},
				{"category": "Sports", "action": "KEEP"},
				{"category": "Food", "action": "KEEP"}
			]}`)
		default:
			writeChatContent(w, "An optimized cinematic scene.")
		}
	})

	var sawReferenceImage atomic.Bool
	imageClient, _ := newTestImageGen(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt     string `json:"prompt"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			InputImage string `json:"input_image"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.InputImage != "" {
			sawReferenceImage.Store(true)
		}
		writeSubmitInline(w, "https://img.example/out.png")
	})

	orchestrator := newTestOrchestrator(t, llmClient, imageClient, orchestratorUsers, orchestratorTrends)

	resp, err := orchestrator.GenerateCampaign(context.Background(), CampaignRequest{
		ProductDescription: "wireless earbuds",
		CampaignTheme:      "summer launch",
		Style:              models.StyleRealistic,
		ProductImage:       []byte("not-really-a-jpeg"),
		ProductImageMIME:   "image/jpeg",
	})
	require.NoError(t, err)

	// Every user got the same single LLM match, so all three appear.
	require.Len(t, resp.Results, 3)
	for _, result := range resp.Results {
		require.Len(t, result.GeneratedImages, 1)
		assert.Equal(t, 1, result.ImagesCount)
		assert.Equal(t, models.ImageGenerated, result.GeneratedImages[0].Status)
		require.NotNil(t, result.GeneratedImages[0].ImageURL)
		assert.Equal(t, "https://img.example/out.png", *result.GeneratedImages[0].ImageURL)
	}

	// Three preview variants for the sampled user, each with its own
	// aspect ratio.
	require.Len(t, resp.Previews, 3)
	dims := map[string]models.ImageDimensions{}
	for _, preview := range resp.Previews {
		dims[preview.SubjectKey] = preview.Dimensions
	}
	assert.Equal(t, models.ImageDimensions{Width: 1024, Height: 1024}, dims[PreviewKey("square", 1)])
	assert.Equal(t, models.ImageDimensions{Width: 768, Height: 1344}, dims[PreviewKey("story", 1)])
	assert.Equal(t, models.ImageDimensions{Width: 1344, Height: 768}, dims[PreviewKey("banner", 1)])

	assert.True(t, sawReferenceImage.Load(), "product photo is forwarded to the image provider")

	// 1 filter call + 3 match calls on the fast tier; 1 image analysis +
	// 4 optimizer calls (three user pairs, one preview) on the quality
	// tier; 3 user images + 3 previews submitted.
	assert.Equal(t, int64(4), resp.CallTally.FastLLMCalls)
	assert.Equal(t, int64(5), resp.CallTally.QualityLLMCalls)
	assert.Equal(t, int64(6), resp.CallTally.ImageCalls)
}

func TestCampaignOrchestrator_Generate_NoTrendData(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil, nil, orchestratorUsers, `{"trends": []}`)

	_, err := orchestrator.GenerateCampaign(context.Background(), CampaignRequest{
		ProductDescription: "wireless earbuds",
	})

	assert.ErrorIs(t, err, store.ErrNoTrendData)
	assert.Nil(t, orchestrator.LastRun())
}

func TestCampaignOrchestrator_Generate_NoMatches(t *testing.T) {
	users := `[{"id": 1, "name": "Ada", "age": 30, "interests": ["knitting"], "hobbies": []}]`
	orchestrator := newTestOrchestrator(t, nil, nil, users, orchestratorTrends)

	_, err := orchestrator.GenerateCampaign(context.Background(), CampaignRequest{
		ProductDescription: "wireless earbuds",
	})

	assert.ErrorIs(t, err, ErrNoMatches)
}

func TestCampaignOrchestrator_LastRun(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil, nil, orchestratorUsers, orchestratorTrends)

	assert.Nil(t, orchestrator.LastRun())

	resp, err := orchestrator.GenerateCampaign(context.Background(), CampaignRequest{
		ProductDescription: "wireless earbuds",
	})
	require.NoError(t, err)

	run := orchestrator.LastRun()
	require.NotNil(t, run)
	assert.Equal(t, resp, run.Response)

	results := run.MatchResults(orchestrator.users)
	require.Len(t, results, 2)
	assert.Equal(t, "Ada", results[0].UserName)
	assert.Equal(t, 2, results[1].MatchCount)
}

func TestCampaignOrchestrator_Generate_InvalidStyleDefaults(t *testing.T) {
	orchestrator := newTestOrchestrator(t, nil, nil, orchestratorUsers, orchestratorTrends)

	resp, err := orchestrator.GenerateCampaign(context.Background(), CampaignRequest{
		ProductDescription: "wireless earbuds",
		Style:              models.StylePreset("vaporwave"),
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Results)
}
