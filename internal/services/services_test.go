package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/imagegen"
	"github.com/marketeam/adpilot/internal/llm"
	"github.com/marketeam/adpilot/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

// newTestLLM spins up a fake chat-completions endpoint and a client pointed
// at it. The handler receives the raw request and must write the provider
// response itself.
func newTestLLM(t *testing.T, handler http.HandlerFunc) *llm.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := llm.New(config.LLMConfig{
		APIKey:       "test-key",
		BaseURL:      server.URL,
		FastModel:    "fast-model",
		QualityModel: "quality-model",
	}, server.Client(), testLogger())
	require.NoError(t, err)
	return client
}

// writeChatContent writes a minimal chat-completions response whose single
// choice carries the given content.
func writeChatContent(w http.ResponseWriter, content string) {
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// chatUserMessage extracts the user-role message text from a raw
// chat-completions request body. Runs inside handler goroutines, so it
// swallows decode errors instead of failing the test directly.
func chatUserMessage(r *http.Request) string {
	var body struct {
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return ""
	}
	for _, msg := range body.Messages {
		if msg.Role == "user" {
			var text string
			if err := json.Unmarshal(msg.Content, &text); err == nil {
				return text
			}
		}
	}
	return ""
}

// newTestImageGen spins up a fake image provider and a client pointed at it.
func newTestImageGen(t *testing.T, handler http.HandlerFunc) (*imagegen.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := imagegen.New(config.ImageGenConfig{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		SafetyTolerance: 2,
	}, server.Client(), testLogger())
	require.NoError(t, err)
	return client, server
}

func testTrends() []models.TrendCategory {
	return []models.TrendCategory{
		{Category: "Technology", Interests: []string{"artificial intelligence", "machine learning"}, PopularityScore: 95},
		{Category: "Sports", Interests: []string{"running", "basketball"}, PopularityScore: 88},
		{Category: "Food", Interests: []string{"cooking", "street food"}, PopularityScore: 82},
	}
}

func testUser() *models.UserProfile {
	return &models.UserProfile{
		ID:         1,
		Name:       "Elena Rodriguez",
		Age:        28,
		Location:   "Barcelona, Spain",
		Language:   "Spanish",
		Occupation: "UX Designer",
		Interests:  []string{"artificial intelligence", "running"},
		Hobbies:    []string{"cooking"},
	}
}
