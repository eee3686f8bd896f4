package imagegen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/metrics"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(config.ImageGenConfig{
		APIKey:          "test-key",
		BaseURL:         server.URL,
		SafetyTolerance: 2,
	}, server.Client(), testLogger())
	require.NoError(t, err)
	return client, server
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(config.ImageGenConfig{}, http.DefaultClient, testLogger())
	assert.Error(t, err)
}

func TestClient_Submit_Inline(t *testing.T) {
	var captured struct {
		Prompt           string `json:"prompt"`
		Width            int    `json:"width"`
		Height           int    `json:"height"`
		PromptUpsampling bool   `json:"prompt_upsampling"`
		SafetyTolerance  int    `json:"safety_tolerance"`
		InputImage       string `json:"input_image"`
	}
	var key string

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("X-Key")
		assert.Equal(t, "/v1/flux-pro-1.1", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "task-1",
			"result": map[string]string{"sample": "https://img.example/1.png"},
		})
	})

	tally := &metrics.Tally{}
	ctx := metrics.WithTally(context.Background(), tally)

	result, err := client.Submit(ctx, GenerationRequest{
		Prompt:         "a scene",
		Width:          1024,
		Height:         768,
		ReferenceImage: "base64data",
	})
	require.NoError(t, err)

	assert.True(t, result.Inline)
	assert.Equal(t, "https://img.example/1.png", result.SampleURL)
	assert.Equal(t, "test-key", key)
	assert.Equal(t, "a scene", captured.Prompt)
	assert.Equal(t, 2, captured.SafetyTolerance)
	assert.False(t, captured.PromptUpsampling)
	assert.Equal(t, "base64data", captured.InputImage)
	assert.Equal(t, int64(1), tally.Snapshot().ImageCalls)
}

func TestClient_Submit_Async(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "task-9",
			"polling_url": "https://api.example/poll/task-9",
		})
	})

	result, err := client.Submit(context.Background(), GenerationRequest{Prompt: "a scene", Width: 1024, Height: 768})
	require.NoError(t, err)

	assert.False(t, result.Inline)
	assert.Equal(t, "task-9", result.TaskID)
	assert.Equal(t, "https://api.example/poll/task-9", result.PollingURL)
}

func TestClient_Submit_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "error status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
		},
		{
			name: "neither result nor polling url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"id": "task-1"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, tt.handler)
			_, err := client.Submit(context.Background(), GenerationRequest{Prompt: "a scene"})
			assert.Error(t, err)
		})
	}
}

func TestClient_Poll(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-Key"), "poll carries the same credential")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "Ready",
			"result": map[string]string{"sample": "https://img.example/2.png"},
		})
	})

	result, err := client.Poll(context.Background(), server.URL+"/poll/task-1")
	require.NoError(t, err)

	assert.Equal(t, "Ready", result.Status, "status is reported verbatim")
	assert.Equal(t, "https://img.example/2.png", result.SampleURL)
}

func TestClient_Poll_PendingWithoutResult(t *testing.T) {
	client, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "Pending"})
	})

	result, err := client.Poll(context.Background(), server.URL+"/poll/task-1")
	require.NoError(t, err)

	assert.Equal(t, "Pending", result.Status)
	assert.Empty(t, result.SampleURL)
}
