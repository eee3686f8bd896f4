package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/metrics"
)

// Client talks to an OpenAI-compatible chat-completions endpoint. A nil
// *Client is the "capability absent" state: components that hold a nil
// client fall back to their deterministic strategy instead of calling out.
type Client struct {
	apiKey       string
	baseURL      string
	fastModel    string
	qualityModel string
	httpClient   *http.Client
	logger       *logrus.Logger
}

// ChatRequest is one chat-completion call. Tier selects the model and the
// cost bucket the call is tallied under.
type ChatRequest struct {
	Tier        metrics.Tier
	System      string
	User        string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

type wireMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type wireRequest struct {
	Model          string          `json:"model"`
	Messages       []wireMessage   `json:"messages"`
	Temperature    float32         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// New builds a chat client. The caller decides what to do when no API key is
// configured; New itself requires one.
func New(cfg config.LLMConfig, httpClient *http.Client, logger *logrus.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		fastModel:    cfg.FastModel,
		qualityModel: cfg.QualityModel,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// Complete issues one chat-completion call and returns the trimmed message
// content. There is no retry here; callers absorb failures through their
// fallback paths.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (string, error) {
	model := c.fastModel
	if req.Tier == metrics.TierQuality {
		model = c.qualityModel
	}

	messages := make([]wireMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, wireMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, wireMessage{Role: "user", Content: req.User})

	body := wireRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	return c.send(ctx, req.Tier, body)
}

// AnalyzeImage asks the vision model for a product-image description that
// can be embedded into an image-generation prompt. It degrades to a generic
// placeholder on any failure, matching the soft-failure contract of the
// pipeline's LLM stages.
func (c *Client) AnalyzeImage(ctx context.Context, imageData []byte, mimeType string) string {
	const fallback = "Product image"
	if c == nil || len(imageData) == 0 {
		return fallback
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	system := `You are an expert in analyzing product images for advertising.
Describe the image following these strict guidelines:
1. Use quotation marks for any visible text: "The text 'OPEN' appears in red neon letters above the door"
2. Specify placement: where text appears relative to other elements
3. Describe style: "elegant serif typography", "bold industrial lettering", "handwritten script"
4. Font size: "large headline text", "small body copy", "medium subheading"
5. Color: use hex codes for brand text if possible, or precise color names
6. Describe the product's key visual characteristics, perspective, and composition.`

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageData))
	body := wireRequest{
		Model: c.qualityModel,
		Messages: []wireMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: []map[string]any{
				{"type": "text", "text": "Analyze this product image for use in an image generation prompt."},
				{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
			}},
		},
		MaxTokens: 300,
	}

	analysis, err := c.send(ctx, metrics.TierQuality, body)
	if err != nil {
		c.logger.WithError(err).Warn("Image analysis failed, using generic description")
		return fallback
	}
	if analysis == "" {
		return fallback
	}
	return analysis
}

func (c *Client) send(ctx context.Context, tier metrics.Tier, body wireRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	metrics.TallyFrom(ctx).RecordLLMCall(tier)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: read response: %w", err)
	}

	var decoded wireResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("llm: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return "", fmt.Errorf("llm: %s (%s)", decoded.Error.Message, decoded.Error.Type)
		}
		return "", fmt.Errorf("llm: unexpected status %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("llm: response contained no choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	// Some models wrap output in markdown fences even when told not to.
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content), nil
}
