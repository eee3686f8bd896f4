package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/marketeam/adpilot/internal/config"
	"github.com/marketeam/adpilot/internal/metrics"
)

// Client talks to the image-generation provider. The provider answers a
// submission either with an inline result or with a task id plus polling
// URL; the caller owns the polling loop. A nil *Client means the capability
// is not configured.
type Client struct {
	apiKey          string
	baseURL         string
	safetyTolerance int
	httpClient      *http.Client
	logger          *logrus.Logger
}

// GenerationRequest is one image submission. ReferenceImage, when set, is
// the base64-encoded product photo the scene should reuse.
type GenerationRequest struct {
	Prompt         string
	Width          int
	Height         int
	ReferenceImage string
}

// SubmitResult is the provider's answer to a submission: either SampleURL
// is set (inline result) or PollingURL points at the async task.
type SubmitResult struct {
	TaskID     string
	PollingURL string
	SampleURL  string
	Inline     bool
}

// PollResult is one poll of an async task. Status is reported verbatim;
// callers compare it case-insensitively.
type PollResult struct {
	Status    string
	SampleURL string
}

type wireRequest struct {
	Prompt           string `json:"prompt"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	PromptUpsampling bool   `json:"prompt_upsampling"`
	SafetyTolerance  int    `json:"safety_tolerance"`
	InputImage       string `json:"input_image,omitempty"`
}

type wireResult struct {
	Sample string `json:"sample"`
}

type wireSubmitResponse struct {
	ID         string      `json:"id"`
	PollingURL string      `json:"polling_url"`
	Result     *wireResult `json:"result"`
}

type wirePollResponse struct {
	Status string      `json:"status"`
	Result *wireResult `json:"result"`
}

// New builds an image-generation client. An API key is required; the caller
// leaves the client nil when none is configured.
func New(cfg config.ImageGenConfig, httpClient *http.Client, logger *logrus.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("imagegen: api key is required")
	}
	return &Client{
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		safetyTolerance: cfg.SafetyTolerance,
		httpClient:      httpClient,
		logger:          logger,
	}, nil
}

// Submit sends one generation request.
func (c *Client) Submit(ctx context.Context, req GenerationRequest) (*SubmitResult, error) {
	payload, err := json.Marshal(wireRequest{
		Prompt:           req.Prompt,
		Width:            req.Width,
		Height:           req.Height,
		PromptUpsampling: false,
		SafetyTolerance:  c.safetyTolerance,
		InputImage:       req.ReferenceImage,
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: marshal request: %w", err)
	}

	url := c.baseURL + "/v1/flux-pro-1.1"
	raw, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return nil, err
	}

	metrics.TallyFrom(ctx).RecordImageCall()

	var decoded wireSubmitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("imagegen: decode response: %w", err)
	}

	if decoded.Result != nil {
		return &SubmitResult{Inline: true, SampleURL: decoded.Result.Sample}, nil
	}
	if decoded.PollingURL == "" {
		return nil, fmt.Errorf("imagegen: response carried neither result nor polling_url")
	}
	return &SubmitResult{TaskID: decoded.ID, PollingURL: decoded.PollingURL}, nil
}

// Poll fetches the current state of an async task. Polls go to the
// provider-supplied URL with the same credential header as the submission.
func (c *Client) Poll(ctx context.Context, pollingURL string) (*PollResult, error) {
	raw, err := c.do(ctx, http.MethodGet, pollingURL, nil)
	if err != nil {
		return nil, err
	}

	var decoded wirePollResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("imagegen: decode poll response: %w", err)
	}

	result := &PollResult{Status: decoded.Status}
	if decoded.Result != nil {
		result.SampleURL = decoded.Result.Sample
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("imagegen: build request: %w", err)
	}
	req.Header.Set("X-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("imagegen: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imagegen: unexpected status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	return raw, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
