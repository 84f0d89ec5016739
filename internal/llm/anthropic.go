package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lucid/internal/logging"
)

const (
	defaultAnthropicBaseURL     = "https://api.anthropic.com/v1"
	defaultAnthropicVersion     = "2023-06-01"
	computerUseBetaHeader       = "computer-use-2025-01-24"
	anthropicVersionHeaderKey   = "anthropic-version"
	anthropicBetaHeaderKey      = "anthropic-beta"
	anthropicAPIKeyHeaderKey    = "x-api-key"
	anthropicMessagesPath       = "/messages"
	anthropicRequestContentType = "application/json"

	maxResponseBodySize = 32 << 20
)

// Config configures the Anthropic client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type anthropicClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewAnthropicClient creates a Messages API client with the computer-use
// beta enabled.
func NewAnthropicClient(model string, config Config) (Client, error) {
	if model == "" {
		return nil, fmt.Errorf("llm: model is required")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultAnthropicBaseURL
	}

	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = config.Timeout
	}

	return &anthropicClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewComponentLogger("AnthropicClient"),
	}, nil
}

func (c *anthropicClient) Model() string {
	return c.model
}

type anthropicPayload struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	Tools     []Tool    `json:"tools,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Response
	Error *anthropicError `json:"error"`
}

func (c *anthropicClient) CreateMessage(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	payload := anthropicPayload{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  req.Messages,
		Tools:     req.Tools,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + anthropicMessagesPath
	c.logger.Debug("POST %s model=%s messages=%d", endpoint, c.model, len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", anthropicRequestContentType)
	httpReq.Header.Set(anthropicAPIKeyHeaderKey, c.apiKey)
	httpReq.Header.Set(anthropicVersionHeaderKey, defaultAnthropicVersion)
	if len(req.Tools) > 0 {
		httpReq.Header.Set(anthropicBetaHeaderKey, computerUseBetaHeader)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("Error response (%d): %s", resp.StatusCode, truncate(string(respBody), 500))
		return nil, fmt.Errorf("llm API status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return nil, fmt.Errorf("llm API error %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	c.logger.Debug("Response: stop_reason=%s blocks=%d usage=%d+%d tokens",
		apiResp.StopReason, len(apiResp.Content),
		apiResp.Usage.InputTokens, apiResp.Usage.OutputTokens)

	return &apiResp.Response, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
