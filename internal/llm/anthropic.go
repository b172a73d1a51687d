package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// AnthropicConfig holds the settings for an Anthropic-compatible
// message API endpoint.
type AnthropicConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// DefaultAnthropicConfig returns the stock endpoint settings.
func DefaultAnthropicConfig(apiKey string) AnthropicConfig {
	return AnthropicConfig{
		APIKey:       apiKey,
		BaseURL:      "https://api.anthropic.com/v1",
		Model:        "claude-sonnet-4-5",
		MaxTokens:    8192,
		Temperature:  0.1,
		Timeout:      5 * time.Minute,
		MaxRetries:   3,
		RetryBackoff: time.Second,
	}
}

// AnthropicClient talks to an Anthropic-compatible messages endpoint.
type AnthropicClient struct {
	cfg        AnthropicConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAnthropicClient creates a client, filling unset config fields with
// the defaults from DefaultAnthropicConfig.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	def := DefaultAnthropicConfig(cfg.APIKey)
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &AnthropicClient{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Wire format for the messages endpoint.

type anthropicMessage struct {
	Role    string               `json:"role"`
	Content []anthropicWireBlock `json:"content"`
}

type anthropicWireBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicWireBlock `json:"content"`
	StopReason string               `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation and returns the model's next turn.
// Rate-limit (429) and server-side (5xx) failures are retried with
// exponential backoff; other failures return immediately.
func (c *AnthropicClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if c.cfg.APIKey == "" {
		return nil, fmt.Errorf("api key not configured")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(c.wireRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.RetryBackoff * time.Duration(1<<uint(attempt-1))
			c.logger.Debug("retrying model request", "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, retryable, err := c.send(ctx, body)
		if err == nil {
			c.logger.Debug("model request completed",
				"duration", time.Since(start),
				"stop_reason", resp.StopReason,
				"blocks", len(resp.Content))
			return resp, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *AnthropicClient) send(ctx context.Context, body []byte) (*Response, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case httpResp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("rate limited (429)")
	case httpResp.StatusCode >= 500:
		return nil, true, fmt.Errorf("server error (%d): %s", httpResp.StatusCode, respBody)
	case httpResp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("request failed with status %d: %s", httpResp.StatusCode, respBody)
	}

	var wire anthropicResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, false, fmt.Errorf("failed to parse response: %w", err)
	}
	if wire.Error != nil {
		return nil, false, fmt.Errorf("api error: %s", wire.Error.Message)
	}
	if len(wire.Content) == 0 {
		return nil, false, fmt.Errorf("empty completion")
	}

	resp := &Response{StopReason: wire.StopReason}
	for _, b := range wire.Content {
		resp.Content = append(resp.Content, ContentBlock{
			Type:      b.Type,
			Text:      b.Text,
			ID:        b.ID,
			Name:      b.Name,
			Input:     b.Input,
			ToolUseID: b.ToolUseID,
			Content:   b.Content,
			IsError:   b.IsError,
		})
	}
	return resp, false, nil
}

func (c *AnthropicClient) wireRequest(req *Request) anthropicRequest {
	wire := anthropicRequest{
		Model:       c.cfg.Model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
	}
	if wire.MaxTokens == 0 {
		wire.MaxTokens = c.cfg.MaxTokens
	}
	if wire.Temperature == 0 {
		wire.Temperature = c.cfg.Temperature
	}

	for _, m := range req.Messages {
		wm := anthropicMessage{Role: m.Role}
		for _, b := range m.Content {
			wm.Content = append(wm.Content, anthropicWireBlock{
				Type:      b.Type,
				Text:      b.Text,
				ID:        b.ID,
				Name:      b.Name,
				Input:     b.Input,
				ToolUseID: b.ToolUseID,
				Content:   b.Content,
				IsError:   b.IsError,
			})
		}
		wire.Messages = append(wire.Messages, wm)
	}
	for _, t := range req.Tools {
		schema := t.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object"}
		}
		wire.Tools = append(wire.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: schema,
		})
	}
	return wire
}
