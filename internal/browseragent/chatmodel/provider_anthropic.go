package chatmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"browseragent/internal/browseragent/bgerr"
)

// AnthropicConfig configures the Anthropic Messages API provider, adapted
// from internal/perception/client.go's AnthropicClient/AnthropicConfig.
type AnthropicConfig struct {
	APIKey string
	BaseURL string
	Model   string
	MaxTokens int
}

func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{BaseURL: "https://api.anthropic.com/v1", Model: "claude-sonnet-4-5", MaxTokens: 4096}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	System    string              `json:"system,omitempty"`
	Messages  []anthropicMessage  `json:"messages"`
	Tools     []anthropicTool     `json:"tools,omitempty"`
}

type anthropicContentBlock struct {
	Type  string         `json:"type"`
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient implements ChatModel against the Anthropic Messages API.
type AnthropicClient struct {
	cfg     AnthropicConfig
	http    *http.Client
	limiter *rateLimiter
}

func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	return &AnthropicClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: 90 * time.Second},
		limiter: &rateLimiter{minInterval: 200 * time.Millisecond},
	}
}

func (c *AnthropicClient) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return InvokeResult{}, bgerr.Wrap(bgerr.RequestCancelled, err, "cancelled before request")
	}

	var system string
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, anthropicMessage{Role: string(m.Role), Content: m.Content})
	}

	body := anthropicRequest{Model: c.cfg.Model, MaxTokens: c.cfg.MaxTokens, System: system, Messages: msgs}
	if req.StructuredOutputSchema != nil {
		body.Tools = []anthropicTool{{
			Name:        req.ToolName,
			Description: "Emit the structured step output.",
			InputSchema: req.StructuredOutputSchema,
		}}
	}

	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}

	raw, err := postJSONWithRetry(ctx, c.http, c.cfg.BaseURL+"/messages", headers, body)
	if err != nil {
		return InvokeResult{}, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return InvokeResult{}, bgerr.Wrap(bgerr.ModelFormat, err, "failed to parse response")
	}
	if resp.Error != nil {
		return InvokeResult{}, bgerr.New(bgerr.ModelFormat, resp.Error.Message, nil)
	}

	result := InvokeResult{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ToolCall{ID: block.ID, Name: block.Name, Input: block.Input})
			if block.Name == req.ToolName {
				result.Parsed = block.Input
			}
		}
	}

	return result, nil
}
