package chatmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"browseragent/internal/browseragent/bgerr"
)

// OpenAIConfig configures an OpenAI-wire-format provider. The same struct
// backs xAI and OpenRouter by pointing BaseURL at their endpoints, exactly
// as the teacher's client_xai.go/client_openrouter.go reuse the OpenAI
// request/response shapes.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	ExtraHeaders map[string]string
}

func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{BaseURL: "https://api.openai.com/v1", Model: "gpt-4o"}
}

func DefaultXAIConfig() OpenAIConfig {
	return OpenAIConfig{BaseURL: "https://api.x.ai/v1", Model: "grok-2-latest"}
}

func DefaultOpenRouterConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:      "https://openrouter.ai/api/v1",
		Model:        "anthropic/claude-3.5-sonnet",
		ExtraHeaders: map[string]string{"HTTP-Referer": "https://github.com", "X-Title": "browseragent"},
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string         `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Tools          []OpenAITool   `json:"tools,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type openAIChoice struct {
	Message struct {
		Content   string           `json:"content"`
		ToolCalls []OpenAIToolCall `json:"tool_calls"`
	} `json:"message"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAIClient implements ChatModel against the OpenAI chat-completions
// wire format, adapted from internal/perception/client.go's OpenAIClient.
type OpenAIClient struct {
	cfg    OpenAIConfig
	http   *http.Client
	limiter *rateLimiter
}

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: 90 * time.Second},
		limiter: &rateLimiter{minInterval: 100 * time.Millisecond},
	}
}

func (c *OpenAIClient) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	if err := c.limiter.wait(ctx); err != nil {
		return InvokeResult{}, bgerr.Wrap(bgerr.RequestCancelled, err, "cancelled before request")
	}

	msgs := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openAIMessage{Role: string(m.Role), Content: m.Content})
	}

	body := openAIRequest{Model: c.cfg.Model, Messages: msgs}
	if req.StructuredOutputSchema != nil {
		body.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.ToolName,
				"schema": req.StructuredOutputSchema,
				"strict": true,
			},
		}
	}

	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	for k, v := range c.cfg.ExtraHeaders {
		headers[k] = v
	}

	raw, err := postJSONWithRetry(ctx, c.http, c.cfg.BaseURL+"/chat/completions", headers, body)
	if err != nil {
		return InvokeResult{}, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return InvokeResult{}, bgerr.Wrap(bgerr.ModelFormat, err, "failed to parse response")
	}
	if resp.Error != nil {
		return InvokeResult{}, bgerr.New(bgerr.ModelFormat, resp.Error.Message, nil)
	}
	if len(resp.Choices) == 0 {
		return InvokeResult{}, bgerr.New(bgerr.ModelFormat, "empty choices", nil)
	}

	choice := resp.Choices[0]
	result := InvokeResult{Text: choice.Message.Content}

	if len(choice.Message.ToolCalls) > 0 {
		calls, err := MapOpenAIToolCallsToInternal(choice.Message.ToolCalls)
		if err != nil {
			return InvokeResult{}, bgerr.Wrap(bgerr.ModelFormat, err, "failed to map tool calls")
		}
		result.ToolCalls = calls
	}

	if req.StructuredOutputSchema != nil && choice.Message.Content != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(choice.Message.Content), &parsed); err == nil {
			result.Parsed = parsed
		}
	}

	return result, nil
}

