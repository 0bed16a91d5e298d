package chatmodel

import (
	"context"
	"encoding/json"

	"google.golang.org/genai"

	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/ledger"
)

// GeminiConfig configures the google.golang.org/genai-backed provider. Unlike
// the other providers, Gemini is exercised through the official SDK rather
// than a hand-rolled HTTP client, since the SDK already owns request
// construction, retries, and response typing.
type GeminiConfig struct {
	APIKey string
	Model  string
}

func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{Model: "gemini-2.0-flash"}
}

// GeminiClient implements ChatModel against the Gemini API via genai.Client.
type GeminiClient struct {
	cfg    GeminiConfig
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, bgerr.Wrap(bgerr.ModelFormat, err, "failed to construct genai client")
	}
	return &GeminiClient{cfg: cfg, client: client}, nil
}

func rolesToGeminiContents(messages []ledger.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == ledger.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(m.Content)},
		})
	}
	return contents
}

func (c *GeminiClient) Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error) {
	var systemInstruction *genai.Content
	msgs := make([]ledger.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			systemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(m.Content)}}
			continue
		}
		msgs = append(msgs, m)
	}

	genCfg := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if req.StructuredOutputSchema != nil {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, rolesToGeminiContents(msgs), genCfg)
	if err != nil {
		if ctx.Err() != nil {
			return InvokeResult{}, bgerr.Wrap(bgerr.RequestCancelled, ctx.Err(), "request cancelled")
		}
		return InvokeResult{}, bgerr.Wrap(bgerr.ModelFormat, err, "gemini generate content failed")
	}
	if len(resp.Candidates) == 0 {
		return InvokeResult{}, bgerr.New(bgerr.ModelFormat, "empty candidates", nil)
	}

	result := InvokeResult{}
	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				result.Text += part.Text
			}
			if part.Thought {
				result.ThoughtSummary += part.Text
			}
		}
	}

	if req.StructuredOutputSchema != nil && result.Text != "" {
		var parsed map[string]any
		if jsonErr := json.Unmarshal([]byte(result.Text), &parsed); jsonErr == nil {
			result.Parsed = parsed
		}
	}

	return result, nil
}
