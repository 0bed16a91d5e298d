package chatmodel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/ledger"
)

func TestOpenAIClient_Invoke_ParsesStructuredOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		resp := openAIResponse{Choices: []openAIChoice{{}}}
		resp.Choices[0].Message.Content = `{"action":"click"}`
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := OpenAIConfig{BaseURL: server.URL, Model: "gpt-4o", APIKey: "test-key"}
	client := NewOpenAIClient(cfg)

	result, err := client.Invoke(context.Background(), InvokeRequest{
		Messages:               []ledger.Message{{Role: ledger.RoleUser, Content: "go"}},
		StructuredOutputSchema: map[string]any{"type": "object"},
		ToolName:               "step",
	})

	require.NoError(t, err)
	assert.Equal(t, "click", result.Parsed["action"])
}

func TestOpenAIClient_Invoke_MapsToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openAIResponse{Choices: []openAIChoice{{}}}
		resp.Choices[0].Message.ToolCalls = []OpenAIToolCall{{
			ID:   "call_1",
			Type: "function",
		}}
		resp.Choices[0].Message.ToolCalls[0].Function.Name = "click_element"
		resp.Choices[0].Message.ToolCalls[0].Function.Arguments = `{"index":3}`
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "gpt-4o"})

	result, err := client.Invoke(context.Background(), InvokeRequest{
		Messages: []ledger.Message{{Role: ledger.RoleUser, Content: "go"}},
	})

	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "click_element", result.ToolCalls[0].Name)
	assert.EqualValues(t, 3, result.ToolCalls[0].Input["index"])
}

func TestOpenAIClient_Invoke_Returns401AsModelAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "gpt-4o"})

	_, err := client.Invoke(context.Background(), InvokeRequest{
		Messages: []ledger.Message{{Role: ledger.RoleUser, Content: "go"}},
	})

	require.Error(t, err)
	kind, ok := bgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bgerr.ModelAuth, kind)
}

func TestOpenAIClient_Invoke_RetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		resp := openAIResponse{Choices: []openAIChoice{{}}}
		resp.Choices[0].Message.Content = "ok"
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{BaseURL: server.URL, Model: "gpt-4o"})

	result, err := client.Invoke(context.Background(), InvokeRequest{
		Messages: []ledger.Message{{Role: ledger.RoleUser, Content: "go"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Text)
	assert.Equal(t, 2, attempts)
}

func TestAnthropicClient_Invoke_SeparatesSystemMessageAndParsesToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var body anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "be careful", body.System)
		assert.Len(t, body.Messages, 1)

		resp := anthropicResponse{Content: []anthropicContentBlock{
			{Type: "tool_use", ID: "tu_1", Name: "step", Input: map[string]any{"done": true}},
		}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	cfg := AnthropicConfig{BaseURL: server.URL, Model: "claude-sonnet-4-5", APIKey: "k"}
	client := NewAnthropicClient(cfg)

	result, err := client.Invoke(context.Background(), InvokeRequest{
		Messages: []ledger.Message{
			{Role: ledger.RoleSystem, Content: "be careful"},
			{Role: ledger.RoleUser, Content: "go"},
		},
		StructuredOutputSchema: map[string]any{"type": "object"},
		ToolName:               "step",
	})

	require.NoError(t, err)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, true, result.Parsed["done"])
}

func TestDetectProvider_PrefersAnthropicOverOpenAI(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("OPENAI_API_KEY", "o-key")

	provider, key, ok := DetectProvider()

	require.True(t, ok)
	assert.Equal(t, ProviderAnthropic, provider)
	assert.Equal(t, "a-key", key)
}

func TestDetectProvider_NoneSet(t *testing.T) {
	for _, v := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "XAI_API_KEY", "ZAI_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(v, "")
	}

	_, _, ok := DetectProvider()

	assert.False(t, ok)
}
