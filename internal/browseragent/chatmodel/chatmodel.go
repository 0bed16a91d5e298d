// Package chatmodel implements the ChatModel capability (spec.md §6):
// structured/tool-calling invocation of a language model with cancellation
// support. Adapted from the teacher's internal/perception multi-provider
// LLMClient design, narrowed to the single Invoke contract the
// orchestration core actually needs.
package chatmodel

import (
	"context"

	"browseragent/internal/browseragent/ledger"
)

// ToolDefinition describes one callable tool, mirroring the teacher's
// internal/types.ToolDefinition (the shape actually consumed by every
// provider client in internal/perception).
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]any
}

// InvokeRequest bundles the parameters ChatModel.Invoke needs, matching
// spec.md §6's invoke(messages, {signal, structured_output_schema, tool_name}).
type InvokeRequest struct {
	Messages              []ledger.Message
	StructuredOutputSchema map[string]any
	ToolName              string
}

// InvokeResult is either a parsed structured record (Parsed != nil) or a
// raw tool-call (ToolCalls non-empty) from which the first tool call's
// arguments can be extracted, per spec.md §4.2 step 6.
type InvokeResult struct {
	Parsed    map[string]any
	Text      string
	ToolCalls []ToolCall

	// ThoughtSummary carries the text of Gemini thought parts (that text is
	// also included in Text) when the provider is Gemini. No client fills
	// ThoughtSignature. Neither field is read by the core loop.
	ThoughtSummary   string
	ThoughtSignature string
}

// ChatModel is the capability the Planner, Navigator, and Validator invoke
// against. Concrete providers live in provider_*.go; callers may also
// substitute a fake for testing.
type ChatModel interface {
	Invoke(ctx context.Context, req InvokeRequest) (InvokeResult, error)
}
