package actions

import (
	"context"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/registry"
)

func registerContentAndCompletion(reg *registry.Registry) {
	reg.Register(registry.ActionDefinition{
		Name:        "cache_content",
		Description: "Record extracted page content for the validator/planner to consume.",
		InputSchema: schema(map[string]any{
			"content": strProp("text extracted from the page"),
		}, "content"),
		Handler: func(_ context.Context, input map[string]any) (agent.ActionResult, error) {
			content, _ := strInput(input, "content")
			return agent.ActionResult{ExtractedContent: browser.WrapUntrusted(content), IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "done",
		Description: "Mark the task complete with a final text answer.",
		InputSchema: schema(map[string]any{
			"text":   strProp("final answer text"),
			"intent": strProp("human-readable reason the task is considered done"),
		}, "text"),
		Handler: func(_ context.Context, input map[string]any) (agent.ActionResult, error) {
			text, _ := strInput(input, "text")
			return agent.ActionResult{IsDone: true, ExtractedContent: text, IncludeInMemory: true}, nil
		},
	})
}
