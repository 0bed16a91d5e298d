// Package actions implements the default action catalog (spec.md §4.1):
// navigation, element interaction, page control, and content/completion
// actions, each wired as a registry.ActionDefinition against a
// browser.BrowsingContext. Adapted from the teacher's tool-registration
// style in internal/perception/client_tool_helpers.go, generalized from
// LLM-tool definitions to browser actions.
package actions

import (
	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/registry"
)

func schema(properties map[string]any, required ...string) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

// RegisterDefaults registers the full default action catalog into reg,
// dispatching against ctx (one per task) subject to policy.
func RegisterDefaults(reg *registry.Registry, ctx browser.BrowsingContext, policy URLPolicy) {
	registerNavigation(reg, ctx, policy)
	registerElementInteraction(reg, ctx)
	registerPageControl(reg, ctx)
	registerContentAndCompletion(reg)
}

func errResult(kind bgerr.Kind, details string) (agent.ActionResult, error) {
	return agent.ActionResult{}, bgerr.New(kind, details, nil)
}

func strInput(input map[string]any, key string) (string, bool) {
	v, ok := input[key].(string)
	return v, ok
}

func intInput(input map[string]any, key string) (int, bool) {
	switch v := input[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
