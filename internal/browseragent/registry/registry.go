// Package registry implements the Action Schema Registry: a name-keyed
// catalog of ActionDefinitions, dynamic union-schema assembly for the
// model's tool contract, and validated dispatch.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
)

// Handler executes one action given validated input.
type Handler func(ctx context.Context, input map[string]any) (agent.ActionResult, error)

// ActionDefinition describes one registrable action. InputSchema is a
// minimal JSON-Schema-shaped map: {"type":"object","properties":{...},
// "required":[...]}; empty means the action takes no input.
type ActionDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	HasIndex    bool
	Handler     Handler
}

// Registry holds registered ActionDefinitions, read-only after startup
// per spec.md §5's resource model.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]ActionDefinition
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byName: make(map[string]ActionDefinition)}
}

// Register adds or overwrites a definition. Name must be unique per the
// caller's intent; later registrations overwrite earlier ones, matching
// spec.md §4.1's contract.
func (r *Registry) Register(def ActionDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[def.Name] = def
}

// notRegisteredError is returned by Get (and wrapped by Dispatch) for
// unknown names.
type notRegisteredError struct{ name string }

func (e *notRegisteredError) Error() string { return fmt.Sprintf("action %q not registered", e.name) }

// Get returns the definition for name, or an error if it was never
// registered.
func (r *Registry) Get(name string) (ActionDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	if !ok {
		return ActionDefinition{}, &notRegisteredError{name: name}
	}
	return def, nil
}

// Names returns all registered action names in stable, sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// BuildModelOutputSchema produces a schema describing
// {current_state, action: [OneOf(actions)*]} where each array element is a
// nullable, partial record keyed by one registered action name. The "one
// inhabited key" constraint is not encoded structurally (spec.md §9); the
// navigator's output parser enforces it by skipping records with none or
// several non-null keys.
func (r *Registry) BuildModelOutputSchema() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	actionProps := make(map[string]any, len(r.byName))
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		def := r.byName[name]
		schema := def.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		actionProps[name] = map[string]any{
			"description": def.Description,
			"oneOf":       []any{schema, map[string]any{"type": "null"}},
		}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"current_state": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"evaluation_previous_goal": map[string]any{"type": "string"},
					"memory":                   map[string]any{"type": "string"},
					"next_goal":                map[string]any{"type": "string"},
				},
				"required": []string{"evaluation_previous_goal", "memory", "next_goal"},
			},
			"action": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": actionProps,
				},
			},
		},
		"required": []string{"current_state", "action"},
	}
}

// Dispatch invokes the named action's handler against rawInput, validating
// required fields first.
func (r *Registry) Dispatch(ctx context.Context, name string, rawInput map[string]any) (agent.ActionResult, error) {
	def, err := r.Get(name)
	if err != nil {
		return agent.ActionResult{}, bgerr.Wrap(bgerr.InvalidInput, err, "unknown action")
	}

	if len(def.InputSchema) == 0 {
		return def.Handler(ctx, map[string]any{})
	}

	if err := validate(def.InputSchema, rawInput); err != nil {
		return agent.ActionResult{}, bgerr.Wrap(bgerr.InvalidInput, err, fmt.Sprintf("invalid input for %s", name))
	}

	return def.Handler(ctx, rawInput)
}

// IndexOf extracts the "index" field from rawInput if def is index-bearing,
// returning ok=false otherwise or when the field is absent/non-numeric.
func IndexOf(def ActionDefinition, rawInput map[string]any) (int, bool) {
	if !def.HasIndex {
		return 0, false
	}
	raw, ok := rawInput["index"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
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

// validate performs minimal required-field presence/type checking against
// a JSON-Schema-shaped map. It intentionally does not implement the full
// JSON Schema spec: no third-party schema validator is wired into this
// module (see DESIGN.md) because the registry's schemas are small,
// registry-authored object shapes, not externally supplied documents.
func validate(schema, input map[string]any) error {
	required, _ := schema["required"].([]string)
	for _, field := range required {
		if _, ok := input[field]; !ok {
			return fmt.Errorf("missing required field %q", field)
		}
	}
	return nil
}
