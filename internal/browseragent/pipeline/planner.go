package pipeline

import (
	"fmt"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/chatmodel"
	"browseragent/internal/browseragent/eventbus"
	"browseragent/internal/browseragent/ledger"
)

const plannerToolName = "planner_step"

// Planner implements spec.md §4.3: every PlanningInterval steps, produce a
// plan record and append it to the ledger.
type Planner struct {
	Model   chatmodel.ChatModel
	Ledger  *ledger.Ledger
	Bus     *eventbus.Bus
	Options agent.TaskOptions
}

func plannerSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"observation": map[string]any{"type": "string"},
			"challenges":  map[string]any{"type": "string"},
			"done":        map[string]any{"type": "boolean"},
			"next_steps":  map[string]any{"type": "string"},
			"reasoning":   map[string]any{"type": "string"},
		},
		"required": []string{"observation", "challenges", "done", "next_steps", "reasoning"},
	}
}

// Run produces one PlannerOutput and appends it to the ledger.
func (p *Planner) Run(execCtx *agent.ExecutionContext) (agent.PlannerOutput, error) {
	ctx := execCtx.Context()

	p.Bus.Emit(eventbus.ActorPlanner, eventbus.StateStepStart, eventbus.Data{
		TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: execCtx.CurrentPageBreadcrumb,
	}, "")

	messages := p.Ledger.GetAll()
	if !p.Options.UseVisionForPlanner && p.Options.UseVision {
		messages = stripAttachments(messages)
	}

	result, err := p.Model.Invoke(ctx, chatmodel.InvokeRequest{
		Messages:               messages,
		StructuredOutputSchema: plannerSchema(),
		ToolName:               plannerToolName,
	})
	if err != nil {
		return agent.PlannerOutput{}, bgerr.Wrap(bgerr.ModelFormat, err, "planner invocation failed")
	}

	raw := result.Parsed
	if raw == nil {
		for _, call := range result.ToolCalls {
			if call.Name == plannerToolName {
				raw = call.Input
				break
			}
		}
	}
	if raw == nil {
		return agent.PlannerOutput{}, bgerr.New(bgerr.ModelFormat, "planner produced no structured output", nil)
	}

	out := agent.PlannerOutput{}
	out.Observation, _ = raw["observation"].(string)
	out.Challenges, _ = raw["challenges"].(string)
	out.Done, _ = raw["done"].(bool)
	out.NextSteps, _ = raw["next_steps"].(string)
	out.Reasoning, _ = raw["reasoning"].(string)

	p.Ledger.AddPlan(fmt.Sprintf("observation: %s; next_steps: %s", out.Observation, out.NextSteps))

	p.Bus.Emit(eventbus.ActorPlanner, eventbus.StateStepOK, eventbus.Data{
		TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: out.NextSteps,
	}, "")

	return out, nil
}

// stripAttachments removes the multimodal attachments of the last message
// (earlier messages keep theirs), used when vision is enabled globally but
// disabled for the planner specifically.
func stripAttachments(messages []ledger.Message) []ledger.Message {
	out := make([]ledger.Message, len(messages))
	copy(out, messages)
	if len(out) > 0 {
		last := out[len(out)-1]
		last.Attachments = nil
		out[len(out)-1] = last
	}
	return out
}
