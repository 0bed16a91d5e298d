package pipeline

import (
	"fmt"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/chatmodel"
	"browseragent/internal/browseragent/eventbus"
	"browseragent/internal/browseragent/ledger"
)

const validatorToolName = "validator_step"

// Validator implements spec.md §4.4: after a navigator step claiming
// completion, decide whether the extracted content satisfies the task.
type Validator struct {
	Model  chatmodel.ChatModel
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus
}

func validatorSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_valid": map[string]any{"type": "boolean"},
			"reason":   map[string]any{"type": "string"},
			"answer":   map[string]any{"type": "string"},
		},
		"required": []string{"is_valid", "reason"},
	}
}

// mostRecentExtractedContent finds the latest non-error ActionResult's
// ExtractedContent and SourceURL, per spec.md §4.4's "data to validate".
func mostRecentExtractedContent(results []agent.ActionResult) (content, sourceURL string) {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if r.Error == "" && r.ExtractedContent != "" {
			return r.ExtractedContent, r.SourceURL
		}
	}
	return "", ""
}

// Run produces one ValidatorOutput from the task's most recent results.
func (v *Validator) Run(execCtx *agent.ExecutionContext) (agent.ValidatorOutput, error) {
	ctx := execCtx.Context()

	content, sourceURL := mostRecentExtractedContent(execCtx.GetLastActionResults())

	userMsg := fmt.Sprintf("Data to validate: %s", content)
	if plan := v.Ledger.LatestPlan(); plan != "" {
		userMsg += fmt.Sprintf("\nActive plan: %s", plan)
	}
	if sourceURL != "" {
		userMsg += fmt.Sprintf("\nSource URL: %s", sourceURL)
	}

	messages := append(v.Ledger.GetAll(), ledger.Message{Role: ledger.RoleUser, Content: userMsg})

	v.Bus.Emit(eventbus.ActorValidator, eventbus.StateStepStart, eventbus.Data{TaskID: execCtx.TaskID, Step: execCtx.Step()}, "")

	result, err := v.Model.Invoke(ctx, chatmodel.InvokeRequest{
		Messages:               messages,
		StructuredOutputSchema: validatorSchema(),
		ToolName:               validatorToolName,
	})
	if err != nil {
		v.Bus.Emit(eventbus.ActorValidator, eventbus.StateStepFail, eventbus.Data{TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: err.Error()}, "")
		return agent.ValidatorOutput{}, bgerr.Wrap(bgerr.ModelFormat, err, "validator invocation failed")
	}

	raw := result.Parsed
	if raw == nil {
		for _, call := range result.ToolCalls {
			if call.Name == validatorToolName {
				raw = call.Input
				break
			}
		}
	}
	if raw == nil {
		return agent.ValidatorOutput{}, bgerr.New(bgerr.ModelFormat, "validator produced no structured output", nil)
	}

	out := agent.ValidatorOutput{}
	out.IsValid, _ = raw["is_valid"].(bool)
	out.Reason, _ = raw["reason"].(string)
	out.Answer, _ = raw["answer"].(string)
	if sourceURL != "" {
		out.Sources = []string{sourceURL}
	}

	state := eventbus.StateStepOK
	if !out.IsValid {
		state = eventbus.StateStepFail
	}
	v.Bus.Emit(eventbus.ActorValidator, state, eventbus.Data{TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: out.Reason}, "")

	return out, nil
}
