// Package pipeline implements the Navigator, Planner, and Validator agents
// plus the Execution Pipeline main loop (spec.md §4.2-§4.5), wired against
// the registry, ledger, browser, chatmodel, and eventbus packages.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/chatmodel"
	"browseragent/internal/browseragent/eventbus"
	"browseragent/internal/browseragent/ledger"
	"browseragent/internal/browseragent/obslog"
	"browseragent/internal/browseragent/registry"
)

const navigatorToolName = "navigator_step"

// Navigator implements spec.md §4.2: per-turn protocol and the
// doMultiAction mid-batch execution algorithm.
type Navigator struct {
	Model    chatmodel.ChatModel
	Browser  browser.BrowsingContext
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Bus      *eventbus.Bus
	Log      *obslog.Logger
	Options  agent.TaskOptions
}

const maxBatchErrors = 3

// Step runs one full navigator turn: observe, invoke, execute.
func (n *Navigator) Step(execCtx *agent.ExecutionContext) (agent.NavigatorOutput, []agent.ActionResult, error) {
	ctx := execCtx.Context()

	snapshot, err := n.Browser.GetState(ctx, n.Options.UseVision)
	if err != nil {
		return agent.NavigatorOutput{}, nil, bgerr.Wrap(bgerr.ElementStale, err, "failed to read browsing state")
	}
	execCtx.CurrentPageBreadcrumb = snapshot.URL

	memoryHint := ""
	if len(snapshot.Elements) == 0 {
		memoryHint = "page has no interactive elements; consider navigating or waiting"
	}

	n.Bus.Emit(eventbus.ActorNavigator, eventbus.StateStepStart, eventbus.Data{
		TaskID: execCtx.TaskID, Step: execCtx.Step(), MaxSteps: n.Options.MaxSteps,
		Details: fmt.Sprintf("observing %s (%d interactive elements)", snapshot.URL, len(snapshot.Elements)),
	}, "")

	n.Ledger.AddStateMessage(ledger.Message{Role: ledger.RoleUser, Content: formatStateMessage(snapshot, memoryHint, n.Ledger.LatestPlan())})

	output, err := n.invokeWithRetry(ctx, execCtx)
	n.Ledger.RemoveLastStateMessage()
	if err != nil {
		n.Bus.Emit(eventbus.ActorNavigator, eventbus.StateStepFail, eventbus.Data{
			TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: err.Error(),
		}, "")
		return agent.NavigatorOutput{}, nil, err
	}

	n.Ledger.AddModelOutput(formatModelOutput(output))

	results, fatalErr := n.doMultiAction(execCtx, output.Actions)
	if fatalErr != nil {
		n.Bus.Emit(eventbus.ActorNavigator, eventbus.StateStepFail, eventbus.Data{
			TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: fatalErr.Error(),
		}, "")
		return output, results, fatalErr
	}

	state := eventbus.StateStepOK
	if execCtx.IsStopped() {
		state = eventbus.StateStepCancel
	}
	n.Bus.Emit(eventbus.ActorNavigator, state, eventbus.Data{
		TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: output.CurrentState.EvaluationPreviousGoal,
	}, "")

	return output, results, nil
}

func (n *Navigator) invokeWithRetry(ctx context.Context, execCtx *agent.ExecutionContext) (agent.NavigatorOutput, error) {
	schema := n.Registry.BuildModelOutputSchema()
	messages := n.Ledger.GetAll()

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if execCtx.IsStopped() {
			return agent.NavigatorOutput{}, bgerr.New(bgerr.RequestCancelled, "cancelled before model invocation", nil)
		}
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			if backoff > 5*time.Second {
				backoff = 5 * time.Second
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return agent.NavigatorOutput{}, bgerr.Wrap(bgerr.RequestCancelled, ctx.Err(), "cancelled during retry backoff")
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, n.Options.ModelCallTimeout)
		result, err := n.Model.Invoke(callCtx, chatmodel.InvokeRequest{
			Messages:               messages,
			StructuredOutputSchema: schema,
			ToolName:               navigatorToolName,
		})
		cancel()
		if err != nil {
			lastErr = err
			if kind, ok := bgerr.KindOf(err); ok && kind.Fatal() {
				return agent.NavigatorOutput{}, err
			}
			continue
		}

		output, parseErr := parseNavigatorOutput(result)
		if parseErr != nil {
			lastErr = parseErr
			continue
		}
		return output, nil
	}

	return agent.NavigatorOutput{}, bgerr.Wrap(bgerr.ModelFormat, lastErr, "navigator exhausted retries")
}

// parseNavigatorOutput extracts a NavigatorOutput from either a parsed
// structured record or, failing that, the first tool call's arguments
// (spec.md §4.2 step 6's fallback).
func parseNavigatorOutput(result chatmodel.InvokeResult) (agent.NavigatorOutput, error) {
	raw := result.Parsed
	if raw == nil {
		for _, call := range result.ToolCalls {
			if call.Name == navigatorToolName {
				raw = call.Input
				break
			}
		}
	}
	if raw == nil {
		return agent.NavigatorOutput{}, bgerr.New(bgerr.ModelFormat, "no structured output or matching tool call", nil)
	}

	out := agent.NavigatorOutput{}
	if cs, ok := raw["current_state"].(map[string]any); ok {
		out.CurrentState.EvaluationPreviousGoal, _ = cs["evaluation_previous_goal"].(string)
		out.CurrentState.Memory, _ = cs["memory"].(string)
		out.CurrentState.NextGoal, _ = cs["next_goal"].(string)
	}
	actionList, _ := raw["action"].([]any)
	for _, item := range actionList {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		// Exactly one inhabited key per spec.md §9: records with no
		// non-null key, or with several, are skipped.
		var chosen []agent.ActionCall
		for name, input := range m {
			if input == nil {
				continue
			}
			inputMap, _ := input.(map[string]any)
			chosen = append(chosen, agent.ActionCall{Name: name, Input: inputMap})
		}
		if len(chosen) == 1 {
			out.Actions = append(out.Actions, chosen[0])
		}
	}
	return out, nil
}

// doMultiAction implements spec.md §4.2's mid-batch change-detection
// algorithm: for every action aᵢ with i>0 that carries an element index, a
// fresh subset check against the batch-initial hash set H₀ runs first,
// regardless of whether an earlier action in the batch carried an index.
// A dispatch error whose Kind is fatal (URL_DISALLOWED, MODEL_AUTH,
// MODEL_FORBIDDEN) aborts the batch immediately and is returned so the
// caller can short-circuit the task, per spec.md §7.
func (n *Navigator) doMultiAction(execCtx *agent.ExecutionContext, calls []agent.ActionCall) ([]agent.ActionResult, error) {
	ctx := execCtx.Context()
	if len(calls) > n.Options.MaxActionsPerStep {
		calls = calls[:n.Options.MaxActionsPerStep]
	}

	_ = n.Browser.RemoveHighlight(ctx)
	initialSnapshot, err := n.Browser.GetState(ctx, false)
	if err != nil {
		results := []agent.ActionResult{{Error: "failed to snapshot before batch: " + err.Error()}}
		execCtx.SetLastActionResults(results)
		return results, nil
	}
	h0 := browser.HashSetOf(initialSnapshot)

	results := make([]agent.ActionResult, 0, len(calls))
	errCount := 0

	for i, call := range calls {
		if execCtx.IsStopped() || execCtx.IsPaused() {
			break
		}

		def, err := n.Registry.Get(call.Name)
		if err != nil {
			results = append(results, agent.ActionResult{Error: err.Error(), IncludeInMemory: true})
			errCount++
			if errCount > maxBatchErrors {
				results = append(results, agent.ActionResult{Error: "batch aborted: too many errors", IncludeInMemory: true})
				break
			}
			continue
		}

		if _, hasIndex := registry.IndexOf(def, call.Input); hasIndex && i > 0 {
			snap, err := n.Browser.GetState(ctx, false)
			if err == nil {
				hi := browser.HashSetOf(snap)
				if !hi.IsSubsetOf(h0) {
					results = append(results, agent.ActionResult{
						ExtractedContent: fmt.Sprintf("Something new appeared after action %d / %d", i, len(calls)),
						IncludeInMemory:  true,
					})
					break
				}
			}
		}

		n.Bus.Emit(eventbus.ActorNavigator, eventbus.StateActStart, eventbus.Data{TaskID: execCtx.TaskID, Step: execCtx.Step()}, call.Name)

		result, err := n.Registry.Dispatch(ctx, call.Name, call.Input)
		if err != nil {
			n.Bus.Emit(eventbus.ActorNavigator, eventbus.StateActFail, eventbus.Data{TaskID: execCtx.TaskID, Step: execCtx.Step(), Details: err.Error()}, call.Name)
			if kind, ok := bgerr.KindOf(err); ok && kind.Fatal() {
				results = append(results, agent.ActionResult{Error: err.Error(), IncludeInMemory: true})
				execCtx.SetLastActionResults(results)
				return results, err
			}
			results = append(results, agent.ActionResult{Error: err.Error(), IncludeInMemory: true})
			errCount++
			if errCount > maxBatchErrors {
				results = append(results, agent.ActionResult{Error: "batch aborted: too many errors", IncludeInMemory: true})
				break
			}
			continue
		}

		results = append(results, result)
		n.Bus.Emit(eventbus.ActorNavigator, eventbus.StateActOK, eventbus.Data{TaskID: execCtx.TaskID, Step: execCtx.Step()}, call.Name)

		if result.IsDone {
			break
		}

		if i < len(calls)-1 {
			select {
			case <-time.After(n.Options.MidBatchSettleDelay):
			case <-ctx.Done():
			}
		}
	}

	execCtx.SetLastActionResults(results)
	return results, nil
}

func formatModelOutput(out agent.NavigatorOutput) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "evaluation_previous_goal: %s\n", out.CurrentState.EvaluationPreviousGoal)
	fmt.Fprintf(&sb, "memory: %s\n", out.CurrentState.Memory)
	fmt.Fprintf(&sb, "next_goal: %s\n", out.CurrentState.NextGoal)
	for _, call := range out.Actions {
		fmt.Fprintf(&sb, "action: %s(%v)\n", call.Name, call.Input)
	}
	return sb.String()
}

func formatStateMessage(snap browser.PageSnapshot, memoryHint, plan string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current page: %s (%s)\n", snap.Title, snap.URL)
	if memoryHint != "" {
		fmt.Fprintf(&sb, "Note: %s\n", memoryHint)
	}
	if plan != "" {
		fmt.Fprintf(&sb, "Active plan: %s\n", plan)
	}
	fmt.Fprintf(&sb, "Open tabs: %d\n", len(snap.Tabs))
	fmt.Fprintf(&sb, "Interactive elements:\n")
	for idx := 0; idx < len(snap.Elements); idx++ {
		el, ok := snap.Elements[idx]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "[%d] <%s> %s\n", idx, el.Tag, el.Text)
	}
	return sb.String()
}
