package pipeline

import (
	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/eventbus"
)

// Status is the terminal outcome of one Pipeline.Run call.
type Status string

const (
	StatusOK         Status = "ok"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusOutOfSteps Status = "out_of_steps"
)

// Result is returned when Run terminates.
type Result struct {
	Status Status
	Answer string
	Reason string
}

// Pipeline implements spec.md §4.5's main loop, coordinating the Planner,
// Navigator, and Validator against one ExecutionContext.
type Pipeline struct {
	Navigator *Navigator
	Planner   *Planner
	Validator *Validator
	Bus       *eventbus.Bus
	Options   agent.TaskOptions
}

// Run executes the task to completion, cancellation, or step exhaustion.
func (p *Pipeline) Run(execCtx *agent.ExecutionContext) Result {
	for execCtx.Step() < p.Options.MaxSteps {
		if execCtx.IsStopped() {
			return p.terminate(execCtx, StatusCancelled, "", "cancelled")
		}
		execCtx.WaitIfPaused()
		if execCtx.IsStopped() {
			return p.terminate(execCtx, StatusCancelled, "", "cancelled")
		}

		if execCtx.Step()%p.Options.PlanningInterval == 0 {
			if _, err := p.Planner.Run(execCtx); err != nil {
				// Planner failure is not fatal to the task; the navigator
				// proceeds without a fresh plan, per spec.md §4.3's silence
				// on planner-failure propagation.
			}
		}

		_, results, err := p.Navigator.Step(execCtx)
		if err != nil {
			if kind, ok := bgerr.KindOf(err); ok && kind.Fatal() {
				return p.terminate(execCtx, StatusFailed, "", err.Error())
			}
			if execCtx.IsStopped() {
				return p.terminate(execCtx, StatusCancelled, "", "cancelled")
			}
			failures := execCtx.RecordFailure()
			if failures > p.Options.MaxConsecutiveFailures {
				return p.terminate(execCtx, StatusFailed, "", "too many consecutive failures")
			}
			continue
		}
		execCtx.ResetFailures()

		done := anyActionDone(results)

		if done && p.Options.ValidateOutput && p.Validator != nil {
			v, verr := p.Validator.Run(execCtx)
			if verr != nil {
				failures := execCtx.RecordFailure()
				if failures > p.Options.MaxConsecutiveFailures {
					return p.terminate(execCtx, StatusFailed, "", "too many consecutive failures")
				}
				continue
			}
			if !v.IsValid {
				validatorFailures := execCtx.RecordValidatorFailure()
				if validatorFailures > p.Options.MaxValidatorFailures {
					return p.terminate(execCtx, StatusFailed, "", "too many validator rejections")
				}
				execCtx.SetLastActionResults([]agent.ActionResult{{
					Error:           v.Reason,
					IncludeInMemory: true,
				}})
				continue
			}
			return p.terminate(execCtx, StatusOK, v.Answer, "")
		}

		if done {
			return p.terminate(execCtx, StatusOK, doneAnswer(results), "")
		}

		execCtx.AdvanceStep()
	}

	return p.terminate(execCtx, StatusOutOfSteps, "", "step budget exhausted")
}

func anyActionDone(results []agent.ActionResult) bool {
	for _, r := range results {
		if r.IsDone {
			return true
		}
	}
	return false
}

func doneAnswer(results []agent.ActionResult) string {
	for _, r := range results {
		if r.IsDone {
			return r.ExtractedContent
		}
	}
	return ""
}

func (p *Pipeline) terminate(execCtx *agent.ExecutionContext, status Status, answer, reason string) Result {
	var state eventbus.State
	switch status {
	case StatusOK:
		state = eventbus.StateTaskOK
	case StatusCancelled:
		state = eventbus.StateTaskCancel
	default:
		state = eventbus.StateTaskFail
	}
	p.Bus.Emit(eventbus.ActorPipeline, state, eventbus.Data{
		TaskID: execCtx.TaskID, Step: execCtx.Step(), MaxSteps: p.Options.MaxSteps, Details: reason,
	}, "")
	return Result{Status: status, Answer: answer, Reason: reason}
}
