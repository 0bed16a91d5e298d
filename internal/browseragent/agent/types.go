// Package agent holds the data model shared by the Planner, Navigator, and
// Validator agents and the Execution Pipeline: TaskOptions, ExecutionContext,
// ActionDefinition/ActionResult, and the three agents' structured outputs.
package agent

import (
	"context"
	"sync"
	"time"
)

// TaskOptions bounds a single task's execution. Created at pipeline start
// and treated as immutable thereafter.
type TaskOptions struct {
	MaxSteps                  int
	MaxActionsPerStep         int
	MaxConsecutiveFailures    int
	MaxValidatorFailures      int
	RetryDelay                time.Duration
	MaxInputTokens            int
	UseVision                 bool
	UseVisionForPlanner       bool
	ValidateOutput            bool
	IncludeAttributes         []string
	PlanningInterval          int
	MidBatchSettleDelay       time.Duration
	ModelCallTimeout          time.Duration
	TabEventTimeout           time.Duration
	CancellationGrace         time.Duration
}

// DefaultTaskOptions returns the constants named throughout spec.md §5/§4.2.
func DefaultTaskOptions() TaskOptions {
	return TaskOptions{
		MaxSteps:               100,
		MaxActionsPerStep:      10,
		MaxConsecutiveFailures: 3,
		MaxValidatorFailures:   3,
		RetryDelay:             time.Second,
		MaxInputTokens:         128_000,
		UseVision:              false,
		UseVisionForPlanner:    false,
		ValidateOutput:         true,
		PlanningInterval:       1,
		MidBatchSettleDelay:    time.Second,
		ModelCallTimeout:       60 * time.Second,
		TabEventTimeout:        5 * time.Second,
		CancellationGrace:      300 * time.Millisecond,
	}
}

// ActionResult is produced by a single action handler.
type ActionResult struct {
	IsDone           bool
	ExtractedContent string
	Error            string
	IncludeInMemory  bool
	SourceURL        string
}

// AgentBrain is the Navigator's free-text introspection, appended to the
// ledger every turn.
type AgentBrain struct {
	EvaluationPreviousGoal string `json:"evaluation_previous_goal"`
	Memory                 string `json:"memory"`
	NextGoal               string `json:"next_goal"`
}

// ActionCall is one element of a NavigatorOutput's action array, decoded
// from a record with exactly one non-null key (spec.md §9's "one inhabited
// key" rule): Name is that key and Input its value. The rule is enforced
// by the navigator's output parser, not by this type.
type ActionCall struct {
	Name  string
	Input map[string]any
}

// NavigatorOutput is produced once per navigator turn.
type NavigatorOutput struct {
	CurrentState AgentBrain
	Actions      []ActionCall
}

// PlannerOutput is produced every PlanningInterval steps.
type PlannerOutput struct {
	Observation     string
	Challenges      string
	Done            bool
	NextSteps       string
	Reasoning       string
	ElementHints    []int
	DataSourceURLs  []string
}

// ValidatorOutput is produced after a navigator step whose results include
// a done action; no other termination path runs the validator.
type ValidatorOutput struct {
	IsValid bool
	Reason  string
	Answer  string
	Sources []string
}

// ExecutionContext is the single piece of mutable state shared across one
// task's Planner/Navigator/Validator turns. It is owned exclusively by the
// Execution Pipeline: agents receive it by reference and read/append to it
// but never replace or destroy it.
type ExecutionContext struct {
	mu sync.Mutex

	TaskID    string
	NSteps    int
	Paused    bool
	Stopped   bool
	StartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	ConsecutiveFailures          int
	ConsecutiveValidatorFailures int
	StateMessageAttached         bool
	CurrentPageBreadcrumb        string

	LastActionResults []ActionResult

	resumeCh chan struct{}
}

// NewExecutionContext creates a fresh context bound to parent, ready to run
// one task.
func NewExecutionContext(parent context.Context, taskID string) *ExecutionContext {
	ctx, cancel := context.WithCancel(parent)
	return &ExecutionContext{
		TaskID:    taskID,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		resumeCh:  make(chan struct{}, 1),
	}
}

// Context returns the cancellation-bearing context.Context for this task.
func (c *ExecutionContext) Context() context.Context { return c.ctx }

// Cancel requests cancellation: sets Stopped immediately and, after grace,
// cancels the underlying context so in-flight model/browser calls observe
// ctx.Err() and return REQUEST_CANCELLED. Idempotent.
func (c *ExecutionContext) Cancel(grace time.Duration) {
	c.mu.Lock()
	alreadyStopped := c.Stopped
	c.Stopped = true
	c.mu.Unlock()
	if alreadyStopped {
		return
	}
	if grace <= 0 {
		c.cancel()
		return
	}
	go func() {
		time.Sleep(grace)
		c.cancel()
	}()
}

// IsStopped reports whether cancellation has been requested.
func (c *ExecutionContext) IsStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Stopped
}

// Pause is idempotent: pausing twice behaves as once.
func (c *ExecutionContext) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Paused = true
}

// Resume is idempotent and wakes any goroutine blocked in WaitIfPaused.
func (c *ExecutionContext) Resume() {
	c.mu.Lock()
	c.Paused = false
	c.mu.Unlock()
	select {
	case c.resumeCh <- struct{}{}:
	default:
	}
}

// IsPaused reports the current pause flag.
func (c *ExecutionContext) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Paused
}

// WaitIfPaused blocks the caller between steps (never mid-batch) until
// Resume is called or the task is cancelled.
func (c *ExecutionContext) WaitIfPaused() {
	for c.IsPaused() && !c.IsStopped() {
		select {
		case <-c.resumeCh:
		case <-c.ctx.Done():
			return
		}
	}
}

// RecordFailure increments the consecutive-failure counter and returns the
// new value.
func (c *ExecutionContext) RecordFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConsecutiveFailures++
	return c.ConsecutiveFailures
}

// ResetFailures clears the consecutive-failure counter on any successful
// navigator turn.
func (c *ExecutionContext) ResetFailures() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConsecutiveFailures = 0
}

// RecordValidatorFailure increments the validator-failure counter.
func (c *ExecutionContext) RecordValidatorFailure() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ConsecutiveValidatorFailures++
	return c.ConsecutiveValidatorFailures
}

// SetLastActionResults records the results of the most recent action batch.
func (c *ExecutionContext) SetLastActionResults(results []ActionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastActionResults = results
}

// GetLastActionResults returns a copy of the most recent action results.
func (c *ExecutionContext) GetLastActionResults() []ActionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActionResult, len(c.LastActionResults))
	copy(out, c.LastActionResults)
	return out
}

// AdvanceStep increments NSteps monotonically.
func (c *ExecutionContext) AdvanceStep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.NSteps++
	return c.NSteps
}

// Step returns the current step counter.
func (c *ExecutionContext) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.NSteps
}
