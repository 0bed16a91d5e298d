package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/browseragenttest"
	"browseragent/internal/browseragent/chatmodel"
	"browseragent/internal/browseragent/eventbus"
	"browseragent/internal/browseragent/ledger"
	"browseragent/internal/browseragent/obslog"
	"browseragent/internal/browseragent/registry"

	actionsPkg "browseragent/internal/browseragent/actions"
)

func fastOptions() agent.TaskOptions {
	opts := agent.DefaultTaskOptions()
	opts.MaxSteps = 10
	opts.MaxConsecutiveFailures = 2
	opts.MaxValidatorFailures = 2
	opts.PlanningInterval = 1
	opts.ModelCallTimeout = 2 * time.Second
	opts.MidBatchSettleDelay = time.Millisecond
	opts.CancellationGrace = 10 * time.Millisecond
	return opts
}

func newTestPipeline(t *testing.T, fake *browseragenttest.FakeBrowser, model *browseragenttest.FakeChatModel, validatorModel *browseragenttest.FakeChatModel, opts agent.TaskOptions) (*Pipeline, *eventbus.Bus, *[]eventbus.Event) {
	t.Helper()
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.NoPolicy())
	led := ledger.New()
	led.InitTaskMessages("you are a browsing agent", "test task")

	var events []eventbus.Event
	bus := eventbus.New(obslog.Default())
	bus.Subscribe(func(e eventbus.Event) { events = append(events, e) })

	nav := &Navigator{Model: model, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}
	plan := &Planner{Model: model, Ledger: led, Bus: bus, Options: opts}
	var val *Validator
	if validatorModel != nil {
		val = &Validator{Model: validatorModel, Ledger: led, Bus: bus}
	}

	return &Pipeline{Navigator: nav, Planner: plan, Validator: val, Bus: bus, Options: opts}, bus, &events
}

func navigatorResult(evalGoal, memory, nextGoal string, actions map[string]map[string]any) *chatmodel.InvokeResult {
	actionList := make([]any, 0, len(actions))
	for name, input := range actions {
		actionList = append(actionList, map[string]any{name: input})
	}
	return &chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{
			"evaluation_previous_goal": evalGoal,
			"memory":                   memory,
			"next_goal":                nextGoal,
		},
		"action": actionList,
	}}
}

func plannerResult(done bool) *chatmodel.InvokeResult {
	return &chatmodel.InvokeResult{Parsed: map[string]any{
		"observation": "observed", "challenges": "none", "done": done,
		"next_steps": "continue", "reasoning": "because",
	}}
}

// Scenario 1: trivial completion.
func TestScenario_TrivialCompletion(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("about:blank")
	// The planner shares this model and runs before the navigator on every
	// step (PlanningInterval = 1), so each navigator reply follows a plan.
	navModel := browseragenttest.NewFakeChatModel(
		plannerResult(false),
		singleActionResult("go_to_url", map[string]any{"url": "https://example.com"}),
		plannerResult(false),
		singleActionResult("done", map[string]any{"text": "done"}),
	)
	opts := fastOptions()
	opts.ValidateOutput = false
	p, _, events := newTestPipeline(t, fake, navModel, nil, opts)

	execCtx := agent.NewExecutionContext(context.Background(), "task-1")
	result := p.Run(execCtx)

	require.Equal(t, StatusOK, result.Status)
	assert.Equal(t, "done", result.Answer)
	assert.Equal(t, "https://example.com", fake.CurrentURL)
	assertHasState(t, *events, eventbus.StateTaskOK)
}

func singleActionResult(name string, input map[string]any) *chatmodel.InvokeResult {
	return &chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{"evaluation_previous_goal": "", "memory": "", "next_goal": ""},
		"action":        []any{map[string]any{name: input}},
	}}
}

// Scenario 2: mid-batch DOM change aborts the remainder of the batch.
func TestScenario_MidBatchDOMChangeAbortsBatch(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	fake.Elements[3] = browser.ElementNode{Tag: "button", Hash: "h3"}
	fake.Elements[7] = browser.ElementNode{Tag: "button", Hash: "h7"}
	fake.ClickIndexTrigger = 3
	fake.NewElementsAfterClick = map[int]browser.ElementNode{7: {Tag: "button", Hash: "h7-new"}}

	navModel := browseragenttest.NewFakeChatModel(&chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{"evaluation_previous_goal": "", "memory": "", "next_goal": ""},
		"action": []any{
			map[string]any{"click_element": map[string]any{"index": 3}},
			map[string]any{"click_element": map[string]any{"index": 7}},
		},
	}})
	opts := fastOptions()
	opts.ValidateOutput = false
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.NoPolicy())
	led := ledger.New()
	bus := eventbus.New(obslog.Default())
	nav := &Navigator{Model: navModel, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}

	execCtx := agent.NewExecutionContext(context.Background(), "task-2")
	_, results, err := nav.Step(execCtx)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[1].ExtractedContent, "Something new appeared after action 1 / 2")
}

// Scenario 2b: the mid-batch subset check gates on batch position, not on
// whether an earlier action in the batch happened to carry an index. A
// non-index action (wait) mutates the DOM before a later index-bearing
// action (click_element at i=1), which must still be caught.
func TestScenario_MidBatchDOMChangeCaughtAfterNonIndexAction(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	fake.Elements[7] = browser.ElementNode{Tag: "button", Hash: "h7"}
	// GetState call 1 is Step's observation, call 2 the batch-initial
	// snapshot (H₀), call 3 the check before click_element.
	fake.MutateOnGetStateCall = 3
	fake.MutateWith = map[int]browser.ElementNode{9: {Tag: "button", Hash: "h9-new"}}

	navModel := browseragenttest.NewFakeChatModel(&chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{"evaluation_previous_goal": "", "memory": "", "next_goal": ""},
		"action": []any{
			map[string]any{"wait": map[string]any{"seconds": 0}},
			map[string]any{"click_element": map[string]any{"index": 7}},
		},
	}})
	opts := fastOptions()
	opts.ValidateOutput = false
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.NoPolicy())
	led := ledger.New()
	bus := eventbus.New(obslog.Default())
	nav := &Navigator{Model: navModel, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}

	execCtx := agent.NewExecutionContext(context.Background(), "task-2b")
	_, results, err := nav.Step(execCtx)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "waited 0s", results[0].ExtractedContent)
	assert.Contains(t, results[1].ExtractedContent, "Something new appeared after action 1 / 2")
}

// Scenario 2c: a URL_DISALLOWED dispatch error aborts the batch immediately
// as a fatal Step error, rather than being folded into the batch error
// budget.
func TestScenario_URLDisallowedAbortsBatchAsFatal(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	navModel := browseragenttest.NewFakeChatModel(&chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{"evaluation_previous_goal": "", "memory": "", "next_goal": ""},
		"action": []any{
			map[string]any{"go_to_url": map[string]any{"url": "https://blocked.example"}},
		},
	}})
	opts := fastOptions()
	opts.ValidateOutput = false
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.URLPolicy{DeniedHosts: []string{"blocked.example"}})
	led := ledger.New()
	bus := eventbus.New(obslog.Default())
	nav := &Navigator{Model: navModel, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}

	execCtx := agent.NewExecutionContext(context.Background(), "task-2c")
	_, _, err := nav.Step(execCtx)

	require.Error(t, err)
	kind, ok := bgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bgerr.URLDisallowed, kind)
	assert.True(t, kind.Fatal())
}

// Scenario 2d: the same fatal dispatch error terminates the whole pipeline
// immediately via Pipeline.Run, instead of being retried against the
// consecutive-failure budget.
func TestScenario_PipelineTerminatesOnFatalDispatchError(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	navModel := browseragenttest.NewFakeChatModel(&chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{"evaluation_previous_goal": "", "memory": "", "next_goal": ""},
		"action": []any{
			map[string]any{"go_to_url": map[string]any{"url": "https://blocked.example"}},
		},
	}})
	opts := fastOptions()
	opts.ValidateOutput = false
	opts.MaxConsecutiveFailures = 2
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.URLPolicy{DeniedHosts: []string{"blocked.example"}})
	led := ledger.New()
	led.InitTaskMessages("sys", "task")
	bus := eventbus.New(obslog.Default())
	var events []eventbus.Event
	bus.Subscribe(func(e eventbus.Event) { events = append(events, e) })
	nav := &Navigator{Model: navModel, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}
	plan := &Planner{Model: navModel, Ledger: led, Bus: bus, Options: opts}
	p := &Pipeline{Navigator: nav, Planner: plan, Bus: bus, Options: opts}

	execCtx := agent.NewExecutionContext(context.Background(), "task-2d")
	result := p.Run(execCtx)

	require.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 0, execCtx.Step(), "must terminate on the first step, not after exhausting the failure budget")
	assertHasState(t, events, eventbus.StateTaskFail)
}

// Scenario 3: validator rejection reports is_valid=false with its reason and
// counts one validator failure.
func TestScenario_ValidatorRejectionReportsReason(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://shop.example")
	navModel := browseragenttest.NewFakeChatModel(
		singleActionResultWithContent("cache_content", map[string]any{"content": "$10"}, "done", map[string]any{"text": "$10"}),
	)
	validatorModel := browseragenttest.NewFakeChatModel(
		&chatmodel.InvokeResult{Parsed: map[string]any{"is_valid": false, "reason": "Price was not on the target page"}},
	)
	opts := fastOptions()
	p, _, events := newTestPipeline(t, fake, navModel, validatorModel, opts)

	execCtx := agent.NewExecutionContext(context.Background(), "task-3")
	// Run a single navigator+validator cycle manually so the second
	// (looping) navigator call need not be scripted; Pipeline.Run's
	// reinjection of the reason is not exercised here.
	_, results, err := p.Navigator.Step(execCtx)
	require.NoError(t, err)
	execCtx.SetLastActionResults(results)

	v, err := p.Validator.Run(execCtx)
	require.NoError(t, err)
	assert.False(t, v.IsValid)
	assert.Equal(t, "Price was not on the target page", v.Reason)

	failures := execCtx.RecordValidatorFailure()
	assert.Equal(t, 1, failures)
	assertHasState(t, *events, eventbus.StateStepFail)
}

func singleActionResultWithContent(firstName string, firstInput map[string]any, secondName string, secondInput map[string]any) *chatmodel.InvokeResult {
	return &chatmodel.InvokeResult{Parsed: map[string]any{
		"current_state": map[string]any{"evaluation_previous_goal": "", "memory": "", "next_goal": ""},
		"action": []any{
			map[string]any{firstName: firstInput},
			map[string]any{secondName: secondInput},
		},
	}}
}

// Scenario 4: cancellation requested before Run starts yields no navigator
// or planner events.
func TestScenario_CancellationStopsPipeline(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	navModel := browseragenttest.NewFakeChatModel(singleActionResult("wait", map[string]any{"seconds": 0}))
	opts := fastOptions()
	opts.ValidateOutput = false
	p, _, events := newTestPipeline(t, fake, navModel, nil, opts)

	execCtx := agent.NewExecutionContext(context.Background(), "task-4")
	execCtx.Cancel(0)

	result := p.Run(execCtx)

	assert.Equal(t, StatusCancelled, result.Status)
	for _, e := range *events {
		assert.NotEqual(t, eventbus.ActorNavigator, e.Actor)
		assert.NotEqual(t, eventbus.ActorPlanner, e.Actor)
	}
}

// Scenario 5: consecutive navigator failures exhaust the budget.
func TestScenario_ConsecutiveFailuresExhausted(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	navModel := browseragenttest.NewFakeChatModel(nil, nil, nil) // every call fails to parse
	opts := fastOptions()
	opts.ValidateOutput = false
	opts.MaxConsecutiveFailures = 2
	p, _, _ := newTestPipeline(t, fake, navModel, nil, opts)

	execCtx := agent.NewExecutionContext(context.Background(), "task-5")
	result := p.Run(execCtx)

	require.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "too many consecutive failures", result.Reason)
}

// Scenario 6: tab adoption during click_element.
func TestScenario_TabAdoption(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	fake.Elements[0] = browser.ElementNode{Tag: "a"}
	fake.OpenTabOnClick = true
	navModel := browseragenttest.NewFakeChatModel(singleActionResult("click_element", map[string]any{"index": 0}))
	opts := fastOptions()
	opts.ValidateOutput = false
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.NoPolicy())
	led := ledger.New()
	bus := eventbus.New(obslog.Default())
	nav := &Navigator{Model: navModel, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}

	execCtx := agent.NewExecutionContext(context.Background(), "task-6")
	before, err := fake.GetAllTabIds(context.Background())
	require.NoError(t, err)

	_, results, err := nav.Step(execCtx)
	require.NoError(t, err)

	after, err := fake.GetAllTabIds(context.Background())
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)
	assert.Contains(t, results[0].ExtractedContent, "new tab")
}

// State-pin invariant: after a navigator turn, no state message is pinned.
func TestInvariant_StatePinDetachedAfterStep(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	navModel := browseragenttest.NewFakeChatModel(singleActionResult("wait", map[string]any{"seconds": 0}))
	opts := fastOptions()
	reg := registry.New()
	actionsPkg.RegisterDefaults(reg, fake, actionsPkg.NoPolicy())
	led := ledger.New()
	led.InitTaskMessages("sys", "task")
	bus := eventbus.New(obslog.Default())
	nav := &Navigator{Model: navModel, Browser: fake, Registry: reg, Ledger: led, Bus: bus, Log: obslog.Default(), Options: opts}

	execCtx := agent.NewExecutionContext(context.Background(), "task-7")
	_, _, err := nav.Step(execCtx)

	require.NoError(t, err)
	assert.False(t, led.HasPinnedState())
}

// Idempotence: pause/resume/cancel called twice behave as once.
func TestInvariant_PauseResumeCancelIdempotent(t *testing.T) {
	execCtx := agent.NewExecutionContext(context.Background(), "task-8")

	execCtx.Pause()
	execCtx.Pause()
	assert.True(t, execCtx.IsPaused())

	execCtx.Resume()
	execCtx.Resume()
	assert.False(t, execCtx.IsPaused())

	execCtx.Cancel(0)
	execCtx.Cancel(0)
	assert.True(t, execCtx.IsStopped())
}

func assertHasState(t *testing.T, events []eventbus.Event, state eventbus.State) {
	t.Helper()
	for _, e := range events {
		if e.State == state {
			return
		}
	}
	t.Fatalf("expected an event with state %s, got %d events", state, len(events))
}
