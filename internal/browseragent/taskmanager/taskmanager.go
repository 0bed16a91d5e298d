// Package taskmanager implements the Task Manager (spec.md §4.7): a
// pending/running/completed/failed/cancelled lifecycle wrapper around the
// pipeline, with a single-task-at-a-time follow-up queue. Adapted from the
// teacher's goroutine-tree/WaitGroup session supervision pattern in
// internal/browser/session_manager.go, generalized from browser sessions
// to task records.
package taskmanager

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/eventbus"
	"browseragent/internal/browseragent/pipeline"
)

// State is one lifecycle stage of a task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Task is one queued or running unit of work.
type Task struct {
	ID          string
	Instruction string
	State       State
	Result      pipeline.Result

	execCtx *agent.ExecutionContext
}

// RunFunc executes one task given its ExecutionContext and returns the
// pipeline result, matching Pipeline.Run's signature so callers can inject
// a real *pipeline.Pipeline or a fake for tests.
type RunFunc func(execCtx *agent.ExecutionContext) pipeline.Result

// Manager owns the task queue and lifecycle transitions. Only one task
// runs at a time, per spec.md §4.7.
type Manager struct {
	mu       sync.Mutex
	tasks    map[string]*Task
	queue    []*Task
	running  *Task
	bus      *eventbus.Bus
	run      RunFunc
	newExecutionContext func(parent context.Context, taskID string) *agent.ExecutionContext
}

// New constructs a Manager. run is invoked synchronously by drainQueue
// (reached through Submit/AddFollowUp) for each task in turn.
func New(bus *eventbus.Bus, run RunFunc) *Manager {
	return &Manager{
		tasks: make(map[string]*Task),
		bus:   bus,
		run:   run,
		newExecutionContext: agent.NewExecutionContext,
	}
}

// Submit queues instruction as a new task under a freshly generated task
// ID and returns it, matching the teacher's uuid-per-session convention in
// internal/browser/session_manager.go's CreateSession.
func (m *Manager) Submit(parent context.Context, instruction string) *Task {
	return m.AddFollowUp(parent, uuid.NewString(), instruction)
}

// AddFollowUp queues instruction as a new task, assigning it id. If no task
// is currently running, it starts immediately; otherwise it waits in the
// queue.
func (m *Manager) AddFollowUp(parent context.Context, id, instruction string) *Task {
	m.mu.Lock()
	t := &Task{ID: id, Instruction: instruction, State: StatePending}
	m.tasks[id] = t
	m.queue = append(m.queue, t)
	shouldRun := m.running == nil
	if shouldRun {
		// Claim the runner slot before unlocking so a concurrent caller queues.
		m.running = t
	}
	m.mu.Unlock()

	if shouldRun {
		m.drainQueue(parent)
	}
	return t
}

// drainQueue runs queued tasks one at a time until the queue empties.
func (m *Manager) drainQueue(parent context.Context) {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.running = nil
			m.mu.Unlock()
			return
		}
		t := m.queue[0]
		m.queue = m.queue[1:]
		m.running = t
		m.mu.Unlock()

		m.runOne(parent, t)
	}
}

func (m *Manager) runOne(parent context.Context, t *Task) {
	execCtx := m.newExecutionContext(parent, t.ID)
	t.execCtx = execCtx

	m.setState(t, StateRunning)
	result := m.run(execCtx)
	t.Result = result

	switch result.Status {
	case pipeline.StatusOK:
		m.setState(t, StateCompleted)
	case pipeline.StatusCancelled:
		m.setState(t, StateCancelled)
	default:
		m.setState(t, StateFailed)
	}
}

func (m *Manager) setState(t *Task, state State) {
	m.mu.Lock()
	t.State = state
	m.mu.Unlock()
}

// Get returns the task record for id, or ok=false if unknown.
func (m *Manager) Get(id string) (*Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	return t, ok
}

// Cancel requests cancellation of task id's ExecutionContext, if running.
func (m *Manager) Cancel(id string, grace time.Duration) bool {
	m.mu.Lock()
	t, ok := m.tasks[id]
	running := ok && t.State == StateRunning && t.execCtx != nil
	m.mu.Unlock()
	if !running {
		return false
	}
	t.execCtx.Cancel(grace)
	return true
}

// Stats reports task counts by state.
func (m *Manager) Stats() map[State]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := make(map[State]int)
	for _, t := range m.tasks {
		stats[t.State]++
	}
	return stats
}
