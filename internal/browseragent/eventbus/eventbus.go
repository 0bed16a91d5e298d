// Package eventbus implements the typed AgentEvent fan-out that drives the
// UI and tests: subscribers are called synchronously, in subscription
// order, on the emitter's goroutine, and a panicking subscriber is logged
// and swallowed, never propagated back into the pipeline.
package eventbus

import (
	"sync"
	"time"

	"browseragent/internal/browseragent/obslog"
)

// Actor names which agent or component emitted the event.
type Actor string

const (
	ActorPlanner   Actor = "planner"
	ActorNavigator Actor = "navigator"
	ActorValidator Actor = "validator"
	ActorPipeline  Actor = "pipeline"
	ActorBrowser   Actor = "browser"
)

// State names the event's lifecycle phase.
type State string

const (
	StateStepStart State = "STEP_START"
	StateStepOK    State = "STEP_OK"
	StateStepFail  State = "STEP_FAIL"
	StateStepCancel State = "STEP_CANCEL"
	StateActStart  State = "ACT_START"
	StateActOK     State = "ACT_OK"
	StateActFail   State = "ACT_FAIL"
	StateTaskOK    State = "TASK_OK"
	StateTaskFail  State = "TASK_FAIL"
	StateTaskCancel State = "TASK_CANCEL"
)

// Data carries the event payload.
type Data struct {
	TaskID        string
	Step          int
	MaxSteps      int
	Details       string
	DetailsObject map[string]any
}

// Event is the typed (actor, state, data, timestamp) record fanned out to
// subscribers.
type Event struct {
	Actor     Actor
	State     State
	Data      Data
	Timestamp time.Time
	Type      string // e.g. "go_to_url" for ACT_* events naming the action
}

// Subscriber receives events. It must not panic the bus; panics are
// recovered and logged by the Bus.
type Subscriber func(Event)

// Bus fans out events to all current subscribers.
type Bus struct {
	mu   sync.RWMutex
	subs []Subscriber
	log  *obslog.Logger
}

// New constructs an empty Bus. log may be nil, in which case a default
// logger is used.
func New(log *obslog.Logger) *Bus {
	if log == nil {
		log = obslog.Default()
	}
	return &Bus{log: log}
}

// Subscribe registers a subscriber and returns an unsubscribe func.
func (b *Bus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := len(b.subs)
	b.subs = append(b.subs, fn)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if idx < len(b.subs) {
			b.subs[idx] = nil
		}
	}
}

// Emit constructs an Event and delivers it to every live subscriber.
// Subscriber panics are recovered and logged; they never propagate.
func (b *Bus) Emit(actor Actor, state State, data Data, typ string) {
	ev := Event{Actor: actor, State: state, Data: data, Timestamp: time.Now(), Type: typ}

	b.mu.RLock()
	subs := make([]Subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if s == nil {
			continue
		}
		b.deliver(s, ev)
	}
}

func (b *Bus) deliver(s Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn(obslog.CategoryEvent, "subscriber panicked", map[string]any{
				"recovered": r,
				"event":     string(ev.State),
			})
		}
	}()
	s(ev)
}
