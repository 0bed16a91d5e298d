package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDeliversToAllSubscribers(t *testing.T) {
	b := New(nil)
	var got []Event
	b.Subscribe(func(e Event) { got = append(got, e) })
	b.Subscribe(func(e Event) { got = append(got, e) })

	b.Emit(ActorNavigator, StateStepStart, Data{TaskID: "t1", Step: 1}, "")

	assert.Len(t, got, 2)
	assert.Equal(t, ActorNavigator, got[0].Actor)
	assert.Equal(t, StateStepStart, got[0].State)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	count := 0
	unsub := b.Subscribe(func(e Event) { count++ })
	b.Emit(ActorPipeline, StateTaskOK, Data{}, "")
	unsub()
	b.Emit(ActorPipeline, StateTaskOK, Data{}, "")

	assert.Equal(t, 1, count)
}

func TestPanickingSubscriberIsSwallowed(t *testing.T) {
	b := New(nil)
	var delivered bool
	b.Subscribe(func(e Event) { panic("boom") })
	b.Subscribe(func(e Event) { delivered = true })

	assert.NotPanics(t, func() {
		b.Emit(ActorValidator, StateStepOK, Data{}, "")
	})
	assert.True(t, delivered)
}
