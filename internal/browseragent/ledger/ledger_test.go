package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatePinInvariant(t *testing.T) {
	l := New()
	l.InitTaskMessages("sys", "find the price")

	l.AddStateMessage(Message{Role: RoleUser, Content: "snapshot 1"})
	assert.True(t, l.HasPinnedState())

	l.AddStateMessage(Message{Role: RoleUser, Content: "snapshot 2"})
	all := l.GetAll()
	assert.Equal(t, "snapshot 2", all[len(all)-1].Content)
	assert.Equal(t, 3, len(all)) // system, task, one pinned state (not two)

	l.RemoveLastStateMessage()
	assert.False(t, l.HasPinnedState())

	// idempotent
	l.RemoveLastStateMessage()
	assert.False(t, l.HasPinnedState())
}

func TestAddPlanAndLatestPlan(t *testing.T) {
	l := New()
	l.InitTaskMessages("sys", "task")
	assert.Empty(t, l.LatestPlan())

	l.AddPlan("open the page first")
	assert.Equal(t, "open the page first", l.LatestPlan())

	l.AddPlan("now extract the price")
	assert.Equal(t, "now extract the price", l.LatestPlan())
}

func TestAddModelOutputAppendsAssistantMessage(t *testing.T) {
	l := New()
	l.InitTaskMessages("sys", "task")
	l.AddModelOutput(`{"current_state":{}}`)

	all := l.GetAll()
	assert.Equal(t, RoleAssistant, all[len(all)-1].Role)
}
