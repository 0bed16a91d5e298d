package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
)

func clickDef() ActionDefinition {
	return ActionDefinition{
		Name:        "click_element",
		Description: "click an interactive element by index",
		InputSchema: map[string]any{
			"type":     "object",
			"required": []string{"index"},
		},
		HasIndex: true,
		Handler: func(ctx context.Context, input map[string]any) (agent.ActionResult, error) {
			return agent.ActionResult{IncludeInMemory: true}, nil
		},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := New()
	r.Register(clickDef())

	def, err := r.Get("click_element")
	require.NoError(t, err)
	assert.True(t, def.HasIndex)

	_, err = r.Get("missing")
	assert.Error(t, err)
}

func TestRegisterOverwrites(t *testing.T) {
	r := New()
	r.Register(ActionDefinition{Name: "wait", Description: "v1"})
	r.Register(ActionDefinition{Name: "wait", Description: "v2"})

	def, err := r.Get("wait")
	require.NoError(t, err)
	assert.Equal(t, "v2", def.Description)
}

func TestDispatchValidatesRequiredFields(t *testing.T) {
	r := New()
	r.Register(clickDef())

	_, err := r.Dispatch(context.Background(), "click_element", map[string]any{})
	require.Error(t, err)
	kind, ok := bgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bgerr.InvalidInput, kind)

	res, err := r.Dispatch(context.Background(), "click_element", map[string]any{"index": 3})
	require.NoError(t, err)
	assert.True(t, res.IncludeInMemory)
}

func TestIndexOfExtractsIndex(t *testing.T) {
	def := clickDef()

	idx, ok := IndexOf(def, map[string]any{"index": float64(7)})
	assert.True(t, ok)
	assert.Equal(t, 7, idx)

	nonIndexDef := ActionDefinition{Name: "done"}
	_, ok = IndexOf(nonIndexDef, map[string]any{"index": 1})
	assert.False(t, ok)
}

func TestBuildModelOutputSchemaRoundTrip(t *testing.T) {
	r := New()
	r.Register(clickDef())
	r.Register(ActionDefinition{Name: "done", Description: "finish the task"})

	schema := r.BuildModelOutputSchema()
	props := schema["properties"].(map[string]any)
	action := props["action"].(map[string]any)
	items := action["items"].(map[string]any)
	actionProps := items["properties"].(map[string]any)

	assert.Contains(t, actionProps, "click_element")
	assert.Contains(t, actionProps, "done")
}
