package bgerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFatal(t *testing.T) {
	assert.True(t, URLDisallowed.Fatal())
	assert.True(t, ModelAuth.Fatal())
	assert.True(t, ModelForbidden.Fatal())
	assert.False(t, ElementStale.Fatal())
	assert.False(t, InvalidInput.Fatal())
}

func TestWrapUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ElementStale, base, "index 7 not found")

	assert.ErrorIs(t, err, base)
	k, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ElementStale, k)
}

func TestErrorIsByKind(t *testing.T) {
	a := New(ModelFormat, "bad json", nil)
	b := fmt.Errorf("during step: %w", New(ModelFormat, "other details", nil))

	assert.True(t, errors.Is(b, a))
	assert.False(t, errors.Is(b, New(BatchAborted, "", nil)))
}
