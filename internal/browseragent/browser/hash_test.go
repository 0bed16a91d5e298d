package browser

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func TestComputeBranchPathHashStableForSameNode(t *testing.T) {
	a := computeBranchPathHash("button", "/html/body/div[1]/button[2]", map[string]string{"id": "submit"})
	b := computeBranchPathHash("button", "/html/body/div[1]/button[2]", map[string]string{"id": "submit"})
	assert.Equal(t, a, b)
}

func TestComputeBranchPathHashChangesWithAttrs(t *testing.T) {
	a := computeBranchPathHash("button", "/html/body/div[1]/button[2]", map[string]string{"id": "submit"})
	b := computeBranchPathHash("button", "/html/body/div[1]/button[2]", map[string]string{"id": "cancel"})
	assert.NotEqual(t, a, b)
}

func TestHashSetSubset(t *testing.T) {
	prior := BranchPathHashSet{"a": {}, "b": {}}
	same := BranchPathHashSet{"a": {}}
	assert.True(t, same.IsSubsetOf(prior))

	withNew := BranchPathHashSet{"a": {}, "c": {}}
	assert.False(t, withNew.IsSubsetOf(prior))
}

func TestPageSnapshotDiffIgnoresScreenshotBytes(t *testing.T) {
	a := PageSnapshot{
		Title:    "Example",
		URL:      "https://example.com",
		Elements: map[int]ElementNode{0: {Tag: "button"}},
		Screenshot: []byte{1, 2, 3},
	}
	b := a
	b.Screenshot = []byte{4, 5, 6}

	diff := cmp.Diff(a, b, cmpopts.IgnoreFields(PageSnapshot{}, "Screenshot"))
	assert.Empty(t, diff, "snapshots should be equal once screenshot bytes are ignored")

	b.Title = "Different"
	diff = cmp.Diff(a, b, cmpopts.IgnoreFields(PageSnapshot{}, "Screenshot"))
	assert.NotEmpty(t, diff, "title change should surface in the diff")
}
