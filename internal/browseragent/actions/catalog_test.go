package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/browseragenttest"
	"browseragent/internal/browseragent/registry"
)

func newRegistryWithFake(fake *browseragenttest.FakeBrowser, policy URLPolicy) *registry.Registry {
	reg := registry.New()
	RegisterDefaults(reg, fake, policy)
	return reg
}

func TestGoToURL_RespectsPolicy(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	policy := URLPolicy{AllowedHosts: []string{"good.example"}}
	reg := newRegistryWithFake(fake, policy)

	_, err := reg.Dispatch(context.Background(), "go_to_url", map[string]any{"url": "https://evil.example/x"})

	require.Error(t, err)
	kind, ok := bgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bgerr.URLDisallowed, kind)
}

func TestGoToURL_AllowedNavigates(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	reg := newRegistryWithFake(fake, NoPolicy())

	result, err := reg.Dispatch(context.Background(), "go_to_url", map[string]any{"url": "https://good.example"})

	require.NoError(t, err)
	assert.Contains(t, result.ExtractedContent, "good.example")
	assert.Equal(t, "https://good.example", fake.CurrentURL)
}

func TestClickElement_StaleIndexSurfacesElementStale(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	reg := newRegistryWithFake(fake, NoPolicy())

	_, err := reg.Dispatch(context.Background(), "click_element", map[string]any{"index": 7})

	require.Error(t, err)
	kind, ok := bgerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, bgerr.ElementStale, kind)
}

func TestClickElement_TabAdoption(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	fake.Elements[0] = browser.ElementNode{Tag: "a"}
	fake.OpenTabOnClick = true
	reg := newRegistryWithFake(fake, NoPolicy())

	result, err := reg.Dispatch(context.Background(), "click_element", map[string]any{"index": 0})

	require.NoError(t, err)
	assert.Contains(t, result.ExtractedContent, "new tab")
	assert.Len(t, fake.Tabs, 2)
}

func TestSelectDropdownOption_NonSelectReturnsTypedErrorNotException(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	fake.Elements[0] = browser.ElementNode{Tag: "div"}
	reg := newRegistryWithFake(fake, NoPolicy())

	result, err := reg.Dispatch(context.Background(), "select_dropdown_option", map[string]any{"index": 0, "text": "x"})

	require.NoError(t, err)
	assert.NotEmpty(t, result.Error)
}

func TestScrollDown_AtExtremumNotesNoError(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	fake.AtBottom = true
	reg := newRegistryWithFake(fake, NoPolicy())

	result, err := reg.Dispatch(context.Background(), "scroll_down", map[string]any{})

	require.NoError(t, err)
	assert.Contains(t, result.ExtractedContent, "already at the bottom")
}

func TestDone_MarksIsDone(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	reg := newRegistryWithFake(fake, NoPolicy())

	result, err := reg.Dispatch(context.Background(), "done", map[string]any{"text": "finished"})

	require.NoError(t, err)
	assert.True(t, result.IsDone)
	assert.Equal(t, "finished", result.ExtractedContent)
}

func TestCacheContent_WrapsUntrusted(t *testing.T) {
	fake := browseragenttest.NewFakeBrowser("https://start.example")
	reg := newRegistryWithFake(fake, NoPolicy())

	result, err := reg.Dispatch(context.Background(), "cache_content", map[string]any{"content": "<b>hi</b>"})

	require.NoError(t, err)
	assert.Contains(t, result.ExtractedContent, "<untrusted_content>")
	assert.NotContains(t, result.ExtractedContent, "<b>")
}
