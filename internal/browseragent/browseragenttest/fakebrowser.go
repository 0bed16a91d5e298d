// Package browseragenttest provides fake ChatModel and BrowsingContext
// implementations for driving the pipeline in tests without a real browser
// or model endpoint, mirroring the teacher's fake-shard test style in
// internal/shards/system/planner_test.go.
package browseragenttest

import (
	"context"
	"fmt"
	"sync"

	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
)

// FakeBrowser is an in-memory BrowsingContext: a single element map the
// test wires up front, shared by every URL and tab. Actions mutate
// CurrentURL/Tabs directly so tests can assert on them.
type FakeBrowser struct {
	mu sync.Mutex

	CurrentURL string
	Tabs       []string
	Elements   map[int]browser.ElementNode

	// NewElementsAfterClick, if set, is merged into Elements after the
	// click on ClickIndexTrigger, simulating a DOM mutation mid-batch
	// (spec.md §8 scenario 2).
	ClickIndexTrigger    int
	NewElementsAfterClick map[int]browser.ElementNode
	triggered            bool

	// MutateOnGetStateCall, if non-zero, merges MutateWith into Elements
	// the instant GetState is called for the Nth time (1-based), regardless
	// of which action triggered the call. This simulates a DOM change from
	// a non-index-bearing action (e.g. wait, refresh_page) ahead of a later
	// index-bearing action in the same batch.
	MutateOnGetStateCall int
	MutateWith           map[int]browser.ElementNode
	getStateCalls        int

	// OpenTabOnClick, if true, makes every click append a new tab,
	// simulating a click that opens one.
	OpenTabOnClick bool

	ScrollCount int
	AtBottom    bool
	AtTop       bool

	Closed bool
}

// NewFakeBrowser returns a FakeBrowser seeded with one tab and no elements.
func NewFakeBrowser(url string) *FakeBrowser {
	return &FakeBrowser{
		CurrentURL: url,
		Tabs:       []string{"tab-0"},
		Elements:   map[int]browser.ElementNode{},
	}
}

func (f *FakeBrowser) GetState(_ context.Context, _ bool) (browser.PageSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getStateCalls++
	if f.MutateOnGetStateCall != 0 && f.getStateCalls == f.MutateOnGetStateCall {
		for k, v := range f.MutateWith {
			f.Elements[k] = v
		}
	}
	elements := make(map[int]browser.ElementNode, len(f.Elements))
	for k, v := range f.Elements {
		elements[k] = v
	}
	tabs := make([]browser.TabInfo, len(f.Tabs))
	for i, id := range f.Tabs {
		tabs[i] = browser.TabInfo{TabID: id, URL: f.CurrentURL}
	}
	return browser.PageSnapshot{
		Title:    "fake",
		URL:      f.CurrentURL,
		TabID:    f.Tabs[len(f.Tabs)-1],
		Elements: elements,
		Tabs:     tabs,
	}, nil
}

func (f *FakeBrowser) ClickElementByIndex(_ context.Context, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Elements[index]; !ok {
		return bgerr.New(bgerr.ElementStale, fmt.Sprintf("no element at index %d", index), nil)
	}
	if index == f.ClickIndexTrigger && !f.triggered {
		f.triggered = true
		for k, v := range f.NewElementsAfterClick {
			f.Elements[k] = v
		}
	}
	if f.OpenTabOnClick {
		f.Tabs = append(f.Tabs, fmt.Sprintf("tab-%d", len(f.Tabs)))
	}
	return nil
}

func (f *FakeBrowser) InputText(_ context.Context, index int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Elements[index]; !ok {
		return bgerr.New(bgerr.ElementStale, fmt.Sprintf("no element at index %d", index), nil)
	}
	return nil
}

func (f *FakeBrowser) SendKeys(_ context.Context, _ string) error { return nil }

func (f *FakeBrowser) ScrollDown(_ context.Context, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScrollCount++
	return f.AtBottom, nil
}

func (f *FakeBrowser) ScrollUp(_ context.Context, _ int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ScrollCount++
	return f.AtTop, nil
}

func (f *FakeBrowser) ScrollToText(_ context.Context, _ string) (bool, error) { return true, nil }

func (f *FakeBrowser) GetDropdownOptions(_ context.Context, index int) ([]string, error) {
	if _, ok := f.Elements[index]; !ok {
		return nil, bgerr.New(bgerr.ElementStale, fmt.Sprintf("no element at index %d", index), nil)
	}
	return []string{"one", "two"}, nil
}

func (f *FakeBrowser) SelectDropdownOption(_ context.Context, index int, _ string) error {
	el, ok := f.Elements[index]
	if !ok {
		return bgerr.New(bgerr.ElementStale, fmt.Sprintf("no element at index %d", index), nil)
	}
	if el.Tag != "select" {
		return bgerr.New(bgerr.InvalidInput, "not a select element", nil)
	}
	return nil
}

func (f *FakeBrowser) IsFileUploader(_ context.Context, index int) (bool, error) {
	el, ok := f.Elements[index]
	return ok && el.Tag == "input" && el.Attributes["type"] == "file", nil
}

func (f *FakeBrowser) GoBack(_ context.Context) error      { return nil }
func (f *FakeBrowser) RefreshPage(_ context.Context) error { return nil }

func (f *FakeBrowser) URL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CurrentURL, nil
}

func (f *FakeBrowser) NavigateTo(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CurrentURL = url
	return nil
}

func (f *FakeBrowser) OpenTab(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("tab-%d", len(f.Tabs))
	f.Tabs = append(f.Tabs, id)
	f.CurrentURL = url
	return id, nil
}

func (f *FakeBrowser) CloseTab(_ context.Context, tabID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.Tabs {
		if id == tabID {
			f.Tabs = append(f.Tabs[:i], f.Tabs[i+1:]...)
			return nil
		}
	}
	return bgerr.New(bgerr.ElementStale, "unknown tab", nil)
}

func (f *FakeBrowser) SwitchTab(_ context.Context, tabID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.Tabs {
		if id == tabID {
			return nil
		}
	}
	return bgerr.New(bgerr.ElementStale, "unknown tab", nil)
}

func (f *FakeBrowser) GetAllTabIds(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Tabs))
	copy(out, f.Tabs)
	return out, nil
}

func (f *FakeBrowser) RemoveHighlight(_ context.Context) error { return nil }

func (f *FakeBrowser) Close() error {
	f.Closed = true
	return nil
}
