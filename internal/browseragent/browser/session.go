package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"browseragent/internal/browseragent/bgerr"
)

// ownership distinguishes tabs the automation opened itself from tabs that
// existed (or were opened by the user) before the task started. The
// security sub-contract in spec.md §6 forbids closing or switching to a
// user-owned tab.
type ownership int

const (
	ownershipUser ownership = iota
	ownershipAutomation
)

// Session is one task's BrowsingContext: a single incognito browser
// context with one or more tabs, exactly as spec.md §5 requires ("exactly
// one BrowsingContext per task"). Adapted from the teacher's sessionRecord
// in internal/browser/session_manager.go, trimmed of the Mangle fact-sink
// and persistence concerns that package also carried.
type Session struct {
	mu        sync.Mutex
	ID        string
	incognito *rod.Browser
	current   *rod.Page
	pages     map[proto.TargetID]*rod.Page
	ownership map[proto.TargetID]ownership
	cfg       Config
}

func newSession(id string, incognito *rod.Browser, page *rod.Page, cfg Config) *Session {
	tid := page.TargetID
	return &Session{
		ID:        id,
		incognito: incognito,
		current:   page,
		pages:     map[proto.TargetID]*rod.Page{tid: page},
		ownership: map[proto.TargetID]ownership{tid: ownershipAutomation},
		cfg:       cfg,
	}
}

// snapshotJS walks the DOM, tagging each visible interactive element with
// a data attribute so later actions can re-select it by index, and returns
// the structural fields needed to build a PageSnapshot.
const snapshotJS = `() => {
  const out = [];
  const nodes = document.querySelectorAll('a,button,input,select,textarea,[onclick],[role="button"]');
  let idx = 0;
  for (const el of nodes) {
    const rect = el.getBoundingClientRect();
    const style = window.getComputedStyle(el);
    const visible = rect.width > 0 && rect.height > 0 && style.visibility !== 'hidden' && style.display !== 'none';
    if (!visible) continue;
    el.setAttribute('data-browseragent-index', String(idx));
    const attrs = {};
    for (const a of el.attributes) { attrs[a.name] = a.value; }
    out.push({
      index: idx,
      tag: el.tagName.toLowerCase(),
      xpath: '',
      text: (el.innerText || el.value || '').slice(0, 200),
      attrs: attrs,
      inViewport: rect.top >= 0 && rect.top < window.innerHeight,
    });
    idx++;
  }
  return {
    title: document.title,
    url: location.href,
    elements: out,
    pixelsAbove: window.scrollY,
    pixelsBelow: Math.max(0, document.body.scrollHeight - window.scrollY - window.innerHeight),
  };
}`

type snapshotElement struct {
	Index      int               `json:"index"`
	Tag        string            `json:"tag"`
	XPath      string            `json:"xpath"`
	Text       string            `json:"text"`
	Attrs      map[string]string `json:"attrs"`
	InViewport bool              `json:"inViewport"`
}

type snapshotResult struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Elements    []snapshotElement `json:"elements"`
	PixelsAbove int               `json:"pixelsAbove"`
	PixelsBelow int               `json:"pixelsBelow"`
}

func (s *Session) page() *rod.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// GetState implements BrowsingContext. Each element's XPath and hash use a
// synthetic "/snapshot/<tag>[<index>]" path; the snapshot JS does not
// compute the node's path from the document root, so an element whose
// interactive index shifts gets a new hash.
func (s *Session) GetState(ctx context.Context, useVision bool) (PageSnapshot, error) {
	page := s.page().Context(ctx)

	res, err := page.Evaluate(&rod.EvalOptions{JS: snapshotJS, ByValue: true})
	if err != nil {
		return PageSnapshot{}, bgerr.Wrap(bgerr.ElementStale, err, "snapshot evaluation failed")
	}

	var sr snapshotResult
	if err := res.Value.Unmarshal(&sr); err != nil {
		return PageSnapshot{}, bgerr.Wrap(bgerr.ModelFormat, err, "snapshot payload unparsable")
	}

	elements := make(map[int]ElementNode, len(sr.Elements))
	for _, e := range sr.Elements {
		elements[e.Index] = ElementNode{
			Tag:         e.Tag,
			XPath:       fmt.Sprintf("/snapshot/%s[%d]", e.Tag, e.Index),
			Attributes:  e.Attrs,
			Text:        e.Text,
			Visible:     true,
			Interactive: true,
			InViewport:  e.InViewport,
			Hash:        computeBranchPathHash(e.Tag, fmt.Sprintf("/snapshot/%s[%d]", e.Tag, e.Index), e.Attrs),
		}
	}

	snap := PageSnapshot{
		Title:       sr.Title,
		URL:         sr.URL,
		TabID:       string(s.page().TargetID),
		Elements:    elements,
		PixelsAbove: sr.PixelsAbove,
		PixelsBelow: sr.PixelsBelow,
	}

	snap.Tabs = s.tabInfosLocked()

	if useVision {
		shot, err := page.Screenshot(false, nil)
		if err == nil {
			snap.Screenshot = shot
		}
	}

	return snap, nil
}

func (s *Session) tabInfosLocked() []TabInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TabInfo, 0, len(s.pages))
	for id, p := range s.pages {
		url, title := "", ""
		if info, err := p.Info(); err == nil && info != nil {
			url = info.URL
			title = info.Title
		}
		out = append(out, TabInfo{TabID: string(id), Title: title, URL: url})
	}
	return out
}

func elementSelector(index int) string {
	return fmt.Sprintf(`[data-browseragent-index="%d"]`, index)
}

func (s *Session) elementOrStale(ctx context.Context, index int) (*rod.Element, error) {
	page := s.page().Context(ctx)
	el, err := page.Element(elementSelector(index))
	if err != nil {
		return nil, bgerr.Wrap(bgerr.ElementStale, err, fmt.Sprintf("element at index %d not found", index))
	}
	return el, nil
}

// ClickElementByIndex implements BrowsingContext. When the click opens a
// new tab, the new tab is adopted into the automation domain (spec.md §4.1
// edge case / scenario 6).
func (s *Session) ClickElementByIndex(ctx context.Context, index int) error {
	before, err := s.GetAllTabIds(ctx)
	if err != nil {
		return err
	}

	el, err := s.elementOrStale(ctx, index)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return bgerr.Wrap(bgerr.ElementStale, err, "click failed")
	}

	after, err := s.GetAllTabIds(ctx)
	if err != nil {
		return err
	}
	if len(after) == len(before)+1 {
		s.adoptNewTab(before, after)
	}
	return nil
}

// adoptNewTab marks the tab id present in after but not before as
// automation-owned and switches the current tab pointer to it, per
// spec.md §4.1's "adopt the new tab... switch to it" click_element policy.
// The new tab may have been opened by the page itself rather than via
// OpenTab, so its *rod.Page is not yet in s.pages; fetch it from the live
// browser before registering ownership.
func (s *Session) adoptNewTab(before, after []string) {
	seen := make(map[string]bool, len(before))
	for _, id := range before {
		seen[id] = true
	}

	var newIDs []proto.TargetID
	for _, id := range after {
		if !seen[id] {
			newIDs = append(newIDs, proto.TargetID(id))
		}
	}
	if len(newIDs) == 0 {
		return
	}

	livePages, err := s.incognito.Pages()
	if err != nil {
		return
	}
	byID := make(map[proto.TargetID]*rod.Page, len(livePages))
	for _, p := range livePages {
		byID[p.TargetID] = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range newIDs {
		s.ownership[id] = ownershipAutomation
		if page, ok := byID[id]; ok {
			s.pages[id] = page
			s.current = page
		}
	}
}

// InputText implements BrowsingContext.
func (s *Session) InputText(ctx context.Context, index int, text string) error {
	el, err := s.elementOrStale(ctx, index)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return bgerr.Wrap(bgerr.ElementStale, err, "input failed")
	}
	return nil
}

// SendKeys implements BrowsingContext using CDP's raw text-insertion path
// (the closest rod primitive to a synthesized keystroke sequence).
func (s *Session) SendKeys(ctx context.Context, keys string) error {
	page := s.page().Context(ctx)
	if err := page.InsertText(keys); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "send_keys failed")
	}
	return nil
}

func (s *Session) scrollBy(ctx context.Context, pixels int) (bool, error) {
	page := s.page().Context(ctx)
	js := fmt.Sprintf(`() => {
	  const before = window.scrollY;
	  window.scrollBy(0, %d);
	  return before === window.scrollY;
	}`, pixels)
	res, err := page.Evaluate(&rod.EvalOptions{JS: js, ByValue: true})
	if err != nil {
		return false, bgerr.Wrap(bgerr.InvalidInput, err, "scroll failed")
	}
	var atExtremum bool
	_ = res.Value.Unmarshal(&atExtremum)
	return atExtremum, nil
}

// ScrollDown implements BrowsingContext. Already-at-bottom is reported via
// atExtremum=true, not an error (spec.md §4.1 edge-case policy).
func (s *Session) ScrollDown(ctx context.Context, pixels int) (bool, error) {
	if pixels == 0 {
		pixels = s.cfg.ViewportHeight
	}
	return s.scrollBy(ctx, pixels)
}

// ScrollUp implements BrowsingContext.
func (s *Session) ScrollUp(ctx context.Context, pixels int) (bool, error) {
	if pixels == 0 {
		pixels = s.cfg.ViewportHeight
	}
	return s.scrollBy(ctx, -pixels)
}

// ScrollToText implements BrowsingContext.
func (s *Session) ScrollToText(ctx context.Context, text string) (bool, error) {
	page := s.page().Context(ctx)
	js := `(needle) => {
	  const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
	  let node;
	  while ((node = walker.nextNode())) {
	    if (node.textContent && node.textContent.includes(needle)) {
	      node.parentElement.scrollIntoView({block: 'center'});
	      return true;
	    }
	  }
	  return false;
	}`
	res, err := page.Evaluate(rod.Eval(js, text))
	if err != nil {
		return false, bgerr.Wrap(bgerr.InvalidInput, err, "scroll_to_text failed")
	}
	var found bool
	_ = res.Value.Unmarshal(&found)
	return found, nil
}

// GetDropdownOptions implements BrowsingContext.
func (s *Session) GetDropdownOptions(ctx context.Context, index int) ([]string, error) {
	el, err := s.elementOrStale(ctx, index)
	if err != nil {
		return nil, err
	}
	tagRes, err := el.Eval(`() => this.tagName`)
	if err != nil || tagRes.Value.Str() != "SELECT" {
		return nil, bgerr.New(bgerr.InvalidInput, "element is not a native select", nil)
	}
	res, err := el.Eval(`() => Array.from(this.options).map(o => o.text)`)
	if err != nil {
		return nil, bgerr.Wrap(bgerr.InvalidInput, err, "dropdown options unavailable")
	}
	var opts []string
	_ = res.Value.Unmarshal(&opts)
	return opts, nil
}

// SelectDropdownOption implements BrowsingContext, returning a typed error
// (not a panic) when the index is not a native select, per spec.md §4.1.
func (s *Session) SelectDropdownOption(ctx context.Context, index int, text string) error {
	el, err := s.elementOrStale(ctx, index)
	if err != nil {
		return err
	}
	if err := el.Select([]string{text}, true, rod.SelectorTypeText); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "select_dropdown_option failed: not a native select or option missing")
	}
	return nil
}

// IsFileUploader implements BrowsingContext.
func (s *Session) IsFileUploader(ctx context.Context, index int) (bool, error) {
	el, err := s.elementOrStale(ctx, index)
	if err != nil {
		return false, err
	}
	typ, _ := el.Attribute("type")
	tag, _ := el.Eval(`() => this.tagName`)
	isInput := tag != nil && tag.Value.Str() == "INPUT"
	return isInput && typ != nil && *typ == "file", nil
}

// GoBack implements BrowsingContext.
func (s *Session) GoBack(ctx context.Context) error {
	if err := s.page().Context(ctx).NavigateBack(); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "go_back failed")
	}
	return nil
}

// RefreshPage implements BrowsingContext.
func (s *Session) RefreshPage(ctx context.Context) error {
	if err := s.page().Context(ctx).Reload(); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "refresh_page failed")
	}
	return nil
}

// URL implements BrowsingContext.
func (s *Session) URL(ctx context.Context) (string, error) {
	info, err := s.page().Context(ctx).Info()
	if err != nil {
		return "", bgerr.Wrap(bgerr.InvalidInput, err, "url lookup failed")
	}
	return info.URL, nil
}

// NavigateTo implements BrowsingContext. Callers are expected to have
// already checked the URL against policy; URL_DISALLOWED is raised by the
// action handler layer, not here (this type has no policy knowledge).
func (s *Session) NavigateTo(ctx context.Context, url string) error {
	page := s.page().Context(ctx).Timeout(s.cfg.NavigationTimeout)
	if err := page.Navigate(url); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "navigation failed")
	}
	return page.WaitLoad()
}

// OpenTab implements BrowsingContext, opening a new automation-owned tab.
func (s *Session) OpenTab(ctx context.Context, url string) (string, error) {
	page, err := s.incognito.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", bgerr.Wrap(bgerr.InvalidInput, err, "open_tab failed")
	}
	s.mu.Lock()
	s.pages[page.TargetID] = page
	s.ownership[page.TargetID] = ownershipAutomation
	s.current = page
	s.mu.Unlock()
	return string(page.TargetID), nil
}

// CloseTab implements BrowsingContext, refusing to close a user-owned tab
// per the §6 security sub-contract.
func (s *Session) CloseTab(ctx context.Context, tabID string) error {
	id := proto.TargetID(tabID)
	s.mu.Lock()
	owner, known := s.ownership[id]
	page, ok := s.pages[id]
	s.mu.Unlock()
	if !known || owner != ownershipAutomation {
		return bgerr.New(bgerr.InvalidInput, "refusing to close a user-owned tab", map[string]any{"tab_id": tabID})
	}
	if !ok {
		return bgerr.New(bgerr.ElementStale, "unknown tab id", map[string]any{"tab_id": tabID})
	}
	if err := page.Close(); err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "close_tab failed")
	}
	s.mu.Lock()
	delete(s.pages, id)
	delete(s.ownership, id)
	s.mu.Unlock()
	return nil
}

// SwitchTab implements BrowsingContext, refusing to switch to a
// user-owned tab per the §6 security sub-contract.
func (s *Session) SwitchTab(ctx context.Context, tabID string) error {
	id := proto.TargetID(tabID)
	s.mu.Lock()
	owner, known := s.ownership[id]
	page, ok := s.pages[id]
	s.mu.Unlock()
	if !known || owner != ownershipAutomation {
		return bgerr.New(bgerr.InvalidInput, "refusing to switch to a user-owned tab", map[string]any{"tab_id": tabID})
	}
	if !ok {
		return bgerr.New(bgerr.ElementStale, "unknown tab id", map[string]any{"tab_id": tabID})
	}
	s.mu.Lock()
	s.current = page
	s.mu.Unlock()
	return nil
}

// GetAllTabIds implements BrowsingContext. It queries the live browser
// rather than only the locally tracked page map, so a tab opened by the
// page itself (e.g. a target="_blank" link) is visible for tab-adoption
// detection in ClickElementByIndex, not only tabs opened via OpenTab.
func (s *Session) GetAllTabIds(ctx context.Context) ([]string, error) {
	pages, err := s.incognito.Context(ctx).Pages()
	if err != nil {
		return nil, bgerr.Wrap(bgerr.ElementStale, err, "failed to list tabs")
	}
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, string(p.TargetID))
	}
	return out, nil
}

// RemoveHighlight implements BrowsingContext, clearing any on-page
// highlight overlay left from a previous action (spec.md §4.2's
// doMultiAction clears highlights before executing a new batch).
func (s *Session) RemoveHighlight(ctx context.Context) error {
	page := s.page().Context(ctx)
	_, err := page.Evaluate(&rod.EvalOptions{JS: `() => {
	  document.querySelectorAll('[data-browseragent-highlight]').forEach(el => {
	    el.style.outline = '';
	    el.removeAttribute('data-browseragent-highlight');
	  });
	}`})
	if err != nil {
		return bgerr.Wrap(bgerr.InvalidInput, err, "remove_highlight failed")
	}
	return nil
}

// Close tears down the session's incognito browser context.
func (s *Session) Close() error {
	return s.incognito.Close()
}
