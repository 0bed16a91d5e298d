package browser

import "context"

// BrowsingContext is the capability the Navigator, Planner, and default
// action handlers are written against (spec.md §6). The concrete
// implementation in this package (Session) is go-rod-backed; callers may
// substitute a fake for testing (see internal/browseragent/browseragenttest).
type BrowsingContext interface {
	// GetState returns a fresh snapshot. useVision requests a screenshot.
	GetState(ctx context.Context, useVision bool) (PageSnapshot, error)

	ClickElementByIndex(ctx context.Context, index int) error
	InputText(ctx context.Context, index int, text string) error
	SendKeys(ctx context.Context, keys string) error
	ScrollDown(ctx context.Context, pixels int) (atExtremum bool, err error)
	ScrollUp(ctx context.Context, pixels int) (atExtremum bool, err error)
	ScrollToText(ctx context.Context, text string) (found bool, err error)
	GetDropdownOptions(ctx context.Context, index int) ([]string, error)
	SelectDropdownOption(ctx context.Context, index int, text string) error
	IsFileUploader(ctx context.Context, index int) (bool, error)

	GoBack(ctx context.Context) error
	RefreshPage(ctx context.Context) error
	URL(ctx context.Context) (string, error)

	NavigateTo(ctx context.Context, url string) error
	OpenTab(ctx context.Context, url string) (tabID string, err error)
	CloseTab(ctx context.Context, tabID string) error
	SwitchTab(ctx context.Context, tabID string) error
	GetAllTabIds(ctx context.Context) ([]string, error)
	RemoveHighlight(ctx context.Context) error
}
