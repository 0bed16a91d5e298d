package actions

import (
	"context"
	"fmt"
	"net/url"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/registry"
)

func registerNavigation(reg *registry.Registry, ctx browser.BrowsingContext, policy URLPolicy) {
	reg.Register(registry.ActionDefinition{
		Name:        "go_to_url",
		Description: "Navigate the current tab to an absolute URL.",
		InputSchema: schema(map[string]any{
			"url":    strProp("absolute URL to navigate to"),
			"intent": strProp("human-readable reason for this navigation"),
		}, "url"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			target, _ := strInput(input, "url")
			if !policy.Allowed(target) {
				return errResult(bgerr.URLDisallowed, fmt.Sprintf("navigation to %q blocked by policy", target))
			}
			if err := ctx.NavigateTo(c, target); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "navigation failed")
			}
			return agent.ActionResult{ExtractedContent: "navigated to " + target, IncludeInMemory: true, SourceURL: target}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "search_google",
		Description: "Navigate to a Google search results page for query.",
		InputSchema: schema(map[string]any{
			"query":  strProp("search query"),
			"intent": strProp("human-readable reason for this search"),
		}, "query"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			query, _ := strInput(input, "query")
			target := "https://www.google.com/search?q=" + url.QueryEscape(query)
			if !policy.Allowed(target) {
				return errResult(bgerr.URLDisallowed, fmt.Sprintf("search target %q blocked by policy", target))
			}
			if err := ctx.NavigateTo(c, target); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "search navigation failed")
			}
			return agent.ActionResult{ExtractedContent: "searched google for " + query, IncludeInMemory: true, SourceURL: target}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "go_back",
		Description: "Navigate the current tab back one history entry.",
		Handler: func(c context.Context, _ map[string]any) (agent.ActionResult, error) {
			if err := ctx.GoBack(c); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "go back failed")
			}
			return agent.ActionResult{ExtractedContent: "navigated back", IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "refresh_page",
		Description: "Reload the current tab.",
		Handler: func(c context.Context, _ map[string]any) (agent.ActionResult, error) {
			if err := ctx.RefreshPage(c); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "refresh failed")
			}
			return agent.ActionResult{ExtractedContent: "page refreshed", IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "wait",
		Description: "Pause execution for the given number of seconds.",
		InputSchema: schema(map[string]any{"seconds": intProp("seconds to wait")}, "seconds"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			seconds, _ := intInput(input, "seconds")
			if err := sleepCancellable(c, seconds); err != nil {
				return agent.ActionResult{}, err
			}
			return agent.ActionResult{ExtractedContent: fmt.Sprintf("waited %ds", seconds), IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "open_tab",
		Description: "Open a new tab at url and adopt it into the automation domain.",
		InputSchema: schema(map[string]any{"url": strProp("absolute URL to open")}, "url"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			target, _ := strInput(input, "url")
			if !policy.Allowed(target) {
				return errResult(bgerr.URLDisallowed, fmt.Sprintf("open_tab target %q blocked by policy", target))
			}
			tabID, err := ctx.OpenTab(c, target)
			if err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "open tab failed")
			}
			return agent.ActionResult{ExtractedContent: "opened tab " + tabID, IncludeInMemory: true, SourceURL: target}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "switch_tab",
		Description: "Switch the active tab to tab_id.",
		InputSchema: schema(map[string]any{"tab_id": strProp("tab id to switch to")}, "tab_id"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			tabID, _ := strInput(input, "tab_id")
			if err := ctx.SwitchTab(c, tabID); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "switch tab failed")
			}
			return agent.ActionResult{ExtractedContent: "switched to tab " + tabID, IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "close_tab",
		Description: "Close tab_id.",
		InputSchema: schema(map[string]any{"tab_id": strProp("tab id to close")}, "tab_id"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			tabID, _ := strInput(input, "tab_id")
			if err := ctx.CloseTab(c, tabID); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "close tab failed")
			}
			return agent.ActionResult{ExtractedContent: "closed tab " + tabID, IncludeInMemory: true}, nil
		},
	})
}
