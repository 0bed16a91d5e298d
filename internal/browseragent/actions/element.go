package actions

import (
	"context"
	"fmt"
	"strings"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/registry"
)

func registerElementInteraction(reg *registry.Registry, ctx browser.BrowsingContext) {
	reg.Register(registry.ActionDefinition{
		Name:        "click_element",
		Description: "Click the interactive element at index.",
		InputSchema: schema(map[string]any{"index": intProp("element index from the current snapshot")}, "index"),
		HasIndex:    true,
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			index, ok := intInput(input, "index")
			if !ok {
				return errResult(bgerr.InvalidInput, "missing index")
			}
			before, err := ctx.GetAllTabIds(c)
			if err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "failed to read tabs before click")
			}
			if err := ctx.ClickElementByIndex(c, index); err != nil {
				return errResult(bgerr.ElementStale, fmt.Sprintf("element not found at index %d: %v (retry with a fresh snapshot)", index, err))
			}
			after, err := ctx.GetAllTabIds(c)
			if err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "failed to read tabs after click")
			}
			content := fmt.Sprintf("clicked element %d", index)
			var sourceURL string
			if len(after) == len(before)+1 {
				// The new tab is adopted by Session.ClickElementByIndex itself
				// (see browser/session.go adoptNewTab); here we only report it.
				if u, err := ctx.URL(c); err == nil {
					sourceURL = u
					content = fmt.Sprintf("clicked element %d, new tab opened and adopted (%s)", index, u)
				}
			}
			return agent.ActionResult{ExtractedContent: content, IncludeInMemory: true, SourceURL: sourceURL}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "input_text",
		Description: "Type text into the interactive element at index.",
		InputSchema: schema(map[string]any{
			"index": intProp("element index from the current snapshot"),
			"text":  strProp("text to type"),
		}, "index", "text"),
		HasIndex: true,
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			index, ok := intInput(input, "index")
			if !ok {
				return errResult(bgerr.InvalidInput, "missing index")
			}
			text, _ := strInput(input, "text")
			if err := ctx.InputText(c, index, text); err != nil {
				return errResult(bgerr.ElementStale, fmt.Sprintf("element not found at index %d: %v (retry with a fresh snapshot)", index, err))
			}
			return agent.ActionResult{ExtractedContent: fmt.Sprintf("input %q into element %d", text, index), IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "get_dropdown_options",
		Description: "List the option texts of the native select element at index.",
		InputSchema: schema(map[string]any{"index": intProp("element index from the current snapshot")}, "index"),
		HasIndex:    true,
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			index, ok := intInput(input, "index")
			if !ok {
				return errResult(bgerr.InvalidInput, "missing index")
			}
			options, err := ctx.GetDropdownOptions(c, index)
			if err != nil {
				return errResult(bgerr.ElementStale, fmt.Sprintf("element not found at index %d: %v (retry with a fresh snapshot)", index, err))
			}
			wrapped := browser.WrapUntrusted(strings.Join(options, ", "))
			return agent.ActionResult{ExtractedContent: wrapped, IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "select_dropdown_option",
		Description: "Select the option matching text on the native select element at index.",
		InputSchema: schema(map[string]any{
			"index": intProp("element index from the current snapshot"),
			"text":  strProp("option text to select"),
		}, "index", "text"),
		HasIndex: true,
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			index, ok := intInput(input, "index")
			if !ok {
				return errResult(bgerr.InvalidInput, "missing index")
			}
			text, _ := strInput(input, "text")
			if err := ctx.SelectDropdownOption(c, index, text); err != nil {
				// Not a native select, or option missing: a typed error result,
				// not a propagated exception, so the loop continues (spec.md §4.1).
				return agent.ActionResult{Error: fmt.Sprintf("could not select %q on element %d: %v", text, index, err), IncludeInMemory: true}, nil
			}
			return agent.ActionResult{ExtractedContent: fmt.Sprintf("selected %q on element %d", text, index), IncludeInMemory: true}, nil
		},
	})
}
