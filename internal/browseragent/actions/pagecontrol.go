package actions

import (
	"context"
	"fmt"

	"browseragent/internal/browseragent/agent"
	"browseragent/internal/browseragent/bgerr"
	"browseragent/internal/browseragent/browser"
	"browseragent/internal/browseragent/registry"
)

const defaultScrollPixels = 500

func registerPageControl(reg *registry.Registry, ctx browser.BrowsingContext) {
	reg.Register(registry.ActionDefinition{
		Name:        "scroll_down",
		Description: "Scroll the page down by amount pixels (default 500).",
		InputSchema: schema(map[string]any{"amount": intProp("pixels to scroll, optional")}),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			pixels, ok := intInput(input, "amount")
			if !ok {
				pixels = defaultScrollPixels
			}
			atBottom, err := ctx.ScrollDown(c, pixels)
			if err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "scroll_down failed")
			}
			if atBottom {
				return agent.ActionResult{ExtractedContent: "already at the bottom of the page", IncludeInMemory: true}, nil
			}
			return agent.ActionResult{ExtractedContent: fmt.Sprintf("scrolled down %dpx", pixels), IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "scroll_up",
		Description: "Scroll the page up by amount pixels (default 500).",
		InputSchema: schema(map[string]any{"amount": intProp("pixels to scroll, optional")}),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			pixels, ok := intInput(input, "amount")
			if !ok {
				pixels = defaultScrollPixels
			}
			atTop, err := ctx.ScrollUp(c, pixels)
			if err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "scroll_up failed")
			}
			if atTop {
				return agent.ActionResult{ExtractedContent: "already at the top of the page", IncludeInMemory: true}, nil
			}
			return agent.ActionResult{ExtractedContent: fmt.Sprintf("scrolled up %dpx", pixels), IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "scroll_to_text",
		Description: "Scroll until text is visible in the viewport.",
		InputSchema: schema(map[string]any{"text": strProp("text to scroll to")}, "text"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			text, _ := strInput(input, "text")
			found, err := ctx.ScrollToText(c, text)
			if err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "scroll_to_text failed")
			}
			if !found {
				return agent.ActionResult{Error: fmt.Sprintf("text %q not found on page", text), IncludeInMemory: true}, nil
			}
			return agent.ActionResult{ExtractedContent: fmt.Sprintf("scrolled to text %q", text), IncludeInMemory: true}, nil
		},
	})

	reg.Register(registry.ActionDefinition{
		Name:        "send_keys",
		Description: "Send a keyboard chord (e.g. Enter, Escape, Control+A) to the focused element.",
		InputSchema: schema(map[string]any{"keys": strProp("key or chord to send")}, "keys"),
		Handler: func(c context.Context, input map[string]any) (agent.ActionResult, error) {
			keys, _ := strInput(input, "keys")
			if err := ctx.SendKeys(c, keys); err != nil {
				return agent.ActionResult{}, bgerr.Wrap(bgerr.ElementStale, err, "send_keys failed")
			}
			return agent.ActionResult{ExtractedContent: "sent keys " + keys, IncludeInMemory: true}, nil
		},
	})
}
