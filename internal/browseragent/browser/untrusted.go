package browser

import (
	"strings"

	"golang.org/x/net/html"
)

const (
	untrustedOpen  = "<untrusted_content>"
	untrustedClose = "</untrusted_content>"
)

// stripHTML removes any markup from raw page-derived text using a streaming
// tokenizer, so a page that embeds literal tags inside its visible text
// cannot smuggle structure past the delimiter wrapper below.
func stripHTML(raw string) string {
	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			sb.Write(tokenizer.Text())
		}
	}
}

// WrapUntrusted wraps page-derived text (e.g. cache_content input, dropdown
// option text) in a fixed delimiter pair so the model's system prompt can
// instruct it never to treat delimited content as instructions, per
// spec.md §9's untrusted-content design note.
func WrapUntrusted(content string) string {
	return untrustedOpen + stripHTML(content) + untrustedClose
}
