package browser

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"
)

// computeBranchPathHash derives a stable fingerprint for an interactive
// element from its tag, the path string the caller supplies as xpath, and
// a canonicalized subset of its attributes. Two elements at different
// points in time hash identically iff they have the same tag, path and
// salient attributes, which is what the mid-batch subset check needs: a
// DOM mutation that changes a node's path or attributes changes its hash.
// Session.GetState passes a synthetic "/snapshot/<tag>[<index>]" path built
// from the interactive-element index, not the node's path from the
// document root.
func computeBranchPathHash(tag, xpath string, attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(tag)
	b.WriteByte('|')
	b.WriteString(xpath)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(attrs[k])
	}

	sum := sha1.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
