package actions

import (
	"net/url"
	"strings"
)

// URLPolicy decides whether a navigation target is allowed. It is a plain
// allow/deny host list rather than a third-party rule engine: the policy
// surface here is two short string slices matched by suffix, far short of
// anything a rules/ACL library would pay for (see DESIGN.md).
type URLPolicy struct {
	AllowedHosts []string
	DeniedHosts  []string
}

// NoPolicy permits every URL.
func NoPolicy() URLPolicy { return URLPolicy{} }

// Allowed reports whether target passes the policy. An empty AllowedHosts
// list means "any host not explicitly denied"; a non-empty list means only
// matching hosts (or their subdomains) pass.
func (p URLPolicy) Allowed(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, denied := range p.DeniedHosts {
		if hostMatches(host, denied) {
			return false
		}
	}
	if len(p.AllowedHosts) == 0 {
		return true
	}
	for _, allowed := range p.AllowedHosts {
		if hostMatches(host, allowed) {
			return true
		}
	}
	return false
}

func hostMatches(host, pattern string) bool {
	pattern = strings.ToLower(pattern)
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}
