package match

import (
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/lotas/tabgrouper/internal/settings"
)

// MatchURL reports whether a rule pattern matches a URL.
//
// A pattern containing "/" is a plain substring test against the whole
// URL. Otherwise the pattern is a domain: the URL's hostname must equal it
// or be a subdomain of it, so "hub.com" does not match "github.com".
// If the URL cannot be parsed the substring test is used.
func MatchURL(rawURL, pattern string) bool {
	if pattern == "" {
		return false
	}
	if strings.Contains(pattern, "/") {
		return strings.Contains(rawURL, pattern)
	}
	host, ok := Hostname(rawURL)
	if !ok {
		return strings.Contains(rawURL, pattern)
	}
	return host == pattern || strings.HasSuffix(host, "."+pattern)
}

// SortRules returns the rules in matching order: longest pattern first,
// ties in list order. The input is not modified.
func SortRules(rules []settings.Rule) []settings.Rule {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, func(a, b settings.Rule) int {
		return utf8.RuneCountInString(b.Pattern) - utf8.RuneCountInString(a.Pattern)
	})
	return sorted
}

// FindRule returns the most specific rule matching the URL.
func FindRule(rules []settings.Rule, rawURL string) (settings.Rule, bool) {
	for _, r := range SortRules(rules) {
		if MatchURL(rawURL, r.Pattern) {
			return r, true
		}
	}
	return settings.Rule{}, false
}

// Resolve computes the group title and color for a URL. Custom rules win;
// otherwise the title is the domain group name and color is empty.
// An empty title means the URL should not be grouped.
func Resolve(s *settings.Settings, rawURL string) (title, color string) {
	if r, ok := FindRule(s.CustomRules, rawURL); ok {
		title, color = r.Name, r.Color
	}
	if title == "" {
		title = GroupName(rawURL)
	}
	return title, color
}
