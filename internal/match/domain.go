package match

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// privilegedSchemes never get a domain group.
var privilegedSchemes = map[string]bool{
	"chrome":           true,
	"chrome-extension": true,
	"about":            true,
	"moz-extension":    true,
	"edge":             true,
	"view-source":      true,
}

// compoundTLDs are second-level registries under which the registrable
// domain is three labels long. A fixed approximation of the public suffix
// list; anything not listed is treated as a plain TLD.
var compoundTLDs = []string{
	"co.jp", "ne.jp", "or.jp", "go.jp", "ac.jp", "ad.jp", "ed.jp", "gr.jp", "lg.jp",
	"co.uk", "org.uk", "me.uk", "ltd.uk",
	"com.au", "net.au", "org.au",
	"com.br", "net.br",
	"com.cn", "net.cn", "org.cn",
	"co.nz", "net.nz", "org.nz",
}

// parseURL parses an absolute URL. Relative references are rejected.
// Browsers accept malformed escapes in the path, query and fragment, so
// when the full URL does not parse only its scheme and authority are kept.
func parseURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		u, err = url.Parse(schemeAndAuthority(raw))
	}
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return u, true
}

// schemeAndAuthority cuts raw after the authority ("https://host:port"),
// or after the scheme for URLs without one.
func schemeAndAuthority(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		if j := strings.IndexAny(rest, "/?#"); j >= 0 {
			rest = rest[:j]
		}
		return raw[:i+3] + rest
	}
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i+1]
	}
	return raw
}

// Hostname returns the lowercased hostname of an absolute URL.
func Hostname(raw string) (string, bool) {
	u, ok := parseURL(raw)
	if !ok {
		return "", false
	}
	return strings.ToLower(u.Hostname()), true
}

// GroupName derives the automatic group title for a URL: the label just
// above the registrable suffix ("www.github.com" -> "github",
// "sub.example.co.jp" -> "example"). IP hosts are returned unchanged.
// Returns "" for unparseable URLs, privileged schemes and hostless URLs.
func GroupName(raw string) string {
	u, ok := parseURL(raw)
	if !ok || privilegedSchemes[strings.ToLower(u.Scheme)] {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}

	labels := strings.Split(host, ".")
	if allNumeric(labels) || net.ParseIP(host) != nil {
		return host
	}

	n := 2
	if hasCompoundTLD(host) {
		n = 3
	}
	if len(labels) >= n {
		return labels[len(labels)-n]
	}
	return host
}

func hasCompoundTLD(host string) bool {
	for _, tld := range compoundTLDs {
		if strings.HasSuffix(host, "."+tld) {
			return true
		}
	}
	return false
}

func allNumeric(labels []string) bool {
	for _, l := range labels {
		if _, err := strconv.ParseUint(l, 10, 64); err != nil {
			return false
		}
	}
	return true
}
