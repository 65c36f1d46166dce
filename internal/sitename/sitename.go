// Package sitename suggests a group name for a rule pattern from the title
// of the page it points at.
package sitename

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/lotas/tabgrouper/internal/match"
)

var skipPrefixes = []string{"about:", "moz-extension:", "file:", "chrome:", "resource:", "data:"}

// Separators between page and site name in titles, e.g.
// "Pull requests · golang/go · GitHub" or "Inbox - Gmail".
var separators = []string{" | ", " · ", " — ", " – ", " - ", " :: "}

const maxNameLen = 30

// Fetcher retrieves page titles.
type Fetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewFetcher returns a Fetcher with a 15 second timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: 15 * time.Second},
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// FetchTitle fetches url and returns the page title as readability sees it.
func (f *Fetcher) FetchTitle(ctx context.Context, url string) (string, error) {
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(url, prefix) {
			return "", fmt.Errorf("skipping non-HTTP URL: %s", url)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, nil)
	if err != nil {
		return "", fmt.Errorf("extract title from %s: %w", url, err)
	}
	return article.Title, nil
}

// Suggest returns a group name for a rule pattern. Patterns without a
// scheme are fetched over https. When the page cannot be fetched or has no
// usable title, the domain-derived group name is returned along with the
// fetch error.
func (f *Fetcher) Suggest(ctx context.Context, pattern string) (string, error) {
	url := PatternURL(pattern)
	fallback := match.GroupName(url)

	title, err := f.FetchTitle(ctx, url)
	if err != nil {
		return fallback, err
	}
	if name := FromTitle(title); name != "" {
		return name, nil
	}
	return fallback, nil
}

// PatternURL turns a rule pattern into a fetchable URL.
func PatternURL(pattern string) string {
	if strings.Contains(pattern, "://") {
		return pattern
	}
	return "https://" + strings.TrimPrefix(pattern, "//")
}

// FromTitle picks the site part of a page title: the last segment when the
// title is split by a known separator and that segment is short, otherwise
// the first. Results longer than 30 runes are cut.
func FromTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	parts := []string{title}
	for _, sep := range separators {
		if strings.Contains(title, sep) {
			parts = strings.Split(title, sep)
			break
		}
	}

	name := strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		if last := strings.TrimSpace(parts[len(parts)-1]); last != "" && len(strings.Fields(last)) <= 3 {
			name = last
		}
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = strings.TrimSpace(string(r[:maxNameLen]))
	}
	return name
}
