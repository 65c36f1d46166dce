package analyzer

import "github.com/lotas/tabgrouper/internal/types"

// Duplicates returns the tabs in tab's window, other than tab itself, whose
// URL is byte-identical to tab's. Fragments and query order count.
func Duplicates(tabs []*types.Tab, tab *types.Tab) []*types.Tab {
	var out []*types.Tab
	for _, t := range tabs {
		if t.ID != tab.ID && t.WindowID == tab.WindowID && t.URL == tab.URL {
			out = append(out, t)
		}
	}
	return out
}
