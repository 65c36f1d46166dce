package match

import (
	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/types"
)

// Action is what should happen to a tab.
type Action int

const (
	ActionNone Action = iota
	ActionUngroup
	ActionGroup
)

func (a Action) String() string {
	switch a {
	case ActionUngroup:
		return "ungroup"
	case ActionGroup:
		return "group"
	default:
		return "none"
	}
}

// Decision is the settings-only part of grouping a tab. It does not know
// whether the tab is already in the right group; that needs the browser.
type Decision struct {
	Action Action
	Title  string
	Color  string
	Reason string
}

// Decide computes the grouping decision for a tab under the given settings.
func Decide(s *settings.Settings, tab *types.Tab) Decision {
	if !s.AutoGroup {
		return Decision{Reason: "auto-group disabled"}
	}
	host, ok := Hostname(tab.URL)
	if !ok {
		return Decision{Reason: "unparseable url"}
	}

	if s.IsExcluded(host) {
		if tab.Grouped() {
			return Decision{Action: ActionUngroup, Reason: "excluded"}
		}
		return Decision{Reason: "excluded"}
	}

	title, color := Resolve(s, tab.URL)
	if title == "" {
		if tab.Grouped() {
			return Decision{Action: ActionUngroup, Reason: "no group name"}
		}
		return Decision{Reason: "no group name"}
	}
	return Decision{Action: ActionGroup, Title: title, Color: color}
}
