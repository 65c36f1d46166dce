// Package analyzer computes what an organize-all pass would do to a
// recorded session without touching a browser.
package analyzer

import (
	"github.com/lotas/tabgrouper/internal/match"
	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/types"
)

// Step is the planned action for one tab.
type Step string

const (
	StepSkip    Step = "skip"
	StepUngroup Step = "ungroup"
	StepKeep    Step = "keep"
	StepJoin    Step = "join"
	StepCreate  Step = "create"
	StepClose   Step = "close" // removed as a duplicate
)

// TabPlan is the planned action for one tab.
type TabPlan struct {
	Tab    *types.Tab
	Step   Step
	Group  string
	Color  string
	Reason string
	// ClosedBy is the ID of the tab whose grouping closes this duplicate.
	ClosedBy int
}

// NewGroup is a group the pass would create.
type NewGroup struct {
	WindowID  int
	Title     string
	Color     string
	Collapsed bool
}

// Plan is the outcome of simulating organize-all over a session.
type Plan struct {
	Profile   string
	Tabs      []TabPlan
	NewGroups []NewGroup
}

// Build simulates organize-all: tabs are visited window by window in
// order, groups created earlier in the pass are joined by later tabs, and
// duplicate removal follows each join or create when enabled.
func Build(sd *types.SessionData, s *settings.Settings) Plan {
	p := Plan{Profile: sd.Profile.Name}
	closed := make(map[int]bool)
	index := make(map[int]int) // tab ID -> position in p.Tabs

	for _, w := range sd.Windows {
		byTitle := make(map[string]bool)
		for _, g := range sd.Groups {
			if g.WindowID == w.ID {
				byTitle[g.Title] = true
			}
		}

		for _, tab := range w.Tabs {
			if closed[tab.ID] {
				continue
			}
			tp := planTab(sd, s, tab, byTitle)
			if tp.Step == StepCreate {
				byTitle[tp.Group] = true
				p.NewGroups = append(p.NewGroups, NewGroup{
					WindowID:  w.ID,
					Title:     tp.Group,
					Color:     tp.Color,
					Collapsed: s.AutoCollapse,
				})
			}
			index[tab.ID] = len(p.Tabs)
			p.Tabs = append(p.Tabs, tp)

			if s.RemoveDuplicates && (tp.Step == StepJoin || tp.Step == StepCreate) {
				for _, dup := range Duplicates(w.Tabs, tab) {
					if closed[dup.ID] {
						continue
					}
					closed[dup.ID] = true
					cp := TabPlan{Tab: dup, Step: StepClose, ClosedBy: tab.ID}
					if i, seen := index[dup.ID]; seen {
						p.Tabs[i] = cp
					} else {
						index[dup.ID] = len(p.Tabs)
						p.Tabs = append(p.Tabs, cp)
					}
				}
			}
		}
	}
	return p
}

func planTab(sd *types.SessionData, s *settings.Settings, tab *types.Tab, byTitle map[string]bool) TabPlan {
	d := match.Decide(s, tab)
	tp := TabPlan{Tab: tab, Group: d.Title, Color: d.Color, Reason: d.Reason}
	switch d.Action {
	case match.ActionNone:
		tp.Step = StepSkip
	case match.ActionUngroup:
		tp.Step = StepUngroup
	default:
		if g := sd.GroupByID(tab.GroupID); tab.Grouped() && g != nil && g.Title == d.Title {
			tp.Step = StepKeep
		} else if byTitle[d.Title] {
			tp.Step = StepJoin
		} else {
			tp.Step = StepCreate
		}
	}
	return tp
}
