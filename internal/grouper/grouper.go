package grouper

import (
	"context"
	"fmt"

	"github.com/lotas/tabgrouper/internal/applog"
	"github.com/lotas/tabgrouper/internal/match"
	"github.com/lotas/tabgrouper/internal/types"
)

// Browser is the subset of the browser's tabs/tabGroups/windows APIs the
// controller needs.
type Browser interface {
	GetGroup(ctx context.Context, groupID int) (*types.TabGroup, error)
	QueryGroups(ctx context.Context, windowID int) ([]*types.TabGroup, error)
	GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error)
	UpdateGroup(ctx context.Context, groupID int, upd types.GroupUpdate) error
	UngroupTabs(ctx context.Context, tabIDs []int) error
	QueryTabs(ctx context.Context, windowID int) ([]*types.Tab, error)
	RemoveTabs(ctx context.Context, tabIDs []int) error
	Windows(ctx context.Context) ([]*types.Window, error)
}

// Outcome classifies what GroupTab did with a tab.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeUngrouped Outcome = "ungrouped"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeJoined    Outcome = "joined"
	OutcomeCreated   Outcome = "created"
	OutcomeFailed    Outcome = "failed"
)

// Result describes one GroupTab call.
type Result struct {
	Outcome Outcome
	Title   string
	GroupID int
	Removed int   // duplicate tabs closed
	Err     error // set for OutcomeFailed
}

// Connection is implemented by browsers reached over a link that can drop.
// OrganizeAll stops once a failure leaves the link down.
type Connection interface {
	Connected() bool
}

// Recorder receives every result that touched the browser.
type Recorder interface {
	Record(tab *types.Tab, res Result)
}

// Controller applies the grouping rules to live tabs.
type Controller struct {
	browser  Browser
	cache    *Cache
	recorder Recorder
}

// New creates a Controller. recorder may be nil.
func New(b Browser, cache *Cache, recorder Recorder) *Controller {
	return &Controller{browser: b, cache: cache, recorder: recorder}
}

// Qualifies reports whether a tab update should trigger grouping: the
// page finished loading or its URL changed, and the tab has a URL.
func Qualifies(status, changedURL string, tab *types.Tab) bool {
	return (status == "complete" || changedURL != "") && tab.URL != ""
}

// GroupTab moves a tab into the group its URL resolves to. Browser errors
// are expected (tabs close or get dragged mid-operation); they are logged
// and reported as OutcomeFailed, never returned.
func (c *Controller) GroupTab(ctx context.Context, tab *types.Tab) Result {
	res := c.groupTab(ctx, tab)
	if res.Outcome != OutcomeSkipped {
		applog.Debug("group.tab", "tab", tab.ID, "outcome", res.Outcome, "title", res.Title)
		if c.recorder != nil {
			c.recorder.Record(tab, res)
		}
	}
	return res
}

func (c *Controller) groupTab(ctx context.Context, tab *types.Tab) Result {
	s, err := c.cache.Get()
	if err != nil {
		applog.Error("group.settings", err)
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	d := match.Decide(s, tab)
	switch d.Action {
	case match.ActionNone:
		return Result{Outcome: OutcomeSkipped}
	case match.ActionUngroup:
		if err := c.browser.UngroupTabs(ctx, []int{tab.ID}); err != nil {
			applog.Error("group.ungroup", err, "tab", tab.ID, "reason", d.Reason)
			return Result{Outcome: OutcomeFailed, Err: err}
		}
		return Result{Outcome: OutcomeUngrouped}
	}

	if tab.Grouped() {
		// A failed lookup (group gone) just means we regroup.
		if g, err := c.browser.GetGroup(ctx, tab.GroupID); err == nil && g.Title == d.Title {
			return Result{Outcome: OutcomeUnchanged, Title: d.Title, GroupID: g.ID}
		}
	}

	res, err := c.assign(ctx, tab, d, s.AutoCollapse)
	if err != nil {
		applog.Error("group.assign", err, "tab", tab.ID, "title", d.Title)
		return Result{Outcome: OutcomeFailed, Title: d.Title, Err: err}
	}

	if s.RemoveDuplicates {
		n, err := c.removeDuplicates(ctx, tab)
		if err != nil {
			applog.Error("group.duplicates", err, "tab", tab.ID)
		}
		res.Removed = n
	}
	return res
}

// assign adds the tab to the same-window group titled d.Title, creating
// the group if there is none.
func (c *Controller) assign(ctx context.Context, tab *types.Tab, d match.Decision, collapsed bool) (Result, error) {
	groups, err := c.browser.QueryGroups(ctx, tab.WindowID)
	if err != nil {
		return Result{}, fmt.Errorf("query groups: %w", err)
	}
	for _, g := range groups {
		if g.Title != d.Title {
			continue
		}
		if _, err := c.browser.GroupTabs(ctx, []int{tab.ID}, g.ID); err != nil {
			return Result{}, fmt.Errorf("join group %d: %w", g.ID, err)
		}
		return Result{Outcome: OutcomeJoined, Title: d.Title, GroupID: g.ID}, nil
	}

	id, err := c.browser.GroupTabs(ctx, []int{tab.ID}, types.NoGroup)
	if err != nil {
		return Result{}, fmt.Errorf("create group: %w", err)
	}
	upd := types.GroupUpdate{Title: d.Title, Color: d.Color, Collapsed: collapsed}
	if err := c.browser.UpdateGroup(ctx, id, upd); err != nil {
		return Result{}, fmt.Errorf("update group %d: %w", id, err)
	}
	return Result{Outcome: OutcomeCreated, Title: d.Title, GroupID: id}, nil
}

// removeDuplicates closes other tabs in the tab's window with the exact
// same URL.
func (c *Controller) removeDuplicates(ctx context.Context, tab *types.Tab) (int, error) {
	tabs, err := c.browser.QueryTabs(ctx, tab.WindowID)
	if err != nil {
		return 0, fmt.Errorf("query tabs: %w", err)
	}
	var ids []int
	for _, t := range tabs {
		if t.URL == tab.URL && t.ID != tab.ID {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := c.browser.RemoveTabs(ctx, ids); err != nil {
		return 0, fmt.Errorf("remove tabs: %w", err)
	}
	return len(ids), nil
}

// Summary counts outcomes of an organize-all pass.
type Summary struct {
	Tabs     int
	Outcomes map[Outcome]int
	Removed  int
}

// OrganizeAll runs GroupTab over every tab of every window, one at a time.
// Per-tab failures are counted, not returned, unless the browser connection
// is gone after one; the pass then stops with that failure.
func (c *Controller) OrganizeAll(ctx context.Context) (Summary, error) {
	sum := Summary{Outcomes: make(map[Outcome]int)}

	// Pick up settings written while the cache was empty.
	if _, err := c.cache.Get(); err != nil {
		return sum, fmt.Errorf("load settings: %w", err)
	}
	windows, err := c.browser.Windows(ctx)
	if err != nil {
		return sum, fmt.Errorf("list windows: %w", err)
	}
	for _, w := range windows {
		for _, tab := range w.Tabs {
			if err := ctx.Err(); err != nil {
				return sum, err
			}
			res := c.GroupTab(ctx, tab)
			sum.Tabs++
			sum.Outcomes[res.Outcome]++
			sum.Removed += res.Removed
			if res.Err != nil && c.disconnected() {
				applog.Info("organize.aborted", "tabs", sum.Tabs)
				return sum, fmt.Errorf("organize tab %d: %w", tab.ID, res.Err)
			}
		}
	}
	applog.Info("organize.done", "tabs", sum.Tabs, "created", sum.Outcomes[OutcomeCreated],
		"joined", sum.Outcomes[OutcomeJoined], "failed", sum.Outcomes[OutcomeFailed])
	return sum, nil
}

func (c *Controller) disconnected() bool {
	conn, ok := c.browser.(Connection)
	return ok && !conn.Connected()
}
