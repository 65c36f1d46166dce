package types

import "time"

// NoGroup is the group ID of a tab that is not in any tab group.
const NoGroup = -1

// Tab represents a single browser tab as reported by the extension.
type Tab struct {
	ID           int
	WindowID     int
	GroupID      int // NoGroup if ungrouped
	Index        int
	URL          string
	Title        string
	Pinned       bool
	LastAccessed time.Time
}

// Grouped reports whether the tab belongs to a tab group.
func (t *Tab) Grouped() bool {
	return t.GroupID != NoGroup
}

// TabGroup represents a browser tab group.
type TabGroup struct {
	ID        int
	WindowID  int
	Title     string
	Color     string
	Collapsed bool
	Tabs      []*Tab // only populated for offline sessions
}

// Window is a browser window with its tabs.
type Window struct {
	ID   int
	Tabs []*Tab
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// SessionData holds the windows, tabs and groups read from a session file.
type SessionData struct {
	Windows  []*Window
	Groups   []*TabGroup
	AllTabs  []*Tab
	Profile  Profile
	ParsedAt time.Time
}

// GroupByID returns the group with the given ID, or nil.
func (s *SessionData) GroupByID(id int) *TabGroup {
	for _, g := range s.Groups {
		if g.ID == id {
			return g
		}
	}
	return nil
}

// GroupUpdate holds the properties set on a newly created tab group.
// An empty Color leaves the browser's choice in place.
type GroupUpdate struct {
	Title     string
	Color     string
	Collapsed bool
}
