package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lotas/tabgrouper/internal/types"
)

// Event types sent by the extension.
const (
	EventInstalled   = "installed"
	EventTabUpdated  = "tabUpdated"
	EventOrganizeAll = "organizeAll"
	typeResponse     = "response"
)

// IncomingMsg is a message from the extension to the daemon: either an
// event or the response to a command.
type IncomingMsg struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	TabID      int             `json:"tabId,omitempty"`
	ChangeInfo *ChangeInfo     `json:"changeInfo,omitempty"`
	Tab        json.RawMessage `json:"tab,omitempty"`
	// Command response fields
	OK     *bool           `json:"ok,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ChangeInfo mirrors the browser's tabs.onUpdated change info.
type ChangeInfo struct {
	Status string `json:"status,omitempty"`
	URL    string `json:"url,omitempty"`
}

// OutgoingMsg is a command (or reply) from the daemon to the extension.
type OutgoingMsg struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	TabIDs    []int  `json:"tabIds,omitempty"`
	GroupID   int    `json:"groupId,omitempty"`
	WindowID  int    `json:"windowId,omitempty"`
	Title     string `json:"title,omitempty"`
	Color     string `json:"color,omitempty"`
	Collapsed *bool  `json:"collapsed,omitempty"`
	Status    string `json:"status,omitempty"`
}

type wireTab struct {
	ID           int     `json:"id"`
	WindowID     int     `json:"windowId"`
	GroupID      *int    `json:"groupId"`
	Index        int     `json:"index"`
	URL          string  `json:"url"`
	Title        string  `json:"title"`
	Pinned       bool    `json:"pinned"`
	LastAccessed float64 `json:"lastAccessed"`
}

func (wt wireTab) toTab() *types.Tab {
	tab := &types.Tab{
		ID:       wt.ID,
		WindowID: wt.WindowID,
		GroupID:  types.NoGroup,
		Index:    wt.Index,
		URL:      wt.URL,
		Title:    wt.Title,
		Pinned:   wt.Pinned,
	}
	if wt.GroupID != nil {
		tab.GroupID = *wt.GroupID
	}
	if wt.LastAccessed > 0 {
		tab.LastAccessed = time.UnixMilli(int64(wt.LastAccessed))
	}
	return tab
}

type wireGroup struct {
	ID        int    `json:"id"`
	WindowID  int    `json:"windowId"`
	Title     string `json:"title"`
	Color     string `json:"color"`
	Collapsed bool   `json:"collapsed"`
}

func (wg wireGroup) toGroup() *types.TabGroup {
	return &types.TabGroup{
		ID:        wg.ID,
		WindowID:  wg.WindowID,
		Title:     wg.Title,
		Color:     wg.Color,
		Collapsed: wg.Collapsed,
	}
}

type wireWindow struct {
	ID   int       `json:"id"`
	Tabs []wireTab `json:"tabs"`
}

// ParseTab converts a raw JSON tab into a Tab.
func ParseTab(raw json.RawMessage) (*types.Tab, error) {
	var wt wireTab
	if err := json.Unmarshal(raw, &wt); err != nil {
		return nil, err
	}
	return wt.toTab(), nil
}

// ParseTabUpdated extracts the tab and change info from a tabUpdated event.
func ParseTabUpdated(msg IncomingMsg) (*types.Tab, ChangeInfo, error) {
	if msg.Type != EventTabUpdated {
		return nil, ChangeInfo{}, fmt.Errorf("not a %s event: %q", EventTabUpdated, msg.Type)
	}
	if len(msg.Tab) == 0 {
		return nil, ChangeInfo{}, fmt.Errorf("%s event without tab", EventTabUpdated)
	}
	tab, err := ParseTab(msg.Tab)
	if err != nil {
		return nil, ChangeInfo{}, fmt.Errorf("parse tab: %w", err)
	}
	var ci ChangeInfo
	if msg.ChangeInfo != nil {
		ci = *msg.ChangeInfo
	}
	return tab, ci, nil
}

// ParseWindows converts a windows.getAll result into Windows.
func ParseWindows(raw json.RawMessage) ([]*types.Window, error) {
	var ws []wireWindow
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("parse windows: %w", err)
	}
	out := make([]*types.Window, 0, len(ws))
	for _, w := range ws {
		win := &types.Window{ID: w.ID}
		for _, wt := range w.Tabs {
			win.Tabs = append(win.Tabs, wt.toTab())
		}
		out = append(out, win)
	}
	return out, nil
}
