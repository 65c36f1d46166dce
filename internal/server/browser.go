package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lotas/tabgrouper/internal/types"
)

// The methods below expose the extension's tabs/tabGroups/windows APIs as
// blocking calls. Each maps to one command action.

// GetGroup returns the tab group with the given ID.
func (s *Server) GetGroup(ctx context.Context, groupID int) (*types.TabGroup, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: "tabGroups.get", GroupID: groupID})
	if err != nil {
		return nil, err
	}
	var wg wireGroup
	if err := json.Unmarshal(raw, &wg); err != nil {
		return nil, fmt.Errorf("parse group: %w", err)
	}
	return wg.toGroup(), nil
}

// QueryGroups returns the tab groups in a window.
func (s *Server) QueryGroups(ctx context.Context, windowID int) ([]*types.TabGroup, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: "tabGroups.query", WindowID: windowID})
	if err != nil {
		return nil, err
	}
	var wgs []wireGroup
	if err := json.Unmarshal(raw, &wgs); err != nil {
		return nil, fmt.Errorf("parse groups: %w", err)
	}
	groups := make([]*types.TabGroup, 0, len(wgs))
	for _, wg := range wgs {
		groups = append(groups, wg.toGroup())
	}
	return groups, nil
}

// GroupTabs adds tabs to groupID, or to a new group when groupID is
// types.NoGroup. It returns the group's ID.
func (s *Server) GroupTabs(ctx context.Context, tabIDs []int, groupID int) (int, error) {
	msg := OutgoingMsg{Action: "tabs.group", TabIDs: tabIDs}
	if groupID != types.NoGroup {
		msg.GroupID = groupID
	}
	raw, err := s.Call(ctx, msg)
	if err != nil {
		return 0, err
	}
	var id int
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("parse group id: %w", err)
	}
	return id, nil
}

// UpdateGroup sets title, collapsed state and (if non-empty) color.
func (s *Server) UpdateGroup(ctx context.Context, groupID int, upd types.GroupUpdate) error {
	collapsed := upd.Collapsed
	_, err := s.Call(ctx, OutgoingMsg{
		Action:    "tabGroups.update",
		GroupID:   groupID,
		Title:     upd.Title,
		Color:     upd.Color,
		Collapsed: &collapsed,
	})
	return err
}

// UngroupTabs removes tabs from whatever group they are in.
func (s *Server) UngroupTabs(ctx context.Context, tabIDs []int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: "tabs.ungroup", TabIDs: tabIDs})
	return err
}

// QueryTabs returns the tabs in a window.
func (s *Server) QueryTabs(ctx context.Context, windowID int) ([]*types.Tab, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: "tabs.query", WindowID: windowID})
	if err != nil {
		return nil, err
	}
	var wts []wireTab
	if err := json.Unmarshal(raw, &wts); err != nil {
		return nil, fmt.Errorf("parse tabs: %w", err)
	}
	tabs := make([]*types.Tab, 0, len(wts))
	for _, wt := range wts {
		tabs = append(tabs, wt.toTab())
	}
	return tabs, nil
}

// RemoveTabs closes tabs.
func (s *Server) RemoveTabs(ctx context.Context, tabIDs []int) error {
	_, err := s.Call(ctx, OutgoingMsg{Action: "tabs.remove", TabIDs: tabIDs})
	return err
}

// Windows returns every window with its tabs.
func (s *Server) Windows(ctx context.Context) ([]*types.Window, error) {
	raw, err := s.Call(ctx, OutgoingMsg{Action: "windows.getAll"})
	if err != nil {
		return nil, err
	}
	return ParseWindows(raw)
}
