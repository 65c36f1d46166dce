package export

import (
	"encoding/json"
	"time"

	"github.com/lotas/tabgrouper/internal/analyzer"
)

type jsonPlan struct {
	Profile   string         `json:"profile"`
	PlannedAt time.Time      `json:"planned_at"`
	Tabs      []jsonTabPlan  `json:"tabs"`
	NewGroups []jsonNewGroup `json:"new_groups"`
}

type jsonTabPlan struct {
	TabID    int    `json:"tab_id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Step     string `json:"step"`
	Group    string `json:"group,omitempty"`
	Color    string `json:"color,omitempty"`
	Reason   string `json:"reason,omitempty"`
	ClosedBy int    `json:"closed_by,omitempty"`
}

type jsonNewGroup struct {
	WindowID  int    `json:"window_id"`
	Title     string `json:"title"`
	Color     string `json:"color,omitempty"`
	Collapsed bool   `json:"collapsed"`
}

// PlanJSON formats an organize-all simulation as a JSON document.
func PlanJSON(p analyzer.Plan) (string, error) {
	out := jsonPlan{
		Profile:   p.Profile,
		PlannedAt: time.Now(),
		Tabs:      make([]jsonTabPlan, 0, len(p.Tabs)),
		NewGroups: make([]jsonNewGroup, 0, len(p.NewGroups)),
	}
	for _, tp := range p.Tabs {
		out.Tabs = append(out.Tabs, jsonTabPlan{
			TabID:    tp.Tab.ID,
			WindowID: tp.Tab.WindowID,
			URL:      tp.Tab.URL,
			Title:    tp.Tab.Title,
			Step:     string(tp.Step),
			Group:    tp.Group,
			Color:    tp.Color,
			Reason:   tp.Reason,
			ClosedBy: tp.ClosedBy,
		})
	}
	for _, g := range p.NewGroups {
		out.NewGroups = append(out.NewGroups, jsonNewGroup(g))
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
