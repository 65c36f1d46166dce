package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"

	"github.com/lotas/tabgrouper/internal/analyzer"
	"github.com/lotas/tabgrouper/internal/match"
	"github.com/lotas/tabgrouper/internal/settings"
	"github.com/lotas/tabgrouper/internal/storage"
)

// RulesMarkdown formats settings and the rule list as a markdown document.
// Priority is the order rules are tried in (longest pattern first).
func RulesMarkdown(s settings.Settings) string {
	var b strings.Builder

	b.WriteString("# Tab grouping\n\n")
	fmt.Fprintf(&b, "- Auto-group: %s\n", onOff(s.AutoGroup))
	fmt.Fprintf(&b, "- Collapse new groups: %s\n", onOff(s.AutoCollapse))
	fmt.Fprintf(&b, "- Remove duplicates: %s\n", onOff(s.RemoveDuplicates))

	fmt.Fprintf(&b, "\n## Rules (%d)\n\n", len(s.CustomRules))
	if len(s.CustomRules) == 0 {
		b.WriteString("_No rules. Tabs are grouped by domain._\n")
	} else {
		priority := make(map[settings.Rule]int)
		for i, r := range match.SortRules(s.CustomRules) {
			if _, ok := priority[r]; !ok {
				priority[r] = i + 1
			}
		}
		b.WriteString("| # | Pattern | Group | Color | Priority |\n")
		b.WriteString("|---|---------|-------|-------|----------|\n")
		for i, r := range s.CustomRules {
			color := r.Color
			if color == "" {
				color = "auto"
			}
			fmt.Fprintf(&b, "| %d | `%s` | %s | %s | %d |\n", i, escapeCell(r.Pattern), escapeCell(r.Name), color, priority[r])
		}
	}

	fmt.Fprintf(&b, "\n## Excluded domains (%d)\n\n", len(s.ExcludedDomains))
	for _, d := range s.ExcludedDomains {
		fmt.Fprintf(&b, "- %s\n", d)
	}
	return b.String()
}

// PlanMarkdown formats an organize-all simulation.
func PlanMarkdown(p analyzer.Plan) string {
	var b strings.Builder
	stats := analyzer.ComputeStats(p)

	fmt.Fprintf(&b, "# Grouping plan: %s\n\n", p.Profile)
	fmt.Fprintf(&b, "%d tabs, %d would change, %d new groups.\n", stats.Tabs, stats.Changes(), stats.NewGroups)

	if len(p.NewGroups) > 0 {
		b.WriteString("\n## New groups\n\n")
		for _, g := range p.NewGroups {
			color := g.Color
			if color == "" {
				color = "auto"
			}
			fmt.Fprintf(&b, "- **%s** (window %d, %s)\n", g.Title, g.WindowID, color)
		}
	}

	for _, step := range []analyzer.Step{analyzer.StepCreate, analyzer.StepJoin, analyzer.StepUngroup, analyzer.StepClose, analyzer.StepKeep} {
		var lines []string
		for _, tp := range p.Tabs {
			if tp.Step != step {
				continue
			}
			line := "- " + tabLink(tp.Tab.Title, tp.Tab.URL)
			switch step {
			case analyzer.StepCreate, analyzer.StepJoin, analyzer.StepKeep:
				line += " → " + tp.Group
			case analyzer.StepUngroup:
				line += " (" + tp.Reason + ")"
			case analyzer.StepClose:
				line += fmt.Sprintf(" (duplicate of tab %d)", tp.ClosedBy)
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s (%d)\n\n", stepHeading(step), len(lines))
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// HistoryMarkdown formats recent grouping actions, newest first.
func HistoryMarkdown(records []storage.ActionRecord, now time.Time) string {
	var b strings.Builder
	b.WriteString("# Recent grouping activity\n\n")
	if len(records) == 0 {
		b.WriteString("_Nothing yet._\n")
		return b.String()
	}
	for _, r := range records {
		target := ""
		if r.Title != "" {
			target = " → " + r.Title
		}
		fmt.Fprintf(&b, "- %s **%s**%s %s\n",
			humanize.RelTime(r.At, now, "ago", "from now"), r.Outcome, target, tabLink("", r.URL))
	}
	return b.String()
}

// Render renders markdown for the terminal.
func Render(md string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}

func stepHeading(s analyzer.Step) string {
	switch s {
	case analyzer.StepCreate:
		return "Create group"
	case analyzer.StepJoin:
		return "Join group"
	case analyzer.StepUngroup:
		return "Ungroup"
	case analyzer.StepClose:
		return "Close duplicate"
	default:
		return "Already grouped"
	}
}

func tabLink(title, url string) string {
	if title == "" {
		title = url
	}
	return fmt.Sprintf("[%s](%s)", strings.ReplaceAll(title, "]", "\\]"), url)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
