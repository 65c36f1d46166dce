package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabgrouper/internal/settings"
)

const (
	fieldPattern = iota
	fieldName
	fieldColor
	fieldCount
)

// RuleForm edits one rule. Index is -1 when adding.
type RuleForm struct {
	Index   int
	Pattern textinput.Model
	Name    textinput.Model
	Color   ColorPicker
	Focus   int
	Err     string
}

func NewRuleForm(index int, r settings.Rule) RuleForm {
	pattern := textinput.New()
	pattern.Placeholder = "example.com/path"
	pattern.CharLimit = 256
	pattern.Width = 40
	pattern.SetValue(r.Pattern)
	pattern.Focus()

	name := textinput.New()
	name.Placeholder = "Group name"
	name.CharLimit = 64
	name.Width = 40
	name.SetValue(r.Name)

	return RuleForm{
		Index:   index,
		Pattern: pattern,
		Name:    name,
		Color:   NewColorPicker(r.Color),
	}
}

// Rule returns the rule as typed, before normalization.
func (f RuleForm) Rule() settings.Rule {
	return settings.Rule{
		Pattern: f.Pattern.Value(),
		Name:    f.Name.Value(),
		Color:   f.Color.Selected(),
	}
}

func (f *RuleForm) setFocus(i int) {
	f.Focus = (i + fieldCount) % fieldCount
	f.Pattern.Blur()
	f.Name.Blur()
	switch f.Focus {
	case fieldPattern:
		f.Pattern.Focus()
	case fieldName:
		f.Name.Focus()
	}
}

// Update handles keys other than submit and cancel.
func (f RuleForm) Update(msg tea.KeyMsg) (RuleForm, tea.Cmd) {
	switch msg.String() {
	case "tab", "down":
		f.setFocus(f.Focus + 1)
		return f, nil
	case "shift+tab", "up":
		f.setFocus(f.Focus - 1)
		return f, nil
	}

	var cmd tea.Cmd
	switch f.Focus {
	case fieldPattern:
		f.Pattern, cmd = f.Pattern.Update(msg)
	case fieldName:
		f.Name, cmd = f.Name.Update(msg)
	case fieldColor:
		switch msg.String() {
		case "left", "h":
			f.Color.Prev()
		case "right", "l", " ":
			f.Color.Next()
		}
	}
	return f, cmd
}

func (f RuleForm) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	labelStyle := lipgloss.NewStyle().Width(9).Foreground(lipgloss.Color("245"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	title := "Add rule"
	if f.Index >= 0 {
		title = "Edit rule"
	}

	s := titleStyle.Render(title) + "\n\n"
	s += labelStyle.Render("Pattern") + f.Pattern.View() + "\n"
	s += labelStyle.Render("Name") + f.Name.View() + "\n"
	s += labelStyle.Render("Color") + f.Color.View(f.Focus == fieldColor) + "\n"
	if f.Err != "" {
		s += "\n" + errStyle.Render(f.Err) + "\n"
	}
	s += "\n" + helpStyle.Render("tab next field · ←→ color · enter save · esc cancel")
	return boxStyle.Render(s)
}
