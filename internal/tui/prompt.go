package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

type promptKind int

const (
	promptExclude promptKind = iota
	promptImport
	promptExport
)

// Prompt asks for a single line of text.
type Prompt struct {
	Kind  promptKind
	Label string
	Input textinput.Model
}

func NewPrompt(kind promptKind, label, value string) Prompt {
	ti := textinput.New()
	ti.CharLimit = 512
	ti.Width = 50
	ti.SetValue(value)
	ti.Focus()
	return Prompt{Kind: kind, Label: label, Input: ti}
}

func (p Prompt) Value() string {
	return p.Input.Value()
}

func (p Prompt) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	s := titleStyle.Render(p.Label) + "\n\n"
	s += p.Input.View() + "\n\n"
	s += helpStyle.Render("enter confirm · esc cancel")
	return boxStyle.Render(s)
}
