package tui

import "github.com/charmbracelet/lipgloss"

func renderConfirm(question string) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("196")).
		Padding(1, 2)

	return boxStyle.Render(titleStyle.Render(question) + "\n\n" + helpStyle.Render("y confirm · n/esc cancel"))
}
