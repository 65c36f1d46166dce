package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lotas/tabgrouper/internal/settings"
)

// swatches maps palette colors to terminal colors.
var swatches = map[string]lipgloss.Color{
	"grey":   lipgloss.Color("245"),
	"blue":   lipgloss.Color("33"),
	"red":    lipgloss.Color("196"),
	"yellow": lipgloss.Color("220"),
	"green":  lipgloss.Color("34"),
	"pink":   lipgloss.Color("205"),
	"purple": lipgloss.Color("129"),
	"cyan":   lipgloss.Color("51"),
	"orange": lipgloss.Color("208"),
}

// ColorPicker cycles through "no color" followed by the palette.
type ColorPicker struct {
	Cursor int // 0 is no color
}

func NewColorPicker(color string) ColorPicker {
	for i, c := range settings.Colors {
		if c == color {
			return ColorPicker{Cursor: i + 1}
		}
	}
	return ColorPicker{}
}

func (p *ColorPicker) Next() {
	p.Cursor = (p.Cursor + 1) % (len(settings.Colors) + 1)
}

func (p *ColorPicker) Prev() {
	p.Cursor = (p.Cursor + len(settings.Colors)) % (len(settings.Colors) + 1)
}

func (p ColorPicker) Selected() string {
	if p.Cursor == 0 {
		return ""
	}
	return settings.Colors[p.Cursor-1]
}

func (p ColorPicker) View(focused bool) string {
	selectedStyle := lipgloss.NewStyle().Bold(true).Underline(true)
	normalStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	parts := make([]string, 0, len(settings.Colors)+1)
	for i := 0; i <= len(settings.Colors); i++ {
		label := "none"
		style := normalStyle
		if i > 0 {
			label = settings.Colors[i-1]
			style = style.Foreground(swatches[label])
		}
		if i == p.Cursor {
			style = selectedStyle.Foreground(style.GetForeground())
			if focused {
				label = "[" + label + "]"
			}
		}
		parts = append(parts, style.Render(label))
	}
	return strings.Join(parts, " ")
}

// colorDot renders a small swatch for list rows.
func colorDot(color string) string {
	if c, ok := swatches[color]; ok {
		return lipgloss.NewStyle().Foreground(c).Render("●")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render("○")
}
