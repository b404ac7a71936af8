// Package components holds small rendering helpers shared by orion TUIs.
package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/orion/tui/theme"
)

// RenderStatusBar lays left and right out across width on a subtle
// background. When both do not fit only left is shown.
func RenderStatusBar(left, right string, width int) string {
	style := lipgloss.NewStyle().Background(theme.SubtleBackground)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap <= 0 {
		return style.MaxWidth(width).Render(left)
	}
	return style.Render(left + strings.Repeat(" ", gap) + right)
}

// RenderDivider renders a horizontal rule.
func RenderDivider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.Border).
		Render(strings.Repeat("─", max(width, 0)))
}
