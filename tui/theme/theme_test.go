package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"kanagawa", "kanagawa"},
		{"Kanagawa Dragon", "kanagawa"},
		{"ansi", "terminal"},
		{" TERMINAL ", "terminal"},
		{"solarized", "kanagawa"},
		{"", "kanagawa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewThemeWithName(tt.name).Name)
		})
	}
}

func TestTerminalPaletteUsesANSIIndexes(t *testing.T) {
	th := NewThemeWithName("terminal")
	assert.Equal(t, lipgloss.Color("1"), th.Colors.Red)
	assert.Equal(t, lipgloss.Color("208"), th.Colors.Orange)
	assert.Equal(t, lipgloss.Color("0"), th.Colors.VerySubtleBackground)
}

func TestKanagawaPaletteAdapts(t *testing.T) {
	th := NewThemeWithName("kanagawa")
	assert.Equal(t, lipgloss.AdaptiveColor{Light: "#C34043", Dark: "#FF5D62"}, th.Colors.Red)
}

func TestThemeFromEnvironment(t *testing.T) {
	t.Setenv("ORION_THEME", "terminal")
	assert.Equal(t, "terminal", getThemeName())
}

func TestIconSets(t *testing.T) {
	t.Cleanup(func() { setIcons(useASCIIIcons()) })

	setIcons(true)
	assert.Equal(t, ">", IconCurrent)
	assert.Equal(t, "#", IconFrame)

	setIcons(false)
	assert.Equal(t, nerdIconCurrent, IconCurrent)
}

func TestASCIIIconsFromEnvironment(t *testing.T) {
	t.Setenv("ORION_ICONS", "ascii")
	assert.True(t, useASCIIIcons())
	t.Setenv("ORION_ICONS", "nerd")
	assert.False(t, useASCIIIcons())
}
