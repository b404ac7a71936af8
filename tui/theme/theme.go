// Package theme holds the colors, styles and icons shared by the orion CLI
// output, the log formatter and the stepper TUI.
package theme

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/orion/config"
)

const defaultThemeName = "kanagawa"

// Kanagawa dragon (dark) and wave (light) hex values.
var kanagawa = struct{ dark, light [13]string }{
	dark: [13]string{
		"#98BB6C", "#FF9E3B", "#FF5D62", "#FFA066", "#7E9CD8", "#7FB4CA", "#957FB8",
		"#DCD7BA", "#727169", "#363646", "#223249", "#1F1F28", "#181820",
	},
	light: [13]string{
		"#4E7C5A", "#A68A64", "#C34043", "#CC6B4E", "#5B8BBE", "#4F7CAC", "#674D7A",
		"#2B2F42", "#6C7086", "#B5BDC5", "#E2E6F3", "#F7F7FB", "#EFF1F8",
	},
}

// ANSI palette indexes, in the same order as the kanagawa values.
var terminal = [13]string{"2", "3", "1", "208", "6", "4", "5", "7", "8", "8", "8", "0", "0"}

// Colors is the palette a theme is built from.
type Colors struct {
	Green                lipgloss.TerminalColor
	Yellow               lipgloss.TerminalColor
	Red                  lipgloss.TerminalColor
	Orange               lipgloss.TerminalColor
	Cyan                 lipgloss.TerminalColor
	Blue                 lipgloss.TerminalColor
	Violet               lipgloss.TerminalColor
	LightText            lipgloss.TerminalColor
	MutedText            lipgloss.TerminalColor
	Border               lipgloss.TerminalColor
	SelectedBackground   lipgloss.TerminalColor
	SubtleBackground     lipgloss.TerminalColor
	VerySubtleBackground lipgloss.TerminalColor
}

func colorsFrom(pick func(i int) lipgloss.TerminalColor) Colors {
	return Colors{
		Green: pick(0), Yellow: pick(1), Red: pick(2), Orange: pick(3),
		Cyan: pick(4), Blue: pick(5), Violet: pick(6),
		LightText: pick(7), MutedText: pick(8), Border: pick(9),
		SelectedBackground: pick(10), SubtleBackground: pick(11), VerySubtleBackground: pick(12),
	}
}

var palettes = map[string]func() Colors{
	"kanagawa": func() Colors {
		return colorsFrom(func(i int) lipgloss.TerminalColor {
			return lipgloss.AdaptiveColor{Light: kanagawa.light[i], Dark: kanagawa.dark[i]}
		})
	},
	"terminal": func() Colors {
		return colorsFrom(func(i int) lipgloss.TerminalColor { return lipgloss.Color(terminal[i]) })
	},
}

var aliases = map[string]string{
	"kanagawa-dark":   "kanagawa",
	"kanagawa-dragon": "kanagawa",
	"kanagawa-wave":   "kanagawa",
	"ansi":            "terminal",
}

// Border, SubtleBackground and VerySubtleBackground are the active palette's
// chrome colors, for components that build their own styles.
var (
	Border               lipgloss.TerminalColor
	SubtleBackground     lipgloss.TerminalColor
	VerySubtleBackground lipgloss.TerminalColor
)

// Theme holds the pre-configured styles.
type Theme struct {
	Name   string
	Colors Colors

	Header lipgloss.Style
	Title  lipgloss.Style

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style

	Bold        lipgloss.Style
	Muted       lipgloss.Style
	Selected    lipgloss.Style
	TableHeader lipgloss.Style
	Code        lipgloss.Style
	Highlight   lipgloss.Style
	Accent      lipgloss.Style

	// Debugger views
	CurrentLine  lipgloss.Style // source line the program is stopped on
	LineNumber   lipgloss.Style
	FrameHeader  lipgloss.Style
	VariableName lipgloss.Style
	VariableType lipgloss.Style
}

// DefaultTheme is the theme selected by ORION_THEME or the tui.theme config key.
var DefaultTheme = initDefaultTheme()

// NewThemeWithName builds a theme from a named palette. Unknown names fall
// back to kanagawa.
func NewThemeWithName(name string) *Theme {
	key := normalizeThemeName(name)
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	build, ok := palettes[key]
	if !ok {
		key, build = defaultThemeName, palettes[defaultThemeName]
	}
	return newTheme(key, build())
}

func initDefaultTheme() *Theme {
	t := NewThemeWithName(getThemeName())
	Border = t.Colors.Border
	SubtleBackground = t.Colors.SubtleBackground
	VerySubtleBackground = t.Colors.VerySubtleBackground
	return t
}

func newTheme(name string, colors Colors) *Theme {
	return &Theme{
		Name:   name,
		Colors: colors,

		Header: lipgloss.NewStyle().Bold(true).Foreground(colors.Blue),
		Title:  lipgloss.NewStyle().Bold(true).Foreground(colors.Violet),

		Success: lipgloss.NewStyle().Foreground(colors.Green).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(colors.Red).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(colors.Yellow).Bold(true),
		Info:    lipgloss.NewStyle().Foreground(colors.Cyan).Bold(true),

		Bold:  lipgloss.NewStyle().Bold(true),
		Muted: lipgloss.NewStyle().Faint(true),
		Selected: lipgloss.NewStyle().
			Background(colors.SelectedBackground).
			Foreground(colors.LightText),
		TableHeader: lipgloss.NewStyle().
			Bold(true).
			Foreground(colors.Blue),
		Code: lipgloss.NewStyle().
			Foreground(colors.LightText).
			MarginLeft(2),
		Highlight: lipgloss.NewStyle().Foreground(colors.Orange).Bold(true),
		Accent:    lipgloss.NewStyle().Foreground(colors.Violet).Bold(true),

		CurrentLine: lipgloss.NewStyle().
			Background(colors.SelectedBackground).
			Foreground(colors.Yellow).
			Bold(true),
		LineNumber:   lipgloss.NewStyle().Foreground(colors.MutedText),
		FrameHeader:  lipgloss.NewStyle().Foreground(colors.Blue).Bold(true),
		VariableName: lipgloss.NewStyle().Foreground(colors.Cyan),
		VariableType: lipgloss.NewStyle().Foreground(colors.MutedText).Italic(true),
	}
}

func normalizeThemeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.ReplaceAll(normalized, " ", "-")
	return strings.ReplaceAll(normalized, "_", "-")
}

// getThemeName reads ORION_THEME, then tui.theme from the config file.
func getThemeName() string {
	if name := normalizeThemeName(os.Getenv("ORION_THEME")); name != "" {
		return name
	}

	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return defaultThemeName
	}
	var tuiCfg struct {
		Theme string `yaml:"theme"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err == nil && tuiCfg.Theme != "" {
		return tuiCfg.Theme
	}
	return defaultThemeName
}
