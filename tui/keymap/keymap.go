// Package keymap holds the key bindings shared by orion's terminal UIs and
// applies the overrides configured under the "tui" section.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/grovetools/orion/config"
)

// Overrides maps snake_case binding names to replacement keys.
type Overrides map[string][]string

// Config is the "tui" configuration section.
type Config struct {
	Theme       string               `yaml:"theme" jsonschema:"enum=kanagawa,enum=terminal,description=Color palette"`
	Icons       string               `yaml:"icons" jsonschema:"enum=nerd,enum=ascii,description=Icon set"`
	Preset      string               `yaml:"preset"`
	Keybindings map[string]Overrides `yaml:"keybindings"`
}

// globalSection names the overrides applied to every TUI.
const globalSection = "global"

// LoadConfig reads the "tui" section of cfg. A missing or malformed section
// yields the zero Config.
func LoadConfig(cfg *config.Config) Config {
	var tc Config
	if cfg != nil {
		_ = cfg.UnmarshalExtension("tui", &tc)
	}
	return tc
}

// Base contains the bindings every orion TUI understands.
type Base struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Top      key.Binding
	Bottom   key.Binding

	NextTab key.Binding
	PrevTab key.Binding
	Refresh key.Binding

	Help key.Binding
	Quit key.Binding
}

// NewBase returns the vim-style bindings.
func NewBase() Base {
	return DefaultVim()
}

// DefaultVim returns the default vim-style keymap.
func DefaultVim() Base {
	return Base{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("ctrl+u", "pgup"),
			key.WithHelp("C-u", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("ctrl+d", "pgdown"),
			key.WithHelp("C-d", "page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next pane"),
		),
		PrevTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-tab", "previous pane"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// DefaultArrows returns bindings without letter navigation.
func DefaultArrows() Base {
	b := DefaultVim()
	b.Up = key.NewBinding(key.WithKeys("up"), key.WithHelp("↑", "up"))
	b.Down = key.NewBinding(key.WithKeys("down"), key.WithHelp("↓", "down"))
	b.Top = key.NewBinding(key.WithKeys("home"), key.WithHelp("home", "top"))
	b.Bottom = key.NewBinding(key.WithKeys("end"), key.WithHelp("end", "bottom"))
	return b
}

// Load builds the Base keymap for the TUI called name: the configured
// preset, then global overrides, then the TUI's own overrides.
func Load(cfg *config.Config, name string) Base {
	tc := LoadConfig(cfg)

	var base Base
	switch tc.Preset {
	case "arrows":
		base = DefaultArrows()
	default:
		base = DefaultVim()
	}

	ApplyOverrides(&base, tc.Keybindings[globalSection])
	ApplyOverrides(&base, tc.Keybindings[name])
	return base
}

// ShortHelp returns the bindings shown in the one-line help.
func (k Base) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// Sections returns the base bindings grouped for the full help view.
func (k Base) Sections() []Section {
	return []Section{
		Group(SectionNavigation, k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom),
		Group(SectionPanes, k.NextTab, k.PrevTab, k.Refresh),
		Group(SectionSystem, k.Help, k.Quit),
	}
}
