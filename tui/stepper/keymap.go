package stepper

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/tui/keymap"
)

// KeyMap holds the stepper's bindings.
type KeyMap struct {
	keymap.Base
	StepInto key.Binding
	StepOver key.Binding
	Reload   key.Binding

	// Unknown lists configured override names no binding answers to.
	Unknown []string
}

// NewKeyMap returns the stepper bindings with cfg's overrides applied.
func NewKeyMap(cfg *config.Config) KeyMap {
	km := KeyMap{
		Base: keymap.Load(cfg, Name),
		StepInto: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "step"),
		),
		StepOver: key.NewBinding(
			key.WithKeys("n", " "),
			key.WithHelp("n", "next"),
		),
		Reload: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "reload source"),
		),
	}
	km.Unknown = keymap.ApplyOverrides(&km, keymap.LoadConfig(cfg).Keybindings[Name])
	return km
}

// ShortHelp implements keymap.SectionedKeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.StepInto, k.StepOver, k.NextTab, k.Help, k.Quit}
}

// Sections implements keymap.SectionedKeyMap.
func (k KeyMap) Sections() []keymap.Section {
	own := []keymap.Section{
		keymap.Group(keymap.SectionStepping, k.StepInto, k.StepOver),
		keymap.Group(keymap.SectionPanes, k.Reload),
	}
	return keymap.Merge(append(own, k.Base.Sections()...)...)
}
