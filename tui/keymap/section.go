package keymap

import "github.com/charmbracelet/bubbles/key"

// Help view section titles.
const (
	SectionStepping   = "Stepping"
	SectionNavigation = "Navigation"
	SectionPanes      = "Panes"
	SectionSystem     = "System"
)

// Section is one titled column of the full help view. Bindings keep their
// declaration order. Disabled bindings stay in the slice, since an override
// may re-enable them, and are dropped at render time by Enabled.
type Section struct {
	Name     string
	Bindings []key.Binding
}

// SectionedKeyMap is what the help component renders: ShortHelp feeds the
// one-line footer and Sections the full overlay.
type SectionedKeyMap interface {
	ShortHelp() []key.Binding
	Sections() []Section
}

// Group returns a section titled name.
func Group(name string, bindings ...key.Binding) Section {
	return Section{Name: name, Bindings: bindings}
}

// Enabled returns the bindings that can still be pressed. A section whose
// bindings were all disabled by overrides yields none and is not rendered.
func (s Section) Enabled() []key.Binding {
	out := make([]key.Binding, 0, len(s.Bindings))
	for _, b := range s.Bindings {
		if b.Enabled() {
			out = append(out, b)
		}
	}
	return out
}

// Merge folds sections sharing a title into one, in first-seen order. A TUI
// layers its own groups over Base.Sections with it, so a binding added to
// Panes lands next to the tab keys instead of in a second Panes column.
func Merge(sections ...Section) []Section {
	var out []Section
	index := make(map[string]int, len(sections))
	for _, s := range sections {
		if i, ok := index[s.Name]; ok {
			out[i].Bindings = append(out[i].Bindings, s.Bindings...)
			continue
		}
		index[s.Name] = len(out)
		out = append(out, Section{Name: s.Name, Bindings: append([]key.Binding(nil), s.Bindings...)})
	}
	return out
}
