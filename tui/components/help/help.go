// Package help renders the one-line and full-screen key help of orion TUIs.
package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"
	"github.com/grovetools/orion/tui/keymap"
	"github.com/grovetools/orion/tui/theme"
)

// Model is an embeddable help component.
type Model struct {
	Keys    keymap.SectionedKeyMap
	ShowAll bool
	Width   int
	Height  int
	Title   string
	Theme   *theme.Theme

	viewport viewport.Model
}

// New creates a help model for keys.
func New(keys keymap.SectionedKeyMap) Model {
	vp := viewport.New(0, 0)
	vp.MouseWheelEnabled = false
	return Model{
		Keys:     keys,
		Theme:    theme.DefaultTheme,
		viewport: vp,
	}
}

// Toggle switches between the short and full view.
func (m *Model) Toggle() {
	m.ShowAll = !m.ShowAll
	if m.ShowAll {
		m.setViewportContent()
	}
}

// Update handles resizing, and scrolling or closing the full view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		if m.ShowAll {
			m.setViewportContent()
		}
	case tea.KeyMsg:
		if !m.ShowAll {
			return m, nil
		}
		if msg.Type == tea.KeyEsc || m.isCloseKey(msg) {
			m.Toggle()
			return m, nil
		}
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) isCloseKey(msg tea.KeyMsg) bool {
	for _, b := range m.Keys.ShortHelp() {
		h := b.Help().Desc
		if (h == "help" || h == "quit") && key.Matches(msg, b) {
			return true
		}
	}
	return false
}

// View renders the short line, or the full view centered on the screen.
func (m Model) View() string {
	if m.ShowAll {
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, m.viewport.View())
	}
	return m.viewShort()
}

func (m Model) viewShort() string {
	t := m.theme()
	var pairs []string
	for _, b := range m.Keys.ShortHelp() {
		if !b.Enabled() || b.Help().Key == "" {
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%s %s", t.Highlight.Render(b.Help().Key), t.Muted.Render(b.Help().Desc)))
	}
	return strings.Join(pairs, t.Muted.Render(" • "))
}

func (m *Model) setViewportContent() {
	const margin = 4
	content := m.renderFull()
	m.viewport.SetContent(content)
	m.viewport.Width = lipgloss.Width(content)
	m.viewport.Height = max(m.Height-margin, 1)
}

// renderFull lays the sections side by side, one table each.
func (m Model) renderFull() string {
	t := m.theme()
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Blue)

	var blocks []string
	for _, section := range m.Keys.Sections() {
		bindings := section.Enabled()
		if len(bindings) == 0 {
			continue
		}
		tbl := ltable.New().Border(lipgloss.HiddenBorder())
		for _, b := range bindings {
			tbl = tbl.Row(keyStyle.Render(b.Help().Key), b.Help().Desc)
		}
		header := t.Header.Render(section.Name)
		blocks = append(blocks, lipgloss.JoinVertical(lipgloss.Left, header, tbl.String()))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, interleave(blocks, "    ")...)
	if m.Width > 0 && lipgloss.Width(body) > m.Width-4 {
		body = lipgloss.JoinVertical(lipgloss.Left, blocks...)
	}

	title := m.Title
	if title == "" {
		title = "Help"
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(t.Colors.Orange).MarginBottom(1)
	return lipgloss.JoinVertical(lipgloss.Center, titleStyle.Render(title), body)
}

func (m Model) theme() *theme.Theme {
	if m.Theme == nil {
		return theme.DefaultTheme
	}
	return m.Theme
}

func interleave(blocks []string, sep string) []string {
	out := make([]string, 0, 2*len(blocks))
	for i, b := range blocks {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, b)
	}
	return out
}
