package stepper

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/orion/tui/components"
	"github.com/grovetools/orion/tui/components/stateview"
	"github.com/grovetools/orion/tui/theme"
	"github.com/grovetools/orion/tui/utils/scrollbar"
)

// chromeHeight covers the header, divider, pane tabs, status and help lines.
const chromeHeight = 6

func (m *Model) resize() {
	bodyHeight := max(m.height-chromeHeight, 1)
	sourceWidth, detailWidth := m.paneWidths()

	// The detail pane gives up a column to its scrollbar.
	detailWidth = max(detailWidth-1, 1)
	if !m.ready {
		m.sourceView = viewport.New(sourceWidth, bodyHeight)
		m.detailView = viewport.New(detailWidth, bodyHeight)
		m.ready = true
	} else {
		m.sourceView.Width, m.sourceView.Height = sourceWidth, bodyHeight
		m.detailView.Width, m.detailView.Height = detailWidth, bodyHeight
	}
	m.refreshSource()
	m.refreshDetail()
}

// paneWidths splits the screen between source and details; without source
// the details take the full width.
func (m Model) paneWidths() (source, detail int) {
	if len(m.source) == 0 {
		return 0, m.width
	}
	source = m.width / 2
	return source, m.width - source - 1
}

func (m *Model) refreshSource() {
	if !m.ready {
		return
	}
	if w, _ := m.paneWidths(); w != m.sourceView.Width {
		m.resize()
		return
	}

	t := theme.DefaultTheme
	width := len(fmt.Sprint(len(m.source)))
	var b strings.Builder
	for i, line := range m.source {
		n := i + 1
		marker := "  "
		text := line
		if n == m.state.CurrentLine && !m.state.ExecutionState.IsTerminal() {
			marker = theme.IconCurrent + " "
			text = t.CurrentLine.Render(line)
		}
		fmt.Fprintf(&b, "%s%s %s\n", marker, t.LineNumber.Render(fmt.Sprintf("%*d", width, n)), text)
	}
	m.sourceView.SetContent(strings.TrimRight(b.String(), "\n"))

	// Keep the current line in the middle third of the pane.
	if line := m.state.CurrentLine - 1; line >= 0 {
		top := m.sourceView.YOffset
		if line < top || line >= top+m.sourceView.Height {
			m.sourceView.SetYOffset(max(line-m.sourceView.Height/3, 0))
		}
	}
}

func (m *Model) refreshDetail() {
	if !m.ready {
		return
	}
	var content string
	switch m.pane {
	case paneStack:
		content = stateview.Frames(m.state.Frames)
	case paneOutput:
		content = stateview.Output(m.state.Output)
	case paneHeap:
		content = stateview.Heap(m.state.Heap)
	}
	m.detailView.SetContent(content)
	if m.pane == paneOutput {
		m.detailView.GotoBottom()
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.help.ShowAll {
		return m.help.View()
	}
	if !m.ready {
		return "Starting..."
	}

	t := theme.DefaultTheme
	body := lipgloss.JoinVertical(lipgloss.Left, m.tabs(), scrollbar.Overlay(&m.detailView))
	if len(m.source) > 0 {
		divider := lipgloss.NewStyle().
			Foreground(theme.Border).
			Render(strings.TrimRight(strings.Repeat("│\n", m.sourceView.Height+1), "\n"))
		source := lipgloss.JoinVertical(lipgloss.Left, t.Header.Render(m.sourceTitle()), m.sourceView.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, source, divider, body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		components.RenderDivider(m.width),
		body,
		m.statusLine(),
		m.help.View(),
	)
}

func (m Model) header() string {
	t := theme.DefaultTheme
	session := "no session"
	if m.token != "" {
		session = "session " + m.token
	}
	line := ""
	if m.state.CurrentLine > 0 {
		line = t.Muted.Render(fmt.Sprintf(" line %d", m.state.CurrentLine))
	}
	left := fmt.Sprintf("%s %s%s", t.Title.Render("orion"), stateview.ExecState(m.state.ExecutionState), line)
	return components.RenderStatusBar(left, t.Muted.Render(session), m.width)
}

func (m Model) sourceTitle() string {
	return filepath.Base(m.sourcePath)
}

func (m Model) tabs() string {
	t := theme.DefaultTheme
	labels := make([]string, 0, paneCount)
	for p := pane(0); p < paneCount; p++ {
		if p == m.pane {
			labels = append(labels, t.Selected.Render(" "+p.String()+" "))
			continue
		}
		labels = append(labels, t.Muted.Render(" "+p.String()+" "))
	}
	return strings.Join(labels, " ")
}

func (m Model) statusLine() string {
	t := theme.DefaultTheme
	switch {
	case m.err != nil:
		return t.Error.Render(theme.IconError + " " + m.err.Error())
	case m.busy:
		return t.Info.Render(theme.IconRunning + " " + m.status)
	default:
		return t.Muted.Render(m.status)
	}
}
