// Package stateview renders program state for terminals.
package stateview

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/tui/components/table"
	"github.com/grovetools/orion/tui/theme"
)

// none fills table cells for values the debugger did not report.
const none = "-"

// ExecState renders an execution state with its color.
func ExecState(s models.ExecutionState) string {
	t := theme.DefaultTheme
	switch s {
	case models.StateStopped:
		return t.Warning.Render(theme.IconCurrent + " " + string(s))
	case models.StateRunning:
		return t.Info.Render(theme.IconRunning + " " + string(s))
	case models.StateExitedNormally:
		return t.Success.Render(theme.IconSuccess + " " + string(s))
	case models.StateExited:
		return t.Error.Render(theme.IconError + " " + string(s))
	default:
		return t.Muted.Render(string(s))
	}
}

// Summary renders the execution state and current line.
func Summary(st models.ProgramState) string {
	line := none
	if st.CurrentLine > 0 {
		line = fmt.Sprint(st.CurrentLine)
	}
	return table.StatusTable([][2]string{
		{"State", ExecState(st.ExecutionState)},
		{"Line", line},
		{"Frames", fmt.Sprint(len(st.Frames))},
	})
}

// Frames renders each frame header followed by its variables.
func Frames(frames []models.Frame) string {
	t := theme.DefaultTheme
	if len(frames) == 0 {
		return t.Muted.Render("no frames")
	}

	var b strings.Builder
	for i, f := range frames {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FrameHeader(f.FrameInfo))
		b.WriteString("\n")
		if len(f.Variables) == 0 {
			b.WriteString(t.Muted.Render("  no locals"))
			b.WriteString("\n")
			continue
		}
		b.WriteString(Variables(f.Variables))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FrameHeader renders "#level func at file:line".
func FrameHeader(fi models.FrameInfo) string {
	t := theme.DefaultTheme
	where := fi.File
	if fi.Line > 0 {
		where = fmt.Sprintf("%s:%d", fi.File, fi.Line)
	}
	return t.FrameHeader.Render(fmt.Sprintf("%s%d %s", theme.IconFrame, fi.Level, fi.Function)) +
		" " + t.Muted.Render("at "+where)
}

// Variables renders a frame's locals as a table.
func Variables(vars []models.Variable) string {
	t := theme.DefaultTheme
	rows := make([][]string, 0, len(vars))
	for _, v := range vars {
		rows = append(rows, []string{
			t.VariableName.Render(v.Name),
			t.VariableType.Render(orNone(v.Type)),
			v.Value,
			orNone(v.Address),
			orNone(v.Size),
		})
	}
	return table.Render([]string{"NAME", "TYPE", "VALUE", "ADDRESS", "SIZE"}, rows)
}

// Variable renders the answer of an ad hoc inspection.
func Variable(info models.VariableInfo) string {
	return table.StatusTable([][2]string{
		{"Name", info.Name},
		{"Frame", fmt.Sprint(info.Frame)},
		{"Address", orNone(info.Address)},
		{"Size", orNone(info.Size)},
	})
}

// Output renders captured program output.
func Output(lines []string) string {
	if len(lines) == 0 {
		return theme.DefaultTheme.Muted.Render("no output")
	}
	return strings.Join(lines, "\n")
}

// Heap pretty-prints the heap snapshot.
func Heap(h models.HeapSnapshot) string {
	if h.IsEmpty() {
		return theme.DefaultTheme.Muted.Render("no heap snapshot")
	}
	var out bytes.Buffer
	if err := json.Indent(&out, h, "", "  "); err != nil {
		return string(h)
	}
	return out.String()
}

// Records renders MI records one JSON object per line.
func Records(recs []mi.Record) string {
	t := theme.DefaultTheme
	lines := make([]string, 0, len(recs))
	for _, r := range recs {
		data, err := json.Marshal(r)
		if err != nil {
			data = []byte(fmt.Sprintf("%s %s", r.Type, r.Message))
		}
		text := string(data)
		if r.Failed() {
			text = t.Error.Render(text)
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}

// State renders the full program state.
func State(st models.ProgramState) string {
	t := theme.DefaultTheme
	sections := []string{
		Summary(st),
		t.Header.Render("Stack"),
		Frames(st.Frames),
		t.Header.Render("Output"),
		Output(st.Output),
	}
	return strings.Join(sections, "\n")
}

func orNone(s *string) string {
	if s == nil || *s == "" {
		return none
	}
	return *s
}
