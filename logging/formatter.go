package logging

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/orion/tui/theme"
	"github.com/sirupsen/logrus"
)

// sessionField is printed right after the message so interleaved session
// logs stay easy to scan.
const sessionField = "session"

// TextFormatter renders daemon and CLI log lines as
// "time [LEVEL] [component] [caller] message session=N key=value...".
type TextFormatter struct {
	Config FormatConfig
}

// Format renders a single log entry.
func (f *TextFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b strings.Builder

	if !f.Config.DisableTimestamp {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteString(" ")
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}
	b.WriteString(levelStyle(entry.Level).Render("[" + strings.ToUpper(level) + "]"))

	if component, ok := entry.Data["component"]; ok && !f.Config.DisableComponent {
		b.WriteString(" [")
		b.WriteString(theme.DefaultTheme.Accent.Render(fmt.Sprint(component)))
		b.WriteString("]")
	}

	if entry.HasCaller() {
		fileName := filepath.Base(entry.Caller.File)
		funcName := filepath.Base(entry.Caller.Function)
		fmt.Fprintf(&b, " [%s:%d %s]", fileName, entry.Caller.Line, funcName)
	}

	b.WriteString(" ")
	b.WriteString(entry.Message)

	if session, ok := entry.Data[sessionField]; ok {
		fmt.Fprintf(&b, " %s=%v", sessionField, session)
	}

	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		if key != "component" && key != sessionField {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, entry.Data[key])
	}

	b.WriteString("\n")
	return []byte(b.String()), nil
}

func levelStyle(level logrus.Level) lipgloss.Style {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel:
		return theme.DefaultTheme.Error
	case logrus.WarnLevel:
		return theme.DefaultTheme.Warning
	case logrus.DebugLevel, logrus.TraceLevel:
		return theme.DefaultTheme.Muted
	default:
		return theme.DefaultTheme.Info
	}
}
