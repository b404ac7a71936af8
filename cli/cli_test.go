package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/orion/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"short line kept", "step one line", 40, "step one line"},
		{"wrapped on words", "step into the current call", 10, "step into\nthe\ncurrent\ncall"},
		{"line breaks kept", "a\nb", 10, "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, wrapText(tt.text, tt.width))
		})
	}
}

func TestSplitExamples(t *testing.T) {
	desc, examples := splitExamples("Loads a program.\n\nExamples:\n  orion load main.cpp")
	assert.Equal(t, "Loads a program.", desc)
	assert.Equal(t, "orion load main.cpp", examples)

	desc, examples = splitExamples("No examples here")
	assert.Equal(t, "No examples here", desc)
	assert.Empty(t, examples)
}

func TestRenderHelp(t *testing.T) {
	root := NewStandardCommand("orion", "Step through C++ programs")
	step := &cobra.Command{
		Use:     "step",
		Short:   "Execute one source line",
		Example: "orion step -s 1",
		Run:     func(*cobra.Command, []string) {},
	}
	step.Flags().StringP("session", "s", "", "Session token")
	root.AddCommand(step)

	var buf bytes.Buffer
	renderHelp(&buf, root)
	out := buf.String()
	assert.Contains(t, out, "ORION")
	assert.Contains(t, out, "COMMANDS")
	assert.Contains(t, out, "step")

	buf.Reset()
	renderHelp(&buf, step)
	out = buf.String()
	assert.Contains(t, out, "FLAGS")
	assert.Contains(t, out, "--session")
	assert.Contains(t, out, "EXAMPLES")
}

func TestLoadConfigFromFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orion.yml")
	require.NoError(t, os.WriteFile(path, []byte("gdb:\n  path: /opt/gdb/bin/gdb\n"), 0644))

	cmd := NewStandardCommand("orion", "test")
	require.NoError(t, cmd.PersistentFlags().Set("config", path))

	cfg, err := LoadConfig(cmd)
	require.NoError(t, err)
	assert.Equal(t, "/opt/gdb/bin/gdb", cfg.GDB.Path)
	assert.Equal(t, "g++", cfg.Compiler.Path)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cmd := NewStandardCommand("orion", "test")
	require.NoError(t, cmd.PersistentFlags().Set("config", filepath.Join(t.TempDir(), "nope.yml")))

	_, err := LoadConfig(cmd)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"session not found", errors.SessionNotFound("4"), "orion session list"},
		{"debugger gone", errors.SubprocessUnavailable("exited", nil), "orion session start"},
		{"invalid input", errors.InvalidInput("frame must be an integer"), "frame must be an integer"},
		{
			"compile failure shows diagnostics",
			errors.CompileFailed("main.cpp", fmt.Errorf("exit status 1")).WithDetail("diagnostics", "main.cpp:2: error"),
			"main.cpp:2: error",
		},
		{"plain error", fmt.Errorf("boom"), "Error: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := NewErrorHandler(&buf, false).Handle(tt.err)
			assert.Equal(t, tt.err, err)
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerbose(t *testing.T) {
	var buf bytes.Buffer
	_ = NewErrorHandler(&buf, true).Handle(errors.SessionNotFound("4"))
	assert.Contains(t, buf.String(), `"SESSION_NOT_FOUND"`)
}

func TestReport(t *testing.T) {
	root := &cobra.Command{Use: "orion"}
	sub := &cobra.Command{Use: "step", RunE: func(*cobra.Command, []string) error { return nil }}
	root.AddCommand(sub)

	var buf bytes.Buffer
	sub.SetErr(&buf)
	Report(sub, fmt.Errorf("unknown flag: --frame"), false)
	assert.Contains(t, buf.String(), "unknown flag: --frame")
	assert.Contains(t, buf.String(), "Run 'orion step --help' for usage.")

	buf.Reset()
	Report(sub, errors.SessionNotFound("9"), false)
	assert.Contains(t, buf.String(), "orion session list")
	assert.NotContains(t, buf.String(), "--help")
}

func TestVersionCommandJSON(t *testing.T) {
	root := NewStandardCommand("orion", "test")
	root.AddCommand(NewVersionCommand("orion"))

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"version", "--json"})
	require.NoError(t, root.Execute())

	var info map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	assert.Equal(t, "dev", info["version"])
	assert.True(t, strings.Contains(info["platform"], "/"))
}
