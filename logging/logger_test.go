package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	t.Setenv("ORION_HOME", t.TempDir())

	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry.
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerWritesDefaultLogFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ORION_HOME", home)

	logger := NewLogger("file-sink-test")
	logger.Info("hello from the sink")

	matches, err := filepath.Glob(filepath.Join(home, "state", "logs", "file-sink-test-*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from the sink")
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	logger.WithField("component", "test").Info("Test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "test")
	assert.Contains(t, output, "Test message")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "step finished",
				Data: logrus.Fields{
					"component": "orion-engine",
					"session":   "3",
				},
			},
			want: []string{"[INFO]", "orion-engine", "step finished", "session=3"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "command timed out",
				Data: logrus.Fields{
					"component": "orion-gdb",
				},
			},
			want:    []string{"[WARN]", "command timed out"},
			notWant: []string{"orion-gdb"},
		},
		{
			name:   "caller info",
			config: FormatConfig{DisableTimestamp: true},
			entry: &logrus.Entry{
				Level:   logrus.DebugLevel,
				Message: "reconciled",
				Data:    logrus.Fields{},
				Caller: &runtime.Frame{
					File:     "/src/orion/internal/daemon/engine/reconcile.go",
					Line:     42,
					Function: "github.com/grovetools/orion/internal/daemon/engine.Reconcile",
				},
			},
			want: []string{"[DEBUG]", "reconcile.go:42", "engine.Reconcile"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			if tt.entry.Caller != nil {
				logger.SetReportCaller(true)
			}
			tt.entry.Logger = logger

			formatter := &TextFormatter{Config: tt.config}
			out, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			output := string(out)
			for _, want := range tt.want {
				assert.Contains(t, output, want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, output, notWant)
			}
			assert.True(t, strings.HasSuffix(output, "\n"))
		})
	}
}

func TestEnvironmentLevel(t *testing.T) {
	t.Setenv("ORION_HOME", t.TempDir())
	t.Setenv("ORION_LOG_LEVEL", "debug")

	logger := NewLogger("env-level-test")
	assert.Equal(t, logrus.DebugLevel, logger.Logger.GetLevel())
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	t.Setenv("ORION_HOME", t.TempDir())
	t.Setenv("ORION_LOG_LEVEL", "loud")

	logger := NewLogger("bad-level-test")
	assert.Equal(t, logrus.InfoLevel, logger.Logger.GetLevel())
}

func TestPrettyLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)

	p.Success("session 1 started")
	p.Field("line", 7)
	p.Path("workdir", "/tmp/orion/1")
	p.ErrorPretty("compile failed", errors.New("exit status 1"))
	p.Item("main", "main.cpp:7")
	p.Code("hello\nworld")

	out := buf.String()
	for _, want := range []string{"session 1 started", "line", "7", "/tmp/orion/1", "compile failed", "exit status 1", "main.cpp:7", "  hello", "  world"} {
		assert.Contains(t, out, want)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "logs/orion.log"), ExpandPath("~/logs/orion.log"))
	assert.Equal(t, "/var/log/orion.log", ExpandPath("/var/log/orion.log"))
}

func TestTextFormatterFieldOrder(t *testing.T) {
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Level:   logrus.InfoLevel,
		Message: "stopped",
		Data: logrus.Fields{
			"line":    7,
			"reason":  "end-stepping-range",
			"session": "2",
			"frames":  1,
		},
	}

	out, err := (&TextFormatter{Config: FormatConfig{DisableTimestamp: true}}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[INFO] stopped session=2 frames=1 line=7 reason=end-stepping-range\n", string(out))
}

func TestResolveLevel(t *testing.T) {
	cfg := Config{
		Level:      "warn",
		Components: map[string]string{"gdb": "trace", "orion-engine": "debug"},
	}

	tests := []struct {
		component string
		env       string
		want      logrus.Level
	}{
		{"orion-gdb", "", logrus.TraceLevel},
		{"orion-engine", "", logrus.DebugLevel},
		{"orion-daemon", "", logrus.WarnLevel},
		{"orion-gdb", "error", logrus.ErrorLevel},
	}
	for _, tt := range tests {
		t.Run(tt.component+"/"+tt.env, func(t *testing.T) {
			t.Setenv("ORION_LOG_LEVEL", tt.env)
			assert.Equal(t, tt.want, resolveLevel(tt.component, cfg))
		})
	}
}

func TestConfigLevelFor(t *testing.T) {
	cfg := Config{Level: "info", Components: map[string]string{"watcher": "debug", "orion-gdb": "trace"}}

	assert.Equal(t, "debug", cfg.LevelFor("orion-watcher"))
	assert.Equal(t, "debug", cfg.LevelFor("watcher"))
	assert.Equal(t, "trace", cfg.LevelFor("orion-gdb"))
	assert.Equal(t, "info", cfg.LevelFor("orion-server"))
	assert.Equal(t, "", Config{}.LevelFor("orion-server"))
}

func TestNewWithFileSink(t *testing.T) {
	t.Setenv("ORION_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "custom", "orion.log")

	logger := New("orion-test", Config{
		File:   FileSinkConfig{Enabled: true, Path: path},
		Format: FormatConfig{Preset: "json", StructuredToStderr: "never"},
	})
	logger.WithField("session", "4").Info("session created")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"session created"`)
	assert.Contains(t, string(data), `"session":"4"`)
}

func TestLogToStderrModes(t *testing.T) {
	t.Setenv("ORION_DEBUG", "")
	assert.True(t, logToStderr("always", logrus.InfoLevel))
	assert.False(t, logToStderr("never", logrus.DebugLevel))
	assert.True(t, logToStderr("auto", logrus.DebugLevel))
}
