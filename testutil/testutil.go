// Package testutil holds helpers shared by orion's package tests.
package testutil

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireBinary skips the test if name is not on PATH.
func RequireBinary(t *testing.T, name string) {
	t.Helper()

	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// WriteFile writes content to dir/name and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// ScriptExecutor runs a /bin/sh script in place of each named program. The
// script sees the program name as $0 and the original arguments as $@.
// Programs without a script run unchanged.
type ScriptExecutor struct {
	Scripts map[string]string
}

// Command implements command.Executor.
func (e *ScriptExecutor) Command(name string, args ...string) *exec.Cmd {
	if script, ok := e.Scripts[name]; ok {
		return exec.Command("/bin/sh", append([]string{"-c", script, name}, args...)...)
	}
	return exec.Command(name, args...)
}

// CommandContext implements command.Executor.
func (e *ScriptExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	if script, ok := e.Scripts[name]; ok {
		return exec.CommandContext(ctx, "/bin/sh", append([]string{"-c", script, name}, args...)...)
	}
	return exec.CommandContext(ctx, name, args...)
}
