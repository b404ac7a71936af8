package command

import (
	"context"
	"os"
	"os/exec"
	"syscall"
)

// Executor creates exec.Cmd instances for the debugger and the compiler.
// Tests inject their own to point at stub binaries.
type Executor interface {
	// Command creates a command whose lifetime is managed by the caller.
	// Long-lived children such as gdb use this form.
	Command(name string, args ...string) *exec.Cmd

	// CommandContext creates a command killed when ctx is done.
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor creates commands with os/exec. Env entries are appended to
// the inherited environment.
type RealExecutor struct {
	Env []string
}

// Command creates a command in its own process group, so a terminal
// interrupt aimed at the daemon does not reach debuggers mid-command.
func (e *RealExecutor) Command(name string, args ...string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	e.applyEnv(cmd)
	return cmd
}

// CommandContext creates a context-aware exec.Cmd.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	e.applyEnv(cmd)
	return cmd
}

func (e *RealExecutor) applyEnv(cmd *exec.Cmd) {
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
}
