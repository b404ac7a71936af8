// Package process inspects and signals local processes by PID.
package process

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// pollInterval is how often Terminate checks whether the process is gone.
const pollInterval = 50 * time.Millisecond

// IsProcessAlive checks if a process with the given PID is still running.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	// FindProcess always succeeds on Unix.
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes for existence. EPERM still means the process exists.
	err = p.Signal(syscall.Signal(0))
	return err == nil || os.IsPermission(err)
}

// Terminate sends SIGTERM to pid and waits up to grace for it to exit,
// then sends SIGKILL. It returns nil if the process is already gone.
func Terminate(pid int, grace time.Duration) error {
	if !IsProcessAlive(pid) {
		return nil
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		if !IsProcessAlive(pid) {
			return nil
		}
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !IsProcessAlive(pid) {
			return nil
		}
		time.Sleep(pollInterval)
	}

	if err := p.Signal(syscall.SIGKILL); err != nil && IsProcessAlive(pid) {
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}
	return nil
}
