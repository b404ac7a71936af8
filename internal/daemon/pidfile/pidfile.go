// Package pidfile records which process runs the orion daemon and where it
// listens.
package pidfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grovetools/orion/pkg/process"
)

// Record is the content of a pidfile: the daemon's PID on the first line and
// its endpoint (a socket path or tcp://host:port) on the second.
type Record struct {
	PID      int
	Endpoint string
}

// Acquire records the current process as the daemon listening on endpoint.
// It fails if the file names another live process; a stale file is replaced.
func Acquire(path, endpoint string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create pid directory: %w", err)
	}

	if rec, err := Read(path); err == nil && rec.PID != os.Getpid() && process.IsProcessAlive(rec.PID) {
		return fmt.Errorf("daemon already running with PID %d", rec.PID)
	}

	content := fmt.Sprintf("%d\n%s\n", os.Getpid(), endpoint)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write pid file: %w", err)
	}
	return nil
}

// Release removes the pidfile if it still names the current process.
func Release(path string) error {
	rec, err := Read(path)
	if err != nil {
		return err
	}
	if rec.PID != os.Getpid() {
		return nil
	}
	return os.Remove(path)
}

// Read parses the pidfile. Files holding only a PID are accepted.
func Read(path string) (Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	lines := strings.SplitN(strings.TrimSpace(string(content)), "\n", 2)
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Record{}, fmt.Errorf("malformed pid file %s: %w", path, err)
	}
	rec := Record{PID: pid}
	if len(lines) == 2 {
		rec.Endpoint = strings.TrimSpace(lines[1])
	}
	return rec, nil
}

// IsRunning reports whether the daemon named by the pidfile is alive.
// A missing file means not running.
func IsRunning(path string) (bool, Record, error) {
	rec, err := Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, Record{}, nil
		}
		return false, Record{}, err
	}
	return process.IsProcessAlive(rec.PID), rec, nil
}
