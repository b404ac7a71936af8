// Package paths provides XDG-compliant path resolution for orion.
//
// Resolution order:
// 1. ORION_HOME (portable root) → $ORION_HOME/{config,state,cache,run}
// 2. XDG env vars → $XDG_*_HOME/orion
// 3. Platform defaults → ~/.config/orion, ~/.local/state/orion, etc.
package paths

import (
	"os"
	"path/filepath"
)

const appName = "orion"

// baseDir resolves one XDG base directory.
func baseDir(homeSub, xdgVar string, fallback ...string) string {
	if home := os.Getenv("ORION_HOME"); home != "" {
		return filepath.Join(home, homeSub)
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, appName)
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(append([]string{homeDir}, append(fallback, appName)...)...)
	}
	return ""
}

// ConfigDir returns the orion configuration directory.
// Used for the user-level orion.yml.
func ConfigDir() string {
	return baseDir("config", "XDG_CONFIG_HOME", ".config")
}

// StateDir returns the orion state directory.
// Used for the pid file and logs.
func StateDir() string {
	return baseDir("state", "XDG_STATE_HOME", ".local", "state")
}

// CacheDir returns the orion cache directory.
func CacheDir() string {
	return baseDir("cache", "XDG_CACHE_HOME", ".cache")
}

// RuntimeDir returns the directory for the daemon socket.
// Uses XDG_RUNTIME_DIR when available (Linux), falls back to StateDir (macOS).
func RuntimeDir() string {
	if home := os.Getenv("ORION_HOME"); home != "" {
		return filepath.Join(home, "run")
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return StateDir()
}

// LogDir returns the directory for default log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// WorkRoot returns the default parent of per-session work directories.
func WorkRoot() string {
	cache := CacheDir()
	if cache == "" {
		return filepath.Join(os.TempDir(), appName, "sessions")
	}
	return filepath.Join(cache, "sessions")
}

// SocketPath returns the path to the orion daemon unix socket.
func SocketPath() string {
	return filepath.Join(RuntimeDir(), "orion.sock")
}

// PidFilePath returns the path to the orion daemon PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "orion.pid")
}

// EnsureDirs creates all orion directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		CacheDir(),
		RuntimeDir(),
		LogDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
