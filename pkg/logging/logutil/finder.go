// Package logutil locates the log files written by orion components.
package logutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/logging"
	"github.com/grovetools/orion/pkg/paths"
)

// FindLogFile determines the log file for component. An explicitly
// configured file wins; otherwise the newest dated file in the log directory
// is used. The log directory is returned either way so callers can wait for
// a file to appear.
func FindLogFile(cfg *config.Config, component string) (logFile string, logsDir string, err error) {
	var logCfg logging.Config
	if cfg != nil {
		// A malformed section falls back to the default location.
		_ = cfg.UnmarshalExtension("logging", &logCfg)
	}

	if logCfg.File.Enabled && logCfg.File.Path != "" {
		path := logging.ExpandPath(logCfg.File.Path)
		return path, filepath.Dir(path), nil
	}

	logsDir = paths.LogDir()
	if logsDir == "" {
		return "", "", fmt.Errorf("no log directory available")
	}
	logFile, err = FindLatestLogFile(logsDir, component+"-")
	return logFile, logsDir, err
}

// FindLatestLogFile finds the most recently modified file in dir whose name
// starts with prefix. Non-empty files are preferred over empty ones.
func FindLatestLogFile(dir, prefix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("could not read log directory %s: %w", dir, err)
	}

	var latest, latestNonEmpty os.FileInfo
	var latestPath, latestNonEmptyPath string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if latest == nil || info.ModTime().After(latest.ModTime()) {
			latest, latestPath = info, path
		}
		if info.Size() > 0 && (latestNonEmpty == nil || info.ModTime().After(latestNonEmpty.ModTime())) {
			latestNonEmpty, latestNonEmptyPath = info, path
		}
	}

	if latestNonEmpty != nil {
		return latestNonEmptyPath, nil
	}
	if latest == nil {
		return "", fmt.Errorf("no log files found in %s", dir)
	}
	return latestPath, nil
}
