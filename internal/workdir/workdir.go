// Package workdir manages the per-session directories holding the uploaded
// source, the compiled object, the heap snapshot and the captured output.
package workdir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/pkg/paths"
	"github.com/sirupsen/logrus"
)

// Layout names the files inside a session directory.
type Layout struct {
	ObjectName string
	HeapFile   string
	OutputFile string
}

// Manager creates and removes session directories under one root.
type Manager struct {
	root   string
	layout Layout
	logger *logrus.Entry
}

// NewManager creates a manager from the workdir configuration section.
// An empty root resolves to paths.WorkRoot().
func NewManager(cfg config.WorkdirConfig, logger *logrus.Entry) *Manager {
	root := cfg.Root
	if root == "" {
		root = paths.WorkRoot()
	}
	return &Manager{
		root: root,
		layout: Layout{
			ObjectName: cfg.ObjectName,
			HeapFile:   cfg.HeapFile,
			OutputFile: cfg.OutputFile,
		},
		logger: logger,
	}
}

// Root returns the parent directory of all session directories.
func (m *Manager) Root() string {
	return m.root
}

// Create prepares a fresh directory for the session token. A leftover
// directory from an earlier daemon run is removed first.
func (m *Manager) Create(token string) (Dir, error) {
	if token == "" || filepath.Base(token) != token {
		return Dir{}, errors.InvalidInput(fmt.Sprintf("invalid session token '%s'", token))
	}

	path := filepath.Join(m.root, token)
	if _, err := os.Stat(path); err == nil {
		m.logger.WithField("dir", path).Debug("Removing stale session directory")
		if err := os.RemoveAll(path); err != nil {
			return Dir{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to remove stale session directory")
		}
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return Dir{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to create session directory").
			WithDetail("dir", path)
	}

	d := Dir{Path: path, layout: m.layout}
	if err := d.ResetHeap(); err != nil {
		_ = os.RemoveAll(path)
		return Dir{}, err
	}
	return d, nil
}

// Dir is one session's work directory.
type Dir struct {
	Path   string
	layout Layout
}

// Object returns the path of the compiled program.
func (d Dir) Object() string {
	return filepath.Join(d.Path, d.layout.ObjectName)
}

// ObjectName returns the compiled program's file name relative to Path.
func (d Dir) ObjectName() string {
	return d.layout.ObjectName
}

// Heap returns the path of the heap snapshot file.
func (d Dir) Heap() string {
	return filepath.Join(d.Path, d.layout.HeapFile)
}

// Output returns the path of the captured program output.
func (d Dir) Output() string {
	return filepath.Join(d.Path, d.layout.OutputFile)
}

// OutputName returns the captured output's file name relative to Path.
func (d Dir) OutputName() string {
	return d.layout.OutputFile
}

// Source returns the path a source file named name is stored at.
func (d Dir) Source(name string) string {
	return filepath.Join(d.Path, name)
}

// WriteSource stores at most limit bytes read from r as the named source
// file and returns its path.
func (d Dir) WriteSource(name string, r io.Reader, limit int64) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", errors.InvalidInput(fmt.Sprintf("invalid source name '%s'", name))
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to read source")
	}
	if int64(len(data)) > limit {
		return "", errors.InvalidInput(fmt.Sprintf("source exceeds %d bytes", limit)).
			WithDetail("limit", limit)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", errors.InvalidInput("source is empty")
	}

	path := d.Source(name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to write source").
			WithDetail("path", path)
	}
	return path, nil
}

// ResetHeap truncates the heap snapshot file, creating it if needed.
func (d Dir) ResetHeap() error {
	if err := os.WriteFile(d.Heap(), nil, 0644); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create heap file").
			WithDetail("path", d.Heap())
	}
	return nil
}

// ReadHeap decodes the heap snapshot file. A missing, empty or partially
// written file is a MALFORMED_SNAPSHOT error.
func (d Dir) ReadHeap() (models.HeapSnapshot, error) {
	data, err := os.ReadFile(d.Heap())
	if err != nil {
		return nil, errors.MalformedSnapshot(d.Heap(), err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.MalformedSnapshot(d.Heap(), fmt.Errorf("empty snapshot"))
	}
	if !json.Valid(data) {
		return nil, errors.MalformedSnapshot(d.Heap(), fmt.Errorf("invalid JSON"))
	}
	return models.HeapSnapshot(data), nil
}

// ReadOutput returns the captured output split into lines. A missing file
// yields no lines.
func (d Dir) ReadOutput() ([]string, error) {
	data, err := os.ReadFile(d.Output())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read output").
			WithDetail("path", d.Output())
	}
	return SplitLines(string(data)), nil
}

// SplitLines splits text on line breaks. A trailing newline does not start
// another line.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// Remove deletes the directory and everything in it.
func (d Dir) Remove() error {
	if d.Path == "" {
		return nil
	}
	return os.RemoveAll(d.Path)
}
