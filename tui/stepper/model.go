// Package stepper is the interactive terminal debugger: it shows the source
// with the current line, the stack with its variables, the program output
// and the heap, and steps the session on key presses.
package stepper

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/tui/components/help"
	"github.com/sirupsen/logrus"
)

// Name identifies the stepper's keybinding overrides.
const Name = "stepper"

type pane int

const (
	paneStack pane = iota
	paneOutput
	paneHeap
	paneCount
)

func (p pane) String() string {
	switch p {
	case paneStack:
		return "Stack"
	case paneOutput:
		return "Output"
	default:
		return "Heap"
	}
}

// Options configures a stepper.
type Options struct {
	Client daemon.Client
	// Token attaches to an existing session; empty creates one that is
	// closed when the stepper exits.
	Token string
	// SourcePath is loaded into the session on start when set.
	SourcePath string
	Keys       KeyMap
	Logger     *logrus.Entry
}

type (
	sessionReadyMsg struct {
		token   string
		created bool
	}
	loadedMsg struct {
		source []string
		result engine.LoadResult
	}
	stateMsg struct {
		state  models.ProgramState
		action string
	}
	subscribedMsg struct{ updates <-chan store.Update }
	updateMsg     struct{ update store.Update }
	errMsg        struct{ err error }
)

// Model is the bubbletea model of the stepper.
type Model struct {
	client daemon.Client
	keys   KeyMap
	help   help.Model
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc

	token      string
	created    bool
	sourcePath string
	source     []string

	state   models.ProgramState
	busy    bool
	status  string
	err     error
	updates <-chan store.Update

	pane       pane
	sourceView viewport.Model
	detailView viewport.Model
	width      int
	height     int
	ready      bool
}

// New creates a stepper model.
func New(opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if len(opts.Keys.Unknown) > 0 {
		logger.WithField("bindings", opts.Keys.Unknown).Warn("Ignoring unknown stepper keybindings")
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := help.New(opts.Keys)
	h.Title = "orion stepper"

	return Model{
		client:     opts.Client,
		keys:       opts.Keys,
		help:       h,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		token:      opts.Token,
		sourcePath: opts.SourcePath,
		state:      *models.NewProgramState(),
		busy:       true,
		status:     "starting session",
	}
}

// Token returns the session the stepper drives.
func (m Model) Token() string { return m.token }

// Created reports whether the stepper created its session.
func (m Model) Created() bool { return m.created }

// State returns the last program state received.
func (m Model) State() models.ProgramState { return m.state }

// Err returns the last error shown in the status line.
func (m Model) Err() error { return m.err }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.openSession(), m.subscribe())
}

func (m Model) openSession() tea.Cmd {
	client, token := m.client, m.token
	ctx := m.ctx
	return func() tea.Msg {
		if token != "" {
			if _, err := client.State(ctx, token); err != nil {
				return errMsg{err}
			}
			return sessionReadyMsg{token: token}
		}
		token, err := client.CreateSession(ctx)
		if err != nil {
			return errMsg{err}
		}
		return sessionReadyMsg{token: token, created: true}
	}
}

func (m Model) subscribe() tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		updates, err := client.StreamUpdates(ctx)
		if err != nil {
			return errMsg{fmt.Errorf("live updates unavailable: %w", err)}
		}
		return subscribedMsg{updates}
	}
}

func waitForUpdate(updates <-chan store.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return nil
		}
		return updateMsg{u}
	}
}

func (m Model) loadSource() tea.Cmd {
	client, token, path, ctx := m.client, m.token, m.sourcePath, m.ctx
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return errMsg{fmt.Errorf("failed to read source: %w", err)}
		}
		result, err := client.LoadSource(ctx, token, filepath.Base(path), bytes.NewReader(data))
		if err != nil {
			return errMsg{err}
		}
		return loadedMsg{source: workdir.SplitLines(string(data)), result: result}
	}
}

// advance runs a state-returning call in the background.
func (m Model) advance(action string, call func(daemon.Client, context.Context, string) (models.ProgramState, error)) tea.Cmd {
	client, token, ctx := m.client, m.token, m.ctx
	return func() tea.Msg {
		st, err := call(client, ctx, token)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg{state: st, action: action}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help, _ = m.help.Update(msg)
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionReadyMsg:
		m.token, m.created = msg.token, msg.created
		m.logger.WithField("session", m.token).Debug("Stepper session ready")
		if m.sourcePath != "" {
			m.status = "compiling " + filepath.Base(m.sourcePath)
			return m, m.loadSource()
		}
		m.status = "attached"
		return m, m.advance("attached", daemon.Client.State)

	case loadedMsg:
		m.source = msg.source
		m.setState(msg.result.State, "loaded "+filepath.Base(m.sourcePath))
		return m, nil

	case stateMsg:
		m.setState(msg.state, msg.action)
		return m, nil

	case subscribedMsg:
		m.updates = msg.updates
		return m, waitForUpdate(m.updates)

	case updateMsg:
		return m.handleUpdate(msg.update)

	case errMsg:
		m.busy = false
		m.err = msg.err
		m.logger.WithError(msg.err).Debug("Stepper action failed")
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll {
		var cmd tea.Cmd
		m.help, cmd = m.help.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()
		return m, nil
	case key.Matches(msg, m.keys.NextTab):
		m.pane = (m.pane + 1) % paneCount
		m.refreshDetail()
		return m, nil
	case key.Matches(msg, m.keys.PrevTab):
		m.pane = (m.pane + paneCount - 1) % paneCount
		m.refreshDetail()
		return m, nil
	}

	if m.token == "" || m.busy {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.StepInto):
		return m.start("stepping", m.advance("step", daemon.Client.Step))
	case key.Matches(msg, m.keys.StepOver):
		return m.start("stepping over", m.advance("next", daemon.Client.Next))
	case key.Matches(msg, m.keys.Refresh):
		return m.start("refreshing", m.advance("refreshed", daemon.Client.State))
	case key.Matches(msg, m.keys.Reload):
		if m.sourcePath == "" {
			m.status = "no source file to reload"
			return m, nil
		}
		return m.start("compiling "+filepath.Base(m.sourcePath), m.loadSource())
	}

	var cmd tea.Cmd
	m.detailView, cmd = m.detailView.Update(msg)
	return m, cmd
}

func (m Model) start(status string, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	m.busy = true
	m.err = nil
	m.status = status
	return m, cmd
}

// handleUpdate follows steps made on the same session by other clients.
func (m Model) handleUpdate(u store.Update) (tea.Model, tea.Cmd) {
	next := waitForUpdate(m.updates)
	if u.Token == "" || u.Token != m.token {
		return m, next
	}

	switch u.Type {
	case store.UpdateSessionClosed:
		m.err = fmt.Errorf("session %s was closed", m.token)
		m.token = ""
		m.created = false
		return m, next
	case store.UpdateStep, store.UpdateHeapChanged:
		if m.busy {
			return m, next
		}
		return m, tea.Batch(next, m.advance("updated", daemon.Client.State))
	}
	return m, next
}

func (m *Model) setState(st models.ProgramState, action string) {
	m.busy = false
	m.err = nil
	m.state = st
	m.status = action
	m.refreshSource()
	m.refreshDetail()
}
