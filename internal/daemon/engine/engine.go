// Package engine drives debugging sessions: it loads programs, steps them and
// keeps each session's ProgramState in sync with its debugger.
package engine

import (
	"context"
	"time"

	"github.com/grovetools/orion/command"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/build"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// Options tunes the command sequences the engine issues.
type Options struct {
	Thread         int
	CommandTimeout time.Duration
	StepTimeout    time.Duration
	SkipFiles      []string
	SkipFunctions  []string
	BreakAt        string
	MaxUploadBytes int64
}

// OptionsFromConfig extracts engine options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Thread:         cfg.GDB.Thread,
		CommandTimeout: cfg.GDB.CommandTimeout.Std(),
		StepTimeout:    cfg.GDB.StepTimeout.Std(),
		SkipFiles:      cfg.GDB.SkipFiles,
		SkipFunctions:  cfg.GDB.SkipFunctions,
		BreakAt:        cfg.GDB.BreakAt,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}
}

// Engine runs caller operations against the sessions of a store.
type Engine struct {
	store     *store.Store
	compiler  *build.Compiler
	validator *command.SafeBuilder
	opts      Options
	timer     *profiling.CommandTimer
	logger    *logrus.Entry
}

// New creates an Engine. timer may be nil.
func New(st *store.Store, compiler *build.Compiler, opts Options, timer *profiling.CommandTimer, logger *logrus.Entry) *Engine {
	if opts.Thread < 1 {
		opts.Thread = 1
	}
	if opts.BreakAt == "" {
		opts.BreakAt = "main"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 1 << 20
	}
	return &Engine{
		store:     st,
		compiler:  compiler,
		validator: command.NewSafeBuilder(),
		opts:      opts,
		timer:     timer,
		logger:    logger,
	}
}

// Store returns the engine's session registry.
func (e *Engine) Store() *store.Store {
	return e.store
}

// CreateSession starts a new session and returns its token.
func (e *Engine) CreateSession(ctx context.Context) (string, error) {
	return e.store.Create(ctx)
}

// Step executes one source line, stepping into calls.
func (e *Engine) Step(ctx context.Context, token string) (models.ProgramState, error) {
	return e.advance(ctx, token, gdb.ExecStep)
}

// Next executes one source line, stepping over calls.
func (e *Engine) Next(ctx context.Context, token string) (models.ProgramState, error) {
	return e.advance(ctx, token, gdb.ExecNext)
}

// advance runs an execution command and refreshes every derived view:
// reconcile, resync frames, reread heap and output.
func (e *Engine) advance(ctx context.Context, token, execCommand string) (models.ProgramState, error) {
	sess, err := e.store.Get(token)
	if err != nil {
		return models.ProgramState{}, err
	}
	logger := e.logger.WithField("session", token)

	var snapshot models.ProgramState
	err = sess.Do(func(ch gdb.Channel, st *models.ProgramState) error {
		stop := e.timer.Start("step", token, execCommand)
		defer stop.Stop()

		recs, err := send(ctx, ch, execCommand, mi.ClassStopped, e.opts.StepTimeout)
		if err != nil {
			return err
		}
		Reconcile(st, recs)

		if err := e.refresh(ctx, ch, sess.Dir, st, logger); err != nil {
			return err
		}
		snapshot = st.Clone()
		return nil
	})
	if err != nil {
		return models.ProgramState{}, e.fail(token, err)
	}

	logger.WithFields(logrus.Fields{
		"command":   execCommand,
		"execState": snapshot.ExecutionState,
		"line":      snapshot.CurrentLine,
		"frames":    len(snapshot.Frames),
	}).Debug("Stepped")
	e.store.Publish(store.Update{Type: store.UpdateStep, Token: token, Source: "engine", Payload: snapshot})
	return snapshot, nil
}

// refresh rebuilds frames and rereads the heap and output files.
func (e *Engine) refresh(ctx context.Context, ch gdb.Channel, dir workdir.Dir, st *models.ProgramState, logger *logrus.Entry) error {
	if err := Resync(ctx, ch, st, e.resyncOptions(logger)); err != nil {
		return err
	}
	refreshHeap(dir, st, logger)
	refreshOutput(dir, st, logger)
	return nil
}

func (e *Engine) resyncOptions(logger *logrus.Entry) ResyncOptions {
	return ResyncOptions{Thread: e.opts.Thread, Timeout: e.opts.CommandTimeout, Logger: logger}
}

// SendRaw passes one MI command through to the session's debugger and
// returns its records. Expected defaults to "done". The records are also
// reconciled into the session state.
func (e *Engine) SendRaw(ctx context.Context, token, miCommand, expected string) ([]mi.Record, error) {
	if err := e.validator.Validate("miCommand", miCommand); err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if expected == "" {
		expected = mi.ClassDone
	}

	sess, err := e.store.Get(token)
	if err != nil {
		return nil, err
	}

	var recs []mi.Record
	err = sess.Do(func(ch gdb.Channel, st *models.ProgramState) error {
		stop := e.timer.Start("command", token, miCommand)
		defer stop.Stop()

		var err error
		recs, err = send(ctx, ch, miCommand, expected, e.opts.CommandTimeout)
		if err != nil {
			return err
		}
		Reconcile(st, recs)
		return nil
	})
	if err != nil {
		return nil, e.fail(token, err)
	}

	e.logger.WithFields(logrus.Fields{
		"session": token,
		"command": miCommand,
		"records": len(recs),
	}).Debug("Sent raw command")
	if recs == nil {
		recs = []mi.Record{}
	}
	return recs, nil
}

// InspectVariable evaluates the address and size of a variable in one frame.
func (e *Engine) InspectVariable(ctx context.Context, token, name string, frame int) (models.VariableInfo, error) {
	if err := e.validator.Validate("variableName", name); err != nil {
		return models.VariableInfo{}, errors.InvalidInput(err.Error())
	}
	if frame < 0 {
		return models.VariableInfo{}, errors.InvalidInput("frame level cannot be negative")
	}

	sess, err := e.store.Get(token)
	if err != nil {
		return models.VariableInfo{}, err
	}

	info := models.VariableInfo{Name: name, Frame: frame}
	err = sess.Do(func(ch gdb.Channel, _ *models.ProgramState) error {
		stop := e.timer.Start("variable", token, name)
		defer stop.Stop()

		var err error
		if info.Address, err = evaluate(ctx, ch, gdb.AddressOf(e.opts.Thread, frame, name), e.opts.CommandTimeout); err != nil {
			return err
		}
		info.Size, err = evaluate(ctx, ch, gdb.SizeOf(e.opts.Thread, frame, name), e.opts.CommandTimeout)
		return err
	})
	if err != nil {
		return models.VariableInfo{}, e.fail(token, err)
	}
	return info, nil
}

// State returns a snapshot of the session's current state.
func (e *Engine) State(token string) (models.ProgramState, error) {
	sess, err := e.store.Get(token)
	if err != nil {
		return models.ProgramState{}, err
	}
	var snapshot models.ProgramState
	err = sess.Do(func(_ gdb.Channel, st *models.ProgramState) error {
		snapshot = st.Clone()
		return nil
	})
	return snapshot, err
}

// Output reads the session's captured program output.
func (e *Engine) Output(token string) ([]string, error) {
	sess, err := e.store.Get(token)
	if err != nil {
		return nil, err
	}
	stop := e.timer.Start("output", token)
	defer stop.Stop()
	return sess.Dir.ReadOutput()
}

// Memory reads the session's heap snapshot. An unreadable snapshot yields an
// empty one.
func (e *Engine) Memory(token string) (models.HeapSnapshot, error) {
	sess, err := e.store.Get(token)
	if err != nil {
		return nil, err
	}
	stop := e.timer.Start("memory", token)
	defer stop.Stop()

	heap, err := sess.Dir.ReadHeap()
	if err != nil {
		e.logger.WithField("session", token).WithError(err).Debug("Heap snapshot unavailable")
		return models.HeapSnapshot{}, nil
	}
	return heap, nil
}

// CloseSession shuts the session's debugger down and removes its files.
func (e *Engine) CloseSession(token string) error {
	if err := e.store.Destroy(token); err != nil {
		e.logger.WithField("session", token).WithError(err).Warn("Close of unknown session")
		return err
	}
	return nil
}

// Sessions lists the live sessions.
func (e *Engine) Sessions() []store.SessionSummary {
	return e.store.List()
}

// fail tears the session down when its debugger is gone and passes err on.
func (e *Engine) fail(token string, err error) error {
	if errors.Is(err, errors.ErrCodeSubprocessUnavailable) {
		e.logger.WithField("session", token).WithError(err).Warn("Debugger unavailable, closing session")
		if destroyErr := e.store.Destroy(token); destroyErr != nil && !errors.Is(destroyErr, errors.ErrCodeSessionNotFound) {
			e.logger.WithField("session", token).WithError(destroyErr).Warn("Failed to close session")
		}
	}
	return err
}

func refreshHeap(dir workdir.Dir, st *models.ProgramState, logger *logrus.Entry) {
	heap, err := dir.ReadHeap()
	if err != nil {
		logger.WithError(err).Debug("Keeping previous heap snapshot")
		return
	}
	st.Heap = heap
}

func refreshOutput(dir workdir.Dir, st *models.ProgramState, logger *logrus.Entry) {
	lines, err := dir.ReadOutput()
	if err != nil {
		logger.WithError(err).Warn("Failed to read captured output")
		lines = []string{}
	}
	st.Output = lines
}
