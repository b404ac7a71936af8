package engine

import (
	"context"
	"io"
	"strings"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
	"github.com/sirupsen/logrus"
)

// LoadResult is the outcome of loading a program into a session.
type LoadResult struct {
	Records []mi.Record         `json:"records"`
	State   models.ProgramState `json:"state"`
}

// UploadName is the file name pasted code is stored under.
func UploadName(token string) string {
	return token + "_upload.cpp"
}

// LoadCode loads pasted program text under the session's upload name.
func (e *Engine) LoadCode(ctx context.Context, token, code string) (LoadResult, error) {
	if code == "" {
		return LoadResult{}, errors.InvalidInput("no code submitted")
	}
	return e.LoadSource(ctx, token, UploadName(token), strings.NewReader(code))
}

// LoadSource stores the named source in the session's work directory,
// compiles it and runs it under the debugger up to the initial breakpoint.
// The session state starts over from the run's records.
func (e *Engine) LoadSource(ctx context.Context, token, name string, src io.Reader) (LoadResult, error) {
	if token == "" {
		return LoadResult{}, errors.InvalidInput("a session token is required; start a session first")
	}
	if err := e.compiler.CheckSource(name); err != nil {
		return LoadResult{}, err
	}

	sess, err := e.store.Get(token)
	if err != nil {
		return LoadResult{}, err
	}
	logger := e.logger.WithFields(logrus.Fields{"session": token, "source": name})

	var result LoadResult
	err = sess.Do(func(ch gdb.Channel, st *models.ProgramState) error {
		stop := e.timer.Start("load", token, name)
		defer stop.Stop()

		source, err := sess.Dir.WriteSource(name, src, e.opts.MaxUploadBytes)
		if err != nil {
			return err
		}
		if err := sess.Dir.ResetHeap(); err != nil {
			return err
		}
		if err := e.compiler.Compile(ctx, source, sess.Dir.Object()); err != nil {
			return err
		}

		var recs []mi.Record
		for _, command := range e.loadCommands(sess.Dir.Path, sess.Dir.ObjectName(), sess.Dir.OutputName()) {
			out, err := send(ctx, ch, command, mi.ClassDone, e.opts.CommandTimeout)
			if err != nil {
				return err
			}
			recs = append(recs, out...)
		}
		out, err := send(ctx, ch, gdb.ExecRun, mi.ClassStopped, e.opts.StepTimeout)
		if err != nil {
			return err
		}
		recs = append(recs, out...)

		*st = *models.NewProgramState()
		Reconcile(st, recs)
		if err := e.refresh(ctx, ch, sess.Dir, st, logger); err != nil {
			return err
		}

		if recs == nil {
			recs = []mi.Record{}
		}
		result = LoadResult{Records: recs, State: st.Clone()}
		return nil
	})
	if err != nil {
		return LoadResult{}, e.fail(token, err)
	}

	sess.SetSource(name)
	logger.WithFields(logrus.Fields{
		"execState": result.State.ExecutionState,
		"line":      result.State.CurrentLine,
	}).Info("Program loaded")
	e.store.Publish(store.Update{Type: store.UpdateStep, Token: token, Source: "engine", Payload: result.State})
	return result, nil
}

// loadCommands returns the setup sequence issued before the program runs.
func (e *Engine) loadCommands(dir, object, output string) []string {
	commands := []string{
		gdb.EnvironmentCd(dir),
		gdb.FileExecAndSymbols(object),
	}
	for _, pattern := range e.opts.SkipFiles {
		commands = append(commands, gdb.SkipFile(pattern))
	}
	for _, regex := range e.opts.SkipFunctions {
		commands = append(commands, gdb.SkipFunctionRegex(regex))
	}
	return append(commands,
		gdb.BreakInsert(e.opts.BreakAt),
		gdb.ExecArguments(gdb.RedirectStdout(output)),
	)
}
