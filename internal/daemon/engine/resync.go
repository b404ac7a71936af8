package engine

import (
	"context"
	"sort"
	"time"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
	"github.com/sirupsen/logrus"
)

// ResyncOptions controls a frame/variable rebuild.
type ResyncOptions struct {
	// Thread is the thread every listing and evaluation targets.
	Thread int
	// Timeout bounds each command. Zero uses the channel's default.
	Timeout time.Duration
	// Logger receives listings that came back without their payload.
	Logger *logrus.Entry
}

func (o ResyncOptions) missing(command, want string) {
	if o.Logger == nil {
		return
	}
	o.Logger.WithError(errors.ProtocolShapeMismatch(command, want)).Debug("Treating response as empty")
}

// Resync rebuilds st.Frames from the debugger's current position. The records
// answering the frame listing are reconciled first, since a *stopped from a
// timed out step arrives there. Per-variable lookups that fail leave the
// field nil; only transport errors abort, in which case st.Frames is left
// untouched.
func Resync(ctx context.Context, ch gdb.Channel, st *models.ProgramState, opts ResyncOptions) error {
	recs, err := send(ctx, ch, gdb.StackListFrames, mi.ClassDone, opts.Timeout)
	if err != nil {
		return err
	}
	Reconcile(st, recs)

	stack, ok := mi.Find[mi.StackPayload](recs)
	if !ok {
		opts.missing(gdb.StackListFrames, "stack")
		st.Frames = []models.Frame{}
		return nil
	}

	infos := append([]models.FrameInfo(nil), stack.Frames...)
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Level < infos[j].Level })

	frames := make([]models.Frame, 0, len(infos))
	for _, info := range infos {
		vars, err := frameVariables(ctx, ch, info.Level, opts)
		if err != nil {
			return err
		}
		frames = append(frames, models.Frame{FrameInfo: info, Variables: vars})
	}

	st.Frames = frames
	return nil
}

// frameVariables lists one frame's variables with values, merges in their
// types and evaluates their addresses and sizes.
func frameVariables(ctx context.Context, ch gdb.Channel, level int, opts ResyncOptions) ([]models.Variable, error) {
	all, err := listVariables(ctx, ch, level, gdb.AllValues, opts)
	if err != nil {
		return nil, err
	}
	simple, err := listVariables(ctx, ch, level, gdb.SimpleValues, opts)
	if err != nil {
		return nil, err
	}

	vars := make([]models.Variable, len(all))
	for i, entry := range all {
		vars[i] = models.Variable{Name: entry.Name}
		if entry.Value != nil {
			vars[i].Value = *entry.Value
		}
	}
	mergeTypes(vars, simple)

	for i := range vars {
		addr, err := evaluate(ctx, ch, gdb.AddressOf(opts.Thread, level, vars[i].Name), opts.Timeout)
		if err != nil {
			return nil, err
		}
		vars[i].Address = addr

		size, err := evaluate(ctx, ch, gdb.SizeOf(opts.Thread, level, vars[i].Name), opts.Timeout)
		if err != nil {
			return nil, err
		}
		vars[i].Size = size
	}
	return vars, nil
}

func listVariables(ctx context.Context, ch gdb.Channel, level int, mode gdb.ValueMode, opts ResyncOptions) ([]mi.VariableEntry, error) {
	command := gdb.StackListVariables(opts.Thread, level, mode)
	recs, err := send(ctx, ch, command, mi.ClassDone, opts.Timeout)
	if err != nil {
		return nil, err
	}
	payload, ok := mi.Find[mi.VariablesPayload](recs)
	if !ok {
		opts.missing(command, "variables")
	}
	return payload.Variables, nil
}

// evaluate returns the value of an expression, or nil when the debugger
// answered without one.
func evaluate(ctx context.Context, ch gdb.Channel, command string, timeout time.Duration) (*string, error) {
	recs, err := send(ctx, ch, command, mi.ClassDone, timeout)
	if err != nil {
		return nil, err
	}
	if v, ok := mi.Find[mi.ValuePayload](recs); ok {
		return models.Ptr(v.Value), nil
	}
	return nil, nil
}

// mergeTypes copies types from the simple-values listing into vars by name.
// A name that occurs more than once in either listing is a shadowed local;
// those are matched by position instead, and only when the names agree.
func mergeTypes(vars []models.Variable, simple []mi.VariableEntry) {
	varCount := make(map[string]int, len(vars))
	for _, v := range vars {
		varCount[v.Name]++
	}
	simpleCount := make(map[string]int, len(simple))
	byName := make(map[string]*string, len(simple))
	for _, entry := range simple {
		simpleCount[entry.Name]++
		byName[entry.Name] = entry.Type
	}

	for i := range vars {
		name := vars[i].Name
		var typ *string
		if varCount[name] == 1 && simpleCount[name] <= 1 {
			typ = byName[name]
		} else if i < len(simple) && simple[i].Name == name {
			typ = simple[i].Type
		}
		if typ != nil {
			vars[i].Type = models.Ptr(*typ)
		}
	}
}

// send issues one command bounded by timeout, or by the channel's default
// when timeout is zero.
func send(ctx context.Context, ch gdb.Channel, command, expected string, timeout time.Duration) ([]mi.Record, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return ch.Send(ctx, command, expected)
}
