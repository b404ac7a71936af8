// Package enginetest builds engines backed by scripted debuggers for tests
// of the layers above the engine.
package enginetest

import (
	"context"
	"testing"

	"github.com/grovetools/orion/command"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/internal/build"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// CompileOK stands in for the compiler: it writes its last argument, the
// output executable.
const CompileOK = `for last; do :; done; echo built > "$last"`

// DefaultScript scripts a program stopping on line 3 at start, stepping to
// line 4 and exiting normally on next. x sits at 0x10 and is 4 bytes wide.
func DefaultScript(ch *testutil.FakeChannel) {
	ch.On(gdb.ExecRun, `*stopped,reason="breakpoint-hit",frame={func="main",file="main.cpp",line="3"},thread-id="1"`)
	ch.On(gdb.ExecStep, `*stopped,reason="end-stepping-range",frame={func="main",file="main.cpp",line="4"},thread-id="1"`)
	ch.On(gdb.ExecNext, `*stopped,reason="exited-normally"`)
	ch.On(gdb.StackListFrames, `^done,stack=[frame={level="0",func="main",file="main.cpp",line="4"}]`)
	ch.On(gdb.AddressOf(1, 0, "x"), `^done,value="0x10"`)
	ch.On(gdb.SizeOf(1, 0, "x"), `^done,value="4"`)
}

// New returns an engine whose sessions talk to FakeChannels prepared by
// script, DefaultScript when nil. The store is closed when the test ends.
func New(t *testing.T, script func(*testutil.FakeChannel)) (*engine.Engine, *config.Config) {
	t.Helper()
	if script == nil {
		script = DefaultScript
	}

	cfg := config.Default()
	cfg.Workdir.Root = t.TempDir()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	entry := logrus.NewEntry(logger)

	spawn := func(ctx context.Context, dir string) (gdb.Channel, error) {
		ch := testutil.NewFakeChannel()
		script(ch)
		return ch, nil
	}

	exec := &testutil.ScriptExecutor{Scripts: map[string]string{cfg.Compiler.Path: CompileOK}}
	compiler, err := build.New(cfg.Compiler, command.NewSafeBuilderWithExecutor(exec), entry)
	require.NoError(t, err)

	st := store.New(workdir.NewManager(cfg.Workdir, entry), spawn, entry)
	t.Cleanup(st.Close)
	return engine.New(st, compiler, engine.OptionsFromConfig(cfg), nil, entry), cfg
}
