package engine

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/orion/command"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/build"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/pkg/profiling"
	"github.com/grovetools/orion/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	compileOK   = `for last; do :; done; echo built > "$last"`
	compileFail = `echo "main.cpp:2:1: error: expected ';' before '}' token" >&2; exit 1`
	helloSource = "#include <iostream>\nint main() {\n  int x = 1;\n  std::cout << x << std::endl;\n}\n"
)

type harness struct {
	engine   *Engine
	cfg      *config.Config
	mu       sync.Mutex
	channels map[string]*testutil.FakeChannel
}

func newHarness(t *testing.T, compilerScript string) *harness {
	t.Helper()

	cfg := config.Default()
	cfg.Workdir.Root = t.TempDir()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
	entry := logrus.NewEntry(logger)

	h := &harness{cfg: cfg, channels: make(map[string]*testutil.FakeChannel)}
	spawn := func(ctx context.Context, dir string) (gdb.Channel, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		ch := testutil.NewFakeChannel()
		h.channels[dir] = ch
		return ch, nil
	}

	exec := &testutil.ScriptExecutor{Scripts: map[string]string{cfg.Compiler.Path: compilerScript}}
	compiler, err := build.New(cfg.Compiler, command.NewSafeBuilderWithExecutor(exec), entry)
	require.NoError(t, err)

	st := store.New(workdir.NewManager(cfg.Workdir, entry), spawn, entry)
	t.Cleanup(st.Close)

	h.engine = New(st, compiler, OptionsFromConfig(cfg), nil, entry)
	return h
}

// session creates a session and returns its token, scripted channel and directory.
func (h *harness) session(t *testing.T) (string, *testutil.FakeChannel, workdir.Dir) {
	t.Helper()
	token, err := h.engine.CreateSession(context.Background())
	require.NoError(t, err)
	sess, err := h.engine.Store().Get(token)
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	return token, h.channels[sess.Dir.Path], sess.Dir
}

func TestLoadSourceRunsSetupSequence(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, dir := h.session(t)
	ch.On(gdb.BreakInsert("main"), breakpointAtLine4)
	ch.On(gdb.ExecRun, `=thread-group-started,id="i1",pid="4242"`, runningAll, stoppedAtLine9)
	ch.On(gdb.StackListFrames, `^done,stack=[frame={level="0",func="main",file="main.cpp",line="9"}]`)

	result, err := h.engine.LoadSource(context.Background(), token, "main.cpp", strings.NewReader(helloSource))
	require.NoError(t, err)

	sent := ch.Sent()
	require.GreaterOrEqual(t, len(sent), 8)
	assert.Equal(t, []string{
		gdb.EnvironmentCd(dir.Path),
		"-file-exec-and-symbols a.out",
		"skip -gfi /usr/include/c++/*/bits/*.h",
		"skip -gfi dyno.h",
		"skip -rfu ^__.*",
		"-break-insert main",
		"-exec-arguments >output.txt",
		"-exec-run",
	}, sent[:8])
	assert.Equal(t, gdb.StackListFrames, sent[8])

	assert.Equal(t, models.StateStopped, result.State.ExecutionState)
	assert.Equal(t, 9, result.State.CurrentLine)
	require.Len(t, result.State.Frames, 1)
	assert.NotEmpty(t, result.Records)

	assert.FileExists(t, dir.Source("main.cpp"))
	assert.FileExists(t, dir.Object())
	assert.FileExists(t, dir.Heap())

	summary := h.engine.Sessions()
	require.Len(t, summary, 1)
	assert.Equal(t, "main.cpp", summary[0].Source)
	assert.Equal(t, 9, summary[0].CurrentLine)
}

func TestLoadSourceResetsState(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecStep, exitedNormally)

	_, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	st, err := h.engine.State(token)
	require.NoError(t, err)
	require.Equal(t, models.StateExitedNormally, st.ExecutionState)

	ch.On(gdb.ExecRun, stoppedAtLine5)
	result, err := h.engine.LoadSource(context.Background(), token, "main.cpp", strings.NewReader(helloSource))
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, result.State.ExecutionState, "a new program starts a new state")
	assert.Equal(t, 5, result.State.CurrentLine)
}

func TestLoadSourceRejectsBadInput(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)

	tests := []struct {
		name   string
		token  string
		source string
		body   string
		code   errors.ErrorCode
	}{
		{"empty token", "", "main.cpp", helloSource, errors.ErrCodeInvalidInput},
		{"unknown token", "99", "main.cpp", helloSource, errors.ErrCodeSessionNotFound},
		{"not a c++ source", token, "notes.txt", helloSource, errors.ErrCodeInvalidInput},
		{"path traversal", token, "../main.cpp", helloSource, errors.ErrCodeInvalidInput},
		{"empty source", token, "main.cpp", "  \n", errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.LoadSource(context.Background(), tt.token, tt.source, strings.NewReader(tt.body))
			assert.True(t, errors.Is(err, tt.code), "error: %v", err)
		})
	}
	assert.Empty(t, ch.Sent(), "nothing reaches the debugger")
}

func TestLoadSourceOversizedUpload(t *testing.T) {
	h := newHarness(t, compileOK)
	h.engine.opts.MaxUploadBytes = 16
	token, _, _ := h.session(t)

	_, err := h.engine.LoadSource(context.Background(), token, "main.cpp", strings.NewReader(helloSource))
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "error: %v", err)
}

func TestLoadSourceCompileFailure(t *testing.T) {
	h := newHarness(t, compileFail)
	token, ch, _ := h.session(t)

	_, err := h.engine.LoadSource(context.Background(), token, "main.cpp", strings.NewReader(helloSource))
	assert.True(t, errors.Is(err, errors.ErrCodeCompileFailed), "error: %v", err)
	assert.Empty(t, ch.Sent())

	_, err = h.engine.Store().Get(token)
	assert.NoError(t, err, "a compile failure keeps the session")
}

func TestStepRefreshesEveryView(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, dir := h.session(t)
	scriptTwoFrames(ch)
	ch.On(gdb.ExecStep, runningAll, stoppedAtLine5)

	require.NoError(t, os.WriteFile(dir.Heap(), []byte(`[{"address":"0x4172b0","size":"4"}]`), 0644))
	require.NoError(t, os.WriteFile(dir.Output(), []byte("1\nhello\n"), 0644))

	st, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, models.StateStopped, st.ExecutionState)
	assert.Equal(t, 5, st.CurrentLine)
	assert.Len(t, st.Frames, 2)
	assert.JSONEq(t, `[{"address":"0x4172b0","size":"4"}]`, string(st.Heap))
	assert.Equal(t, []string{"1", "hello"}, st.Output)
	assert.Equal(t, gdb.ExecStep, ch.Sent()[0])
}

func TestNextUsesStepOver(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecNext, stoppedAtLine9)

	st, err := h.engine.Next(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, 9, st.CurrentLine)
	assert.Equal(t, gdb.ExecNext, ch.Sent()[0])
}

func TestStepAfterExitKeepsTerminalState(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecStep, exitedWithCode)
	ch.On(gdb.ExecStep, `^error,msg="The program is not being run."`)

	st, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.StateExited, st.ExecutionState)

	for i := 0; i < 3; i++ {
		st, err = h.engine.Step(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, models.StateExited, st.ExecutionState)
	}
}

func TestStepWithoutTerminalRecordReturnsPartialState(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecRun, stoppedAtLine5)
	_, err := h.engine.LoadSource(context.Background(), token, "main.cpp", strings.NewReader(helloSource))
	require.NoError(t, err)

	// A step that timed out: the channel hands back what arrived, no stop.
	ch.On(gdb.ExecStep, runningAll)

	st, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, st.ExecutionState)
	assert.Equal(t, 5, st.CurrentLine)
}

func TestStopArrivingAfterStepTimeout(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecRun, stoppedAtLine5)
	_, err := h.engine.LoadSource(context.Background(), token, "main.cpp", strings.NewReader(helloSource))
	require.NoError(t, err)

	// The step timed out; its stop is delivered ahead of the frame listing.
	ch.On(gdb.ExecStep, runningAll)
	ch.On(gdb.StackListFrames,
		`*stopped,reason="end-stepping-range",frame={func="main",file="main.cpp",line="7"}`,
		`^done,stack=[frame={level="0",func="main",file="main.cpp",line="7"}]`)

	st, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.StateStopped, st.ExecutionState)
	assert.Equal(t, 7, st.CurrentLine)
	require.Len(t, st.Frames, 1)
	assert.Equal(t, st.CurrentLine, st.Frames[0].FrameInfo.Line)
}

func TestHeapInvalidThenValid(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, dir := h.session(t)
	ch.On(gdb.ExecStep, stoppedAtLine5)

	valid := `{"blocks":[]}`
	steps := []struct {
		content string
		want    string
	}{
		{`{"blocks":[{"address":"0x41`, ""},
		{valid, valid},
		{`[{"address":`, valid},
		{"", valid},
		{`[{"address":"0x4172b0","size":"8"}]`, `[{"address":"0x4172b0","size":"8"}]`},
	}

	for i, s := range steps {
		require.NoError(t, os.WriteFile(dir.Heap(), []byte(s.content), 0644))
		st, err := h.engine.Step(context.Background(), token)
		require.NoError(t, err)
		if s.want == "" {
			assert.True(t, st.Heap.IsEmpty(), "step %d", i)
		} else {
			assert.JSONEq(t, s.want, string(st.Heap), "step %d", i)
		}
	}
}

func TestStepWithoutStack(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecStep, stoppedAtLine5)
	scriptTwoFrames(ch)

	st, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	require.Len(t, st.Frames, 2)

	ch.Reset(gdb.StackListFrames).On(gdb.StackListFrames, `^error,msg="No stack."`)
	ch.Reset(gdb.ExecStep).On(gdb.ExecStep, `^done`)

	st, err = h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	assert.NotNil(t, st.Frames)
	assert.Empty(t, st.Frames)
	assert.Equal(t, models.StateStopped, st.ExecutionState)
	assert.Equal(t, 5, st.CurrentLine)
}

func TestOutputMissingFileIsEmpty(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, dir := h.session(t)
	ch.On(gdb.ExecStep, stoppedAtLine5)

	st, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)
	assert.NotNil(t, st.Output)
	assert.Empty(t, st.Output)

	lines, err := h.engine.Output(token)
	require.NoError(t, err)
	assert.Empty(t, lines)

	require.NoError(t, os.WriteFile(dir.Output(), []byte("a\r\nb"), 0644))
	lines, err = h.engine.Output(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, lines)
}

func TestMemory(t *testing.T) {
	h := newHarness(t, compileOK)
	token, _, dir := h.session(t)

	heap, err := h.engine.Memory(token)
	require.NoError(t, err)
	assert.True(t, heap.IsEmpty(), "fresh heap file is empty")

	require.NoError(t, os.WriteFile(dir.Heap(), []byte(`[{"address":"0x1","size":"4"}]`), 0644))
	heap, err = h.engine.Memory(token)
	require.NoError(t, err)

	var blocks []map[string]string
	require.NoError(t, json.Unmarshal(heap, &blocks))
	assert.Equal(t, []map[string]string{{"address": "0x1", "size": "4"}}, blocks)

	_, err = h.engine.Memory("77")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
}

func TestSendRaw(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On("-break-insert 12", `^done,bkpt={number="2",type="breakpoint",line="12"}`)

	recs, err := h.engine.SendRaw(context.Background(), token, "-break-insert 12", "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "done", recs[0].Message)

	st, err := h.engine.State(token)
	require.NoError(t, err)
	assert.Equal(t, 12, st.CurrentLine)
	assert.Equal(t, []string{"-break-insert 12"}, ch.Sent(), "raw commands do not resync")
}

func TestSendRawValidation(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)

	for _, cmd := range []string{"", "   ", "-exec-run\n-gdb-exit"} {
		_, err := h.engine.SendRaw(context.Background(), token, cmd, "")
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "command %q", cmd)
	}
	assert.Empty(t, ch.Sent())

	recs, err := h.engine.SendRaw(context.Background(), token, "-gdb-version", "")
	require.NoError(t, err)
	assert.NotNil(t, recs)
}

func TestInspectVariable(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	scriptTwoFrames(ch)

	info, err := h.engine.InspectVariable(context.Background(), token, "v", 1)
	require.NoError(t, err)
	assert.Equal(t, "v", info.Name)
	assert.Equal(t, 1, info.Frame)
	assert.Equal(t, models.Ptr("24"), info.Size)
	assert.Equal(t, models.Ptr("(std::vector<int, std::allocator<int> > *) 0x7fffffffe0d0"), info.Address)

	info, err = h.engine.InspectVariable(context.Background(), token, "missing", 0)
	require.NoError(t, err)
	assert.Nil(t, info.Address)
	assert.Nil(t, info.Size)

	_, err = h.engine.InspectVariable(context.Background(), token, "x; shell rm", 0)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	_, err = h.engine.InspectVariable(context.Background(), token, "x", -1)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestUnavailableDebuggerClosesSession(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, dir := h.session(t)
	ch.OnError(gdb.ExecStep, errors.SubprocessUnavailable("gdb exited", nil))

	_, err := h.engine.Step(context.Background(), token)
	assert.True(t, errors.Is(err, errors.ErrCodeSubprocessUnavailable))

	_, err = h.engine.State(token)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
	assert.Equal(t, 1, ch.Closed())
	assert.NoDirExists(t, dir.Path)
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t, compileOK)

	_, err := h.engine.Step(context.Background(), "5")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
	_, err = h.engine.SendRaw(context.Background(), "5", "-gdb-version", "")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
	_, err = h.engine.Output("5")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
	err = h.engine.CloseSession("5")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
}

func TestCloseSession(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)

	require.NoError(t, h.engine.CloseSession(token))
	assert.Equal(t, 1, ch.Closed())
	assert.Empty(t, h.engine.Sessions())
}

func TestStepPublishesUpdate(t *testing.T) {
	h := newHarness(t, compileOK)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecStep, stoppedAtLine5)

	sub := h.engine.Store().Subscribe()
	defer h.engine.Store().Unsubscribe(sub)

	_, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)

	select {
	case u := <-sub:
		assert.Equal(t, store.UpdateStep, u.Type)
		assert.Equal(t, token, u.Token)
		st, ok := u.Payload.(models.ProgramState)
		require.True(t, ok)
		assert.Equal(t, 5, st.CurrentLine)
	case <-time.After(time.Second):
		t.Fatal("no update published")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	h := newHarness(t, compileOK)
	first, ch1, _ := h.session(t)
	second, ch2, _ := h.session(t)
	ch1.On(gdb.ExecStep, stoppedAtLine5)
	ch2.On(gdb.ExecStep, stoppedAtLine9)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.engine.Step(context.Background(), first)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.engine.Step(context.Background(), second)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st1, err := h.engine.State(first)
	require.NoError(t, err)
	st2, err := h.engine.State(second)
	require.NoError(t, err)
	assert.Equal(t, 5, st1.CurrentLine)
	assert.Equal(t, 9, st2.CurrentLine)
}

func TestStepWritesTimingLog(t *testing.T) {
	h := newHarness(t, compileOK)
	path := t.TempDir() + "/timing.csv"
	h.engine.timer = profiling.NewCommandTimer(path)
	token, ch, _ := h.session(t)
	ch.On(gdb.ExecStep, stoppedAtLine5)

	_, err := h.engine.Step(context.Background(), token)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "step,"+token+","+gdb.ExecStep)
}

func TestLoadCodeUsesUploadName(t *testing.T) {
	h := newHarness(t, compileOK)
	token, _, dir := h.session(t)

	_, err := h.engine.LoadCode(context.Background(), token, helloSource)
	require.NoError(t, err)
	assert.FileExists(t, dir.Source(UploadName(token)))
	assert.Equal(t, token+"_upload.cpp", h.engine.Sessions()[0].Source)

	_, err = h.engine.LoadCode(context.Background(), token, "")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
