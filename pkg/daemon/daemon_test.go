package daemon

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/enginetest"
	"github.com/grovetools/orion/internal/daemon/server"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*engine.Engine, *config.Config) {
	t.Helper()
	return enginetest.New(t, nil)
}

func serve(t *testing.T, eng *engine.Engine, cfg *config.Config) *server.Server {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	srv := server.New(logrus.NewEntry(logger))
	srv.SetEngine(eng)
	srv.SetRunningConfig(&server.RunningConfig{Config: cfg, Version: "test", StartedAt: time.Now()})
	return srv
}

func newRemote(t *testing.T) (Client, *engine.Engine) {
	t.Helper()
	eng, cfg := newEngine(t)
	ts := httptest.NewServer(serve(t, eng, cfg).Handler())
	t.Cleanup(ts.Close)

	client := NewHTTPClient(ts.URL)
	t.Cleanup(func() { _ = client.Close() })
	return client, eng
}

func newLocal(t *testing.T) (Client, *engine.Engine) {
	t.Helper()
	eng, _ := newEngine(t)
	return NewLocalClient(eng, logrus.NewEntry(logrus.New())), eng
}

var clients = map[string]func(t *testing.T) (Client, *engine.Engine){
	"remote": newRemote,
	"local":  newLocal,
}

func TestClientSessionLifecycle(t *testing.T) {
	for name, newClient := range clients {
		t.Run(name, func(t *testing.T) {
			client, eng := newClient(t)
			ctx := context.Background()

			token, err := client.CreateSession(ctx)
			require.NoError(t, err)

			result, err := client.LoadCode(ctx, token, "int main() {\n  int x = 1;\n  return x;\n}\n")
			require.NoError(t, err)
			assert.Equal(t, models.StateStopped, result.State.ExecutionState)
			assert.Equal(t, 3, result.State.CurrentLine)
			assert.NotEmpty(t, result.Records)

			st, err := client.Step(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, 4, st.CurrentLine)
			require.Len(t, st.Frames, 1)
			assert.Equal(t, "main", st.Frames[0].FrameInfo.Function)

			st, err = client.State(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, 4, st.CurrentLine)

			recs, err := client.SendRaw(ctx, token, "-gdb-version", "")
			require.NoError(t, err)
			require.Len(t, recs, 1)
			assert.Equal(t, "done", recs[0].Message)

			info, err := client.InspectVariable(ctx, token, "x", 0)
			require.NoError(t, err)
			require.NotNil(t, info.Address)
			assert.Equal(t, "0x10", *info.Address)
			require.NotNil(t, info.Size)
			assert.Equal(t, "4", *info.Size)

			sess, err := eng.Store().Get(token)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(sess.Dir.Output(), []byte("1\n"), 0644))
			require.NoError(t, os.WriteFile(sess.Dir.Heap(), []byte(`{"blocks":[1]}`), 0644))

			out, err := client.Output(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, []string{"1"}, out)

			heap, err := client.Memory(ctx, token)
			require.NoError(t, err)
			assert.JSONEq(t, `{"blocks":[1]}`, string(heap))

			st, err = client.Next(ctx, token)
			require.NoError(t, err)
			assert.Equal(t, models.StateExitedNormally, st.ExecutionState)

			sessions, err := client.Sessions(ctx)
			require.NoError(t, err)
			require.Len(t, sessions, 1)
			assert.Equal(t, token, sessions[0].Token)

			require.NoError(t, client.CloseSession(ctx, token))
			_, err = client.Step(ctx, token)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCode(err))
		})
	}
}

func TestClientLoadSource(t *testing.T) {
	for name, newClient := range clients {
		t.Run(name, func(t *testing.T) {
			client, eng := newClient(t)
			ctx := context.Background()

			token, err := client.CreateSession(ctx)
			require.NoError(t, err)
			_, err = client.LoadSource(ctx, token, "prog.cpp", strings.NewReader("int main() {}\n"))
			require.NoError(t, err)

			sess, err := eng.Store().Get(token)
			require.NoError(t, err)
			assert.FileExists(t, filepath.Join(sess.Dir.Path, "prog.cpp"))

			_, err = client.LoadSource(ctx, token, "prog.py", strings.NewReader("print(1)\n"))
			assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestClientStreamUpdates(t *testing.T) {
	for name, newClient := range clients {
		t.Run(name, func(t *testing.T) {
			client, _ := newClient(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			updates, err := client.StreamUpdates(ctx)
			require.NoError(t, err)

			// The remote stream opens with the current session list.
			if name == "remote" {
				select {
				case u := <-updates:
					assert.Equal(t, server.UpdateInitial, u.Type)
				case <-time.After(3 * time.Second):
					t.Fatal("no initial event")
				}
			}

			token, err := client.CreateSession(ctx)
			require.NoError(t, err)

			select {
			case u := <-updates:
				assert.Equal(t, store.UpdateSessionCreated, u.Type)
				assert.Equal(t, token, u.Token)
			case <-time.After(3 * time.Second):
				t.Fatal("no session_created event")
			}

			cancel()
			for range updates {
			}
		})
	}
}

func TestClientFollowOutput(t *testing.T) {
	for name, newClient := range clients {
		t.Run(name, func(t *testing.T) {
			client, eng := newClient(t)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			token, err := client.CreateSession(ctx)
			require.NoError(t, err)
			sess, err := eng.Store().Get(token)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(sess.Dir.Output(), []byte("first\n"), 0644))

			lines, err := client.FollowOutput(ctx, token)
			require.NoError(t, err)

			select {
			case line := <-lines:
				assert.Equal(t, "first", line)
			case <-time.After(3 * time.Second):
				t.Fatal("no output line")
			}

			_, err = client.FollowOutput(ctx, "999")
			assert.Equal(t, errors.ErrCodeSessionNotFound, errors.GetCode(err))
		})
	}
}

func TestRemoteGetConfig(t *testing.T) {
	client, _ := newRemote(t)
	cfg, err := client.GetConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, "g++", cfg.Config.Compiler.Path)
	assert.True(t, client.IsRunning())

	local, _ := newLocal(t)
	_, err = local.GetConfig(context.Background())
	assert.Error(t, err)
	assert.False(t, local.IsRunning())
}

func TestDecodeErrorWithoutBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine not initialized", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL).CreateSession(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInternal, errors.GetCode(err))
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "engine not initialized")
}

func TestConnectOverUnixSocket(t *testing.T) {
	// Socket paths are limited to ~104 bytes, which t.TempDir can exceed.
	dir, err := os.MkdirTemp("", "orion")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socketPath := filepath.Join(dir, "orion.sock")

	eng, cfg := newEngine(t)
	cfg.Server.Socket = socketPath
	cfg.Server.Listen = ""

	_, err = Connect(cfg)
	assert.ErrorIs(t, err, ErrNotRunning)

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	hs := &http.Server{Handler: serve(t, eng, cfg).Handler()}
	go func() { _ = hs.Serve(listener) }()
	defer hs.Close()

	client, err := Connect(cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.True(t, client.IsRunning())

	token, err := client.CreateSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", token)
}

func TestNewFallsBackToLocal(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Socket = filepath.Join(t.TempDir(), "missing.sock")
	cfg.Server.Listen = ""

	called := false
	client, err := New(cfg, func() (Client, error) {
		called = true
		local, _ := newLocal(t)
		return local, nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.IsType(t, &LocalClient{}, client)
}
