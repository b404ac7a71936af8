package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.Default().Workdir
	cfg.Root = t.TempDir()
	logger := logrus.NewEntry(logrus.New())

	spawn := func(ctx context.Context, dir string) (gdb.Channel, error) {
		return testutil.NewFakeChannel(), nil
	}
	st := store.New(workdir.NewManager(cfg, logger), spawn, logger)
	t.Cleanup(st.Close)
	return st
}

// nextHeapUpdate waits for a heap_changed update on sub.
func nextHeapUpdate(t *testing.T, sub chan store.Update) store.Update {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-sub:
			if u.Type == store.UpdateHeapChanged {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for heap_changed")
		}
	}
}

func TestHeapWatcherPublishesValidSnapshots(t *testing.T) {
	st := newStore(t)
	w, err := NewHeapWatcher(st, 20*time.Millisecond, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	token, err := st.Create(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.Watching(token) }, 2*time.Second, 10*time.Millisecond)

	sess, err := st.Get(token)
	require.NoError(t, err)

	// A partial write is never published; the completed one is.
	require.NoError(t, os.WriteFile(sess.Dir.Heap(), []byte(`[{"address":"0x1",`), 0644))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, os.WriteFile(sess.Dir.Heap(), []byte(`[{"address":"0x1","size":"4"}]`), 0644))

	u := nextHeapUpdate(t, sub)
	assert.Equal(t, token, u.Token)
	assert.Equal(t, "watcher", u.Source)
	heap, ok := u.Payload.(models.HeapSnapshot)
	require.True(t, ok)
	assert.JSONEq(t, `[{"address":"0x1","size":"4"}]`, string(heap))
}

func TestHeapWatcherIgnoresOtherFiles(t *testing.T) {
	st := newStore(t)
	w, err := NewHeapWatcher(st, 10*time.Millisecond, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	token, err := st.Create(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.Watching(token) }, 2*time.Second, 10*time.Millisecond)

	sess, err := st.Get(token)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(sess.Dir.Output(), []byte("[1]\n"), 0644))

	select {
	case u := <-sub:
		assert.NotEqual(t, store.UpdateHeapChanged, u.Type)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHeapWatcherOutputThenHeapWithinDebounce(t *testing.T) {
	st := newStore(t)
	w, err := NewHeapWatcher(st, 100*time.Millisecond, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	sub := st.Subscribe()
	defer st.Unsubscribe(sub)

	token, err := st.Create(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.Watching(token) }, 2*time.Second, 10*time.Millisecond)

	sess, err := st.Get(token)
	require.NoError(t, err)

	// The program prints and allocates in the same instant.
	require.NoError(t, os.WriteFile(sess.Dir.Output(), []byte("1\n"), 0644))
	require.NoError(t, os.WriteFile(sess.Dir.Heap(), []byte(`[{"address":"0x2","size":"8"}]`), 0644))

	u := nextHeapUpdate(t, sub)
	assert.Equal(t, token, u.Token)
	heap, ok := u.Payload.(models.HeapSnapshot)
	require.True(t, ok)
	assert.JSONEq(t, `[{"address":"0x2","size":"8"}]`, string(heap))
}

func TestHeapWatcherForgetsClosedSessions(t *testing.T) {
	st := newStore(t)
	w, err := NewHeapWatcher(st, 10*time.Millisecond, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	token, err := st.Create(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return w.Watching(token) }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, st.Destroy(token))
	assert.Eventually(t, func() bool { return !w.Watching(token) }, 2*time.Second, 10*time.Millisecond)
}

func TestHeapWatcherPicksUpExistingSessions(t *testing.T) {
	st := newStore(t)
	token, err := st.Create(context.Background())
	require.NoError(t, err)

	w, err := NewHeapWatcher(st, 0, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	defer w.Close()

	assert.True(t, w.Watching(token))
}

func TestFollowOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	lines, err := FollowOutput(ctx, path, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)

	next := func() string {
		select {
		case line := <-lines:
			return line
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for output")
			return ""
		}
	}
	assert.Equal(t, "first", next())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, "second", next())

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-lines:
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}
