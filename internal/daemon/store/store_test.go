package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	store    *Store
	channels map[string]*testutil.FakeChannel
	mu       sync.Mutex
	spawnErr error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Default().Workdir
	cfg.Root = t.TempDir()
	logger := logrus.NewEntry(logrus.New())

	h := &harness{channels: make(map[string]*testutil.FakeChannel)}
	spawn := func(ctx context.Context, dir string) (gdb.Channel, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.spawnErr != nil {
			return nil, h.spawnErr
		}
		ch := testutil.NewFakeChannel()
		h.channels[dir] = ch
		return ch, nil
	}
	h.store = New(workdir.NewManager(cfg, logger), spawn, logger)
	return h
}

func (h *harness) channel(t *testing.T, token string) *testutil.FakeChannel {
	t.Helper()
	sess, err := h.store.Get(token)
	require.NoError(t, err)
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channels[sess.Dir.Path]
}

func TestCreateAllocatesIncreasingTokens(t *testing.T) {
	h := newHarness(t)

	first, err := h.store.Create(context.Background())
	require.NoError(t, err)
	second, err := h.store.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "1", first)
	assert.Equal(t, "2", second)

	sess, err := h.store.Get(first)
	require.NoError(t, err)
	assert.DirExists(t, sess.Dir.Path)
	assert.Equal(t, models.StateUnknown, sess.Summary().ExecutionState)
}

func TestTokensAreNeverReused(t *testing.T) {
	h := newHarness(t)

	token, err := h.store.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.store.Destroy(token))

	h.spawnErr = fmt.Errorf("gdb not found")
	_, err = h.store.Create(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSubprocessUnavailable))

	h.spawnErr = nil
	next, err := h.store.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", next, "failed spawn burns its token")
}

func TestSpawnFailureReleasesWorkdir(t *testing.T) {
	h := newHarness(t)
	h.spawnErr = fmt.Errorf("boom")

	_, err := h.store.Create(context.Background())
	require.Error(t, err)
	assert.NoDirExists(t, h.store.workdirs.Root()+"/1")
	assert.Equal(t, 0, h.store.Len())
}

func TestConcurrentCreateYieldsDistinctTokens(t *testing.T) {
	h := newHarness(t)

	const n = 20
	tokens := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := h.store.Create(context.Background())
			assert.NoError(t, err)
			tokens <- token
		}()
	}
	wg.Wait()
	close(tokens)

	seen := make(map[string]bool)
	for token := range tokens {
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
	assert.Len(t, seen, n)
	assert.Len(t, h.store.List(), n)
}

func TestGetUnknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.store.Get("42")
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))
}

func TestDestroy(t *testing.T) {
	h := newHarness(t)

	token, err := h.store.Create(context.Background())
	require.NoError(t, err)
	sess, err := h.store.Get(token)
	require.NoError(t, err)
	ch := h.channel(t, token)

	require.NoError(t, h.store.Destroy(token))
	assert.Equal(t, 1, ch.Closed())
	assert.NoDirExists(t, sess.Dir.Path)

	_, err = h.store.Get(token)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))

	err = h.store.Destroy(token)
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound))

	err = sess.Do(func(gdb.Channel, *models.ProgramState) error { return nil })
	assert.True(t, errors.Is(err, errors.ErrCodeSessionNotFound), "a destroyed session rejects work")
}

func TestDestroyWaitsForInFlightWork(t *testing.T) {
	h := newHarness(t)

	token, err := h.store.Create(context.Background())
	require.NoError(t, err)
	sess, err := h.store.Get(token)
	require.NoError(t, err)
	ch := h.channel(t, token)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = sess.Do(func(gdb.Channel, *models.ProgramState) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	destroyed := make(chan struct{})
	go func() {
		_ = h.store.Destroy(token)
		close(destroyed)
	}()

	select {
	case <-destroyed:
		t.Fatal("Destroy returned while a command was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, ch.Closed())

	close(release)
	<-done
	<-destroyed
	assert.Equal(t, 1, ch.Closed())
}

func TestDoSerializesPerSession(t *testing.T) {
	h := newHarness(t)

	token, err := h.store.Create(context.Background())
	require.NoError(t, err)
	sess, err := h.store.Get(token)
	require.NoError(t, err)

	var active, maxActive int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(func(gdb.Channel, *models.ProgramState) error {
				mu.Lock()
				active++
				if active > maxActive {
					maxActive = active
				}
				mu.Unlock()
				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxActive)
}

func TestSummaryTracksState(t *testing.T) {
	h := newHarness(t)

	token, err := h.store.Create(context.Background())
	require.NoError(t, err)
	sess, err := h.store.Get(token)
	require.NoError(t, err)

	require.NoError(t, sess.Do(func(_ gdb.Channel, st *models.ProgramState) error {
		st.ExecutionState = models.StateStopped
		st.CurrentLine = 12
		return nil
	}))
	sess.SetSource("main.cpp")

	summary := sess.Summary()
	assert.Equal(t, models.StateStopped, summary.ExecutionState)
	assert.Equal(t, 12, summary.CurrentLine)
	assert.Equal(t, "main.cpp", summary.Source)
}

func TestListIsOrderedNumerically(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 11; i++ {
		_, err := h.store.Create(context.Background())
		require.NoError(t, err)
	}

	list := h.store.List()
	require.Len(t, list, 11)
	for i, s := range list {
		assert.Equal(t, strconv.Itoa(i+1), s.Token)
	}
}

func TestPubSub(t *testing.T) {
	h := newHarness(t)

	sub := h.store.Subscribe()
	defer h.store.Unsubscribe(sub)

	token, err := h.store.Create(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.store.Destroy(token))
	h.store.Publish(Update{Type: UpdateStep, Token: token, Source: "engine"})

	var got []UpdateType
	for i := 0; i < 3; i++ {
		select {
		case u := <-sub:
			assert.Equal(t, token, u.Token)
			got = append(got, u.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for update")
		}
	}
	assert.Equal(t, []UpdateType{UpdateSessionCreated, UpdateSessionClosed, UpdateStep}, got)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := newHarness(t)

	sub := h.store.Subscribe()
	h.store.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok)

	// A second unsubscribe is harmless.
	h.store.Unsubscribe(sub)
}

func TestCloseDestroysEverything(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		_, err := h.store.Create(context.Background())
		require.NoError(t, err)
	}
	h.store.Close()
	assert.Equal(t, 0, h.store.Len())
}
