package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/sirupsen/logrus"
)

// Store is the registry of live sessions.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// next is the last token handed out. Tokens are never reused.
	next atomic.Uint64

	workdirs *workdir.Manager
	spawn    gdb.Spawner
	logger   *logrus.Entry

	subMu       sync.RWMutex
	subscribers map[chan Update]struct{}
}

// New creates a new Store. Sessions get their directories from workdirs and
// their debugger from spawn.
func New(workdirs *workdir.Manager, spawn gdb.Spawner, logger *logrus.Entry) *Store {
	return &Store{
		sessions:    make(map[string]*Session),
		workdirs:    workdirs,
		spawn:       spawn,
		logger:      logger,
		subscribers: make(map[chan Update]struct{}),
	}
}

// Create allocates a token, prepares a work directory and starts a debugger
// in it. On failure the directory is released and the token is burned.
func (s *Store) Create(ctx context.Context) (string, error) {
	token := strconv.FormatUint(s.next.Add(1), 10)
	logger := s.logger.WithField("session", token)

	dir, err := s.workdirs.Create(token)
	if err != nil {
		return "", err
	}

	ch, err := s.spawn(ctx, dir.Path)
	if err != nil {
		if rmErr := dir.Remove(); rmErr != nil {
			logger.WithError(rmErr).Warn("Failed to remove work directory")
		}
		logger.WithError(err).Error("Failed to start debugger")
		if errors.GetCode(err) == "" {
			err = errors.SubprocessUnavailable("failed to start debugger", err)
		}
		return "", err
	}

	s.mu.Lock()
	s.sessions[token] = newSession(token, dir, ch)
	s.mu.Unlock()

	logger.WithField("dir", dir.Path).Info("Session created")
	s.Publish(Update{Type: UpdateSessionCreated, Token: token, Source: "registry"})
	return token, nil
}

// Get returns the session for token.
func (s *Store) Get(token string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, errors.SessionNotFound(token)
	}
	return sess, nil
}

// Destroy unregisters the session, then closes its debugger and removes its
// directory once any in-flight command has finished.
func (s *Store) Destroy(token string) error {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()

	if !ok {
		return errors.SessionNotFound(token)
	}

	logger := s.logger.WithField("session", token)
	closeErr, removeErr := sess.close()
	if closeErr != nil {
		logger.WithError(closeErr).Warn("Debugger did not exit cleanly")
	}
	if removeErr != nil {
		logger.WithError(removeErr).Warn("Failed to remove work directory")
	}

	logger.Info("Session closed")
	s.Publish(Update{Type: UpdateSessionClosed, Token: token, Source: "registry"})
	return nil
}

// List returns a summary of every live session ordered by token.
func (s *Store) List() []SessionSummary {
	s.mu.RLock()
	result := make([]SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		result = append(result, sess.Summary())
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, _ := strconv.ParseUint(result[i].Token, 10, 64)
		b, _ := strconv.ParseUint(result[j].Token, 10, 64)
		return a < b
	})
	return result
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close destroys every session.
func (s *Store) Close() {
	s.mu.RLock()
	tokens := make([]string, 0, len(s.sessions))
	for token := range s.sessions {
		tokens = append(tokens, token)
	}
	s.mu.RUnlock()

	for _, token := range tokens {
		_ = s.Destroy(token)
	}
}

// Publish sends u to every subscriber without blocking.
func (s *Store) Publish(u Update) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Non-blocking send to prevent slow clients from stalling the daemon
		}
	}
}

// Subscribe creates a new subscription channel for updates.
func (s *Store) Subscribe() chan Update {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	ch := make(chan Update, 100) // Buffered
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
