package store

import (
	"sync"
	"time"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/models"
)

// Session is one debugging session: a debugger channel, its work directory
// and the reconciled program state.
type Session struct {
	Token   string
	Dir     workdir.Dir
	Created time.Time

	// mu serializes every conversation with the debugger.
	mu     sync.Mutex
	ch     gdb.Channel
	state  *models.ProgramState
	closed bool

	infoMu sync.RWMutex
	source string
	exec   models.ExecutionState
	line   int
}

func newSession(token string, dir workdir.Dir, ch gdb.Channel) *Session {
	return &Session{
		Token:   token,
		Dir:     dir,
		Created: time.Now(),
		ch:      ch,
		state:   models.NewProgramState(),
		exec:    models.StateUnknown,
	}
}

// Do runs fn with exclusive access to the session's channel and state.
// It fails with SESSION_NOT_FOUND once the session has been destroyed.
func (s *Session) Do(fn func(ch gdb.Channel, st *models.ProgramState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.SessionNotFound(s.Token)
	}

	err := fn(s.ch, s.state)

	s.infoMu.Lock()
	s.exec = s.state.ExecutionState
	s.line = s.state.CurrentLine
	s.infoMu.Unlock()

	return err
}

// SetSource records the name of the program loaded into the session.
func (s *Session) SetSource(name string) {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()
	s.source = name
}

// Summary returns the session's listing entry without waiting for an
// in-flight command.
func (s *Session) Summary() SessionSummary {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()
	return SessionSummary{
		Token:          s.Token,
		Dir:            s.Dir.Path,
		Created:        s.Created,
		Source:         s.source,
		ExecutionState: s.exec,
		CurrentLine:    s.line,
	}
}

// close shuts the channel down and removes the work directory. It waits for
// any in-flight Do.
func (s *Session) close() (closeErr, removeErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil
	}
	s.closed = true
	return s.ch.Close(), s.Dir.Remove()
}
