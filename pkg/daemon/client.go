// Package daemon provides a client interface for driving debug sessions.
// A RemoteClient talks to a running orion daemon; a LocalClient drives an
// in-process engine with the same API.
package daemon

import (
	"context"
	"io"

	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/server"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
)

// Client defines the session operations shared by RemoteClient and LocalClient.
type Client interface {
	// CreateSession starts a debugger and returns the new session token.
	CreateSession(ctx context.Context) (string, error)

	// LoadSource compiles the named source and runs it to the initial breakpoint.
	LoadSource(ctx context.Context, token, name string, src io.Reader) (engine.LoadResult, error)

	// LoadCode loads pasted program text.
	LoadCode(ctx context.Context, token, code string) (engine.LoadResult, error)

	// Step executes one source line, entering calls.
	Step(ctx context.Context, token string) (models.ProgramState, error)

	// Next executes one source line, stepping over calls.
	Next(ctx context.Context, token string) (models.ProgramState, error)

	// State returns the session's current state without touching the debugger.
	State(ctx context.Context, token string) (models.ProgramState, error)

	// SendRaw passes an MI command through and returns the parsed records.
	SendRaw(ctx context.Context, token, command, expected string) ([]mi.Record, error)

	// InspectVariable evaluates a variable's address and size in a frame.
	InspectVariable(ctx context.Context, token, name string, frame int) (models.VariableInfo, error)

	// Output returns the program's captured output lines.
	Output(ctx context.Context, token string) ([]string, error)

	// Memory returns the session's heap snapshot.
	Memory(ctx context.Context, token string) (models.HeapSnapshot, error)

	// CloseSession shuts a session down.
	CloseSession(ctx context.Context, token string) error

	// Sessions lists the live sessions.
	Sessions(ctx context.Context) ([]store.SessionSummary, error)

	// StreamUpdates subscribes to session updates until ctx is done.
	StreamUpdates(ctx context.Context) (<-chan store.Update, error)

	// FollowOutput streams a session's output lines as the program writes them.
	FollowOutput(ctx context.Context, token string) (<-chan string, error)

	// GetConfig returns the configuration the daemon runs with.
	GetConfig(ctx context.Context) (*server.RunningConfig, error)

	// IsRunning returns true if the daemon is available and responding.
	IsRunning() bool

	// Close cleans up any resources used by the client.
	Close() error
}
