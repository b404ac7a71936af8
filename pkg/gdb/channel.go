// Package gdb drives a gdb subprocess over the MI command/response protocol.
package gdb

import (
	"context"
	"time"

	"github.com/grovetools/orion/pkg/mi"
)

// Channel is a command/response conversation with one debugger.
type Channel interface {
	// Send writes command and collects records until one whose message equals
	// expected arrives, an error or exit result arrives, or the timeout fires.
	// A timeout is not an error: the records received so far are returned.
	// Result records answering earlier commands never end or join the
	// response.
	Send(ctx context.Context, command, expected string) ([]mi.Record, error)

	// Close asks the debugger to exit and releases the subprocess. It is safe
	// to call more than once.
	Close() error
}

// Default timeouts.
const (
	DefaultCommandTimeout = 2 * time.Second
	DefaultStepTimeout    = 5 * time.Second
	DefaultExitTimeout    = time.Second
)

// Options configures a debugger subprocess and its channel.
type Options struct {
	Path string
	Args []string

	// CommandTimeout bounds a Send whose context carries no deadline.
	CommandTimeout time.Duration
	// ExitTimeout is how long Close waits after -gdb-exit before killing.
	ExitTimeout time.Duration
	// MaxConsecutiveTimeouts marks the channel failed after that many timed
	// out sends in a row. Zero never fails.
	MaxConsecutiveTimeouts int
}

// DefaultOptions returns options that run gdb from PATH in MI mode.
func DefaultOptions() Options {
	return Options{
		Path:           "gdb",
		Args:           []string{"--nx", "--quiet", "--interpreter=mi3"},
		CommandTimeout: DefaultCommandTimeout,
		ExitTimeout:    DefaultExitTimeout,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Path == "" {
		o.Path = d.Path
	}
	if o.Args == nil {
		o.Args = d.Args
	}
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = d.CommandTimeout
	}
	if o.ExitTimeout <= 0 {
		o.ExitTimeout = d.ExitTimeout
	}
	return o
}
