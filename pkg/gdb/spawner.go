package gdb

import (
	"context"
	"path/filepath"

	"github.com/grovetools/orion/command"
	"github.com/grovetools/orion/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// Spawner starts a debugger whose working directory is dir.
type Spawner func(ctx context.Context, dir string) (Channel, error)

// NewSpawner returns the production Spawner. The process outlives ctx; ctx only
// guards the launch itself.
func NewSpawner(opts Options, executor command.Executor, timer *profiling.CommandTimer, logger *logrus.Entry) Spawner {
	opts = opts.withDefaults()
	return func(ctx context.Context, dir string) (Channel, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cmd := executor.Command(opts.Path, opts.Args...)
		cmd.Dir = dir
		return Start(cmd, opts, timer, logger.WithField("session", filepath.Base(dir)))
	}
}
