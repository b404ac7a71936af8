package cmd

import (
	"github.com/grovetools/orion/command"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/internal/build"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/pkg/gdb"
	"github.com/grovetools/orion/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// gdbOptions maps the gdb section onto subprocess options.
func gdbOptions(cfg *config.Config) gdb.Options {
	return gdb.Options{
		Path:                   cfg.GDB.Path,
		Args:                   cfg.GDB.Args,
		CommandTimeout:         cfg.GDB.CommandTimeout.Std(),
		ExitTimeout:            cfg.GDB.ExitTimeout.Std(),
		MaxConsecutiveTimeouts: cfg.GDB.MaxConsecutiveTimeouts,
	}
}

// buildEngine assembles the engine and its store from cfg. The store must be
// closed by the caller.
func buildEngine(cfg *config.Config, logger *logrus.Entry) (*engine.Engine, error) {
	timer := profiling.NewCommandTimer(cfg.TimingLog)
	if timer.Enabled() {
		logger.WithField("path", timer.Path()).Info("Timing log enabled")
	}

	builder := command.NewSafeBuilder()
	compiler, err := build.New(cfg.Compiler, builder, logger.WithField("component", "compiler"))
	if err != nil {
		return nil, err
	}

	spawn := gdb.NewSpawner(gdbOptions(cfg), builder.Executor(), timer, logger.WithField("component", "gdb"))
	workdirs := workdir.NewManager(cfg.Workdir, logger)
	st := store.New(workdirs, spawn, logger)

	logger.WithField("root", workdirs.Root()).Debug("Session work directories")
	return engine.New(st, compiler, engine.OptionsFromConfig(cfg), timer, logger), nil
}
