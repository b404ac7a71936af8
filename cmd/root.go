// Package cmd implements the orion command line.
package cmd

import (
	stderrors "errors"
	"os"

	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/pkg/profiling"
	"github.com/spf13/cobra"
)

// sessionEnv names the variable supplying the default --session.
const sessionEnv = "ORION_SESSION"

// errSilentExit makes the process exit non-zero without an error message.
var errSilentExit = stderrors.New("silent exit")

// IsSilentExit reports whether err only carries an exit status.
func IsSilentExit(err error) bool {
	return stderrors.Is(err, errSilentExit)
}

// clientFactory connects to the daemon for commands that drive sessions.
var clientFactory = func(cmd *cobra.Command) (daemon.Client, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	client, err := daemon.Connect(cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// NewRootCmd builds the orion command tree.
func NewRootCmd() *cobra.Command {
	root := cli.NewStandardCommand("orion", "Drive gdb debug sessions and follow their program state")
	root.Long = `orion runs C++ programs under gdb/MI and keeps a structured view of each
debug session: execution state, current line, stack frames with their
variables, the heap snapshot and the captured program output.

Start the daemon with 'orion serve', then create a session and step it
from the command line, the terminal UI or any HTTP client.

Examples:
  orion serve
  export ORION_SESSION=$(orion session start)
  orion load main.cpp
  orion step
  orion state --json`

	profiler := profiling.NewCobraProfiler()
	profiler.AddFlags(root)
	root.PersistentPreRunE = profiler.PreRun
	root.PersistentPostRun = profiler.PostRun

	root.AddCommand(
		NewServeCmd(),
		NewStopCmd(),
		NewStatusCmd(),
		NewSessionCmd(),
		NewLoadCmd(),
		NewStepCmd(),
		NewNextCmd(),
		NewStateCmd(),
		NewCommandCmd(),
		NewVarCmd(),
		NewOutputCmd(),
		NewMemoryCmd(),
		NewConfigCmd(),
		NewPathsCmd(),
		NewLogsCmd(),
		NewTUICmd(),
		cli.NewVersionCommand("orion"),
	)

	cli.ApplyStyledHelpRecursive(root)
	return root
}

// addSessionFlag registers --session on a command driving one session.
func addSessionFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("session", "s", "", "Session token (default: $"+sessionEnv+")")
}

// sessionToken resolves the session a command targets.
func sessionToken(cmd *cobra.Command) (string, error) {
	token, _ := cmd.Flags().GetString("session")
	if token == "" {
		token = os.Getenv(sessionEnv)
	}
	if token == "" {
		return "", errors.InvalidInput("no session given; pass --session or set " + sessionEnv)
	}
	return token, nil
}

// withClient runs fn against a daemon client that is closed afterwards.
func withClient(cmd *cobra.Command, fn func(daemon.Client) error) error {
	client, err := clientFactory(cmd)
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

// withSession is withClient for commands targeting one session.
func withSession(cmd *cobra.Command, fn func(client daemon.Client, token string) error) error {
	token, err := sessionToken(cmd)
	if err != nil {
		return err
	}
	return withClient(cmd, func(client daemon.Client) error {
		return fn(client, token)
	})
}
