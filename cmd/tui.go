package cmd

import (
	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/tui/stepper"
	"github.com/spf13/cobra"
)

// NewTUICmd returns the interactive stepper command.
func NewTUICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui [file]",
		Short: "Step a program interactively",
		Long: `Open the interactive stepper. With a file argument a new session is
created, the file is compiled and run to main, and the session is closed on
exit. With --session the stepper attaches to a live session and follows
steps made by other clients.

Without a running daemon the stepper runs its own in-process engine.

Examples:
  orion tui main.cpp
  orion tui -s 3`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTUI,
	}
	addSessionFlag(cmd)
	return cmd
}

func runTUI(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "orion-tui")
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	token, _ := cmd.Flags().GetString("session")
	opts := stepper.Options{
		Token:  token,
		Keys:   stepper.NewKeyMap(cfg),
		Logger: logger,
	}
	if len(args) == 1 {
		opts.SourcePath = args[0]
	}

	client, err := daemon.New(cfg, func() (daemon.Client, error) {
		if token != "" {
			return nil, daemon.ErrNotRunning
		}
		logger.Debug("Daemon not running, using an in-process engine")
		eng, err := buildEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return daemon.NewLocalClient(eng, logger), nil
	})
	if err != nil {
		return err
	}
	defer client.Close()

	opts.Client = client
	return stepper.Run(opts)
}
