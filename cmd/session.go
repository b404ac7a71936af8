package cmd

import (
	"fmt"
	"time"

	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/tui/components/stateview"
	"github.com/grovetools/orion/tui/components/table"
	"github.com/grovetools/orion/tui/theme"
	"github.com/spf13/cobra"
)

// NewSessionCmd returns the session management commands.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, list and close debug sessions",
	}
	cmd.AddCommand(newSessionStartCmd(), newSessionCloseCmd(), newSessionListCmd(), newSessionWatchCmd())
	return cmd
}

func newSessionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Create a session and print its token",
		Long: `Create a session with its own gdb process and work directory. The token
is printed alone on stdout so it can be captured by the shell.

Examples:
  export ORION_SESSION=$(orion session start)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(client daemon.Client) error {
				token, err := client.CreateSession(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, map[string]string{"sessionToken": token}, func() string { return token })
			})
		},
	}
}

func newSessionCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a session and remove its work directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(client daemon.Client, token string) error {
				if err := client.CloseSession(cmd.Context(), token); err != nil {
					return err
				}
				return emit(cmd, map[string]interface{}{"sessionToken": token, "closed": true}, func() string {
					return theme.DefaultTheme.Success.Render(theme.IconSuccess + " Closed session " + token)
				})
			})
		},
	}
	addSessionFlag(cmd)
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List live sessions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(client daemon.Client) error {
				sessions, err := client.Sessions(cmd.Context())
				if err != nil {
					return err
				}
				return emit(cmd, sessions, func() string { return renderSessions(sessions) })
			})
		},
	}
}

func renderSessions(sessions []store.SessionSummary) string {
	if len(sessions) == 0 {
		return theme.DefaultTheme.Muted.Render("No live sessions")
	}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		line := "-"
		if s.CurrentLine > 0 {
			line = fmt.Sprint(s.CurrentLine)
		}
		source := s.Source
		if source == "" {
			source = "-"
		}
		rows = append(rows, []string{
			s.Token,
			stateview.ExecState(s.ExecutionState),
			line,
			source,
			s.Created.Format(time.DateTime),
		})
	}
	return table.Render([]string{"TOKEN", "STATE", "LINE", "SOURCE", "CREATED"}, rows)
}

func newSessionWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print session updates as they happen",
		Long: `Print every update the daemon publishes: steps, created and closed
sessions and heap changes. With --json each update is printed as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(client daemon.Client) error {
				updates, err := client.StreamUpdates(cmd.Context())
				if err != nil {
					return err
				}
				for u := range updates {
					if err := emitUpdate(cmd, u); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func emitUpdate(cmd *cobra.Command, u store.Update) error {
	t := theme.DefaultTheme
	return emit(cmd, u, func() string {
		stamp := t.Muted.Render(time.Now().Format(time.TimeOnly))
		label := t.Bold.Render(string(u.Type))
		if u.Token == "" {
			return fmt.Sprintf("%s %s", stamp, label)
		}
		return fmt.Sprintf("%s %s session=%s", stamp, label, u.Token)
	})
}
