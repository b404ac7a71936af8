package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/internal/daemon/engine"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/pkg/models"
	"github.com/grovetools/orion/tui/components/stateview"
	"github.com/spf13/cobra"
)

// stateResult is the JSON shape of commands answering with program state.
type stateResult struct {
	SessionToken string              `json:"sessionToken"`
	ProgramState models.ProgramState `json:"programState"`
}

// NewLoadCmd returns the command compiling and starting a program.
func NewLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [file]",
		Short: "Compile a C++ source and run it to its first stop",
		Long: `Upload a C++ source file, compile it with debug information and run it
under gdb until the breakpoint on main. With --code the program text is
taken from the flag instead ("-" reads it from stdin).

Examples:
  orion load main.cpp -s 1
  orion load --code "$(cat main.cpp)"
  cat main.cpp | orion load --code -`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLoad,
	}
	addSessionFlag(cmd)
	cmd.Flags().String("code", "", "Program text to load instead of a file")
	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")
	if (len(args) == 0) == (code == "") {
		return errors.InvalidInput("give either a file or --code")
	}

	return withSession(cmd, func(client daemon.Client, token string) error {
		var (
			result engine.LoadResult
			err    error
		)
		switch {
		case len(args) == 1:
			f, openErr := os.Open(args[0])
			if openErr != nil {
				return fmt.Errorf("failed to open source: %w", openErr)
			}
			defer f.Close()
			result, err = client.LoadSource(cmd.Context(), token, filepath.Base(args[0]), f)
		case code == "-":
			result, err = client.LoadSource(cmd.Context(), token, engine.UploadName(token), cmd.InOrStdin())
		default:
			result, err = client.LoadCode(cmd.Context(), token, code)
		}
		if err != nil {
			return err
		}

		out := struct {
			SessionToken string              `json:"sessionToken"`
			Response     interface{}         `json:"response"`
			ProgramState models.ProgramState `json:"programState"`
		}{token, result.Records, result.State}
		return emit(cmd, out, func() string { return stateview.State(result.State) })
	})
}

// stateCommand builds step, next and state, which differ only in the call.
func stateCommand(use, short string, call func(daemon.Client, context.Context, string) (models.ProgramState, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(client daemon.Client, token string) error {
				st, err := call(client, cmd.Context(), token)
				if err != nil {
					return err
				}
				return emit(cmd, stateResult{SessionToken: token, ProgramState: st}, func() string {
					return stateview.State(st)
				})
			})
		},
	}
	addSessionFlag(cmd)
	return cmd
}

// NewStepCmd returns the step-into command.
func NewStepCmd() *cobra.Command {
	return stateCommand("step", "Step into the next source line", daemon.Client.Step)
}

// NewNextCmd returns the step-over command.
func NewNextCmd() *cobra.Command {
	return stateCommand("next", "Step over the next source line", daemon.Client.Next)
}

// NewStateCmd returns the command printing the cached state.
func NewStateCmd() *cobra.Command {
	return stateCommand("state", "Show the session's last known program state", daemon.Client.State)
}

// NewCommandCmd returns the raw MI passthrough command.
func NewCommandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "command -- <mi-command>...",
		Short: "Send a raw gdb/MI command",
		Long: `Send one gdb/MI command to the session's debugger and print the records
it answered with. Program state is not refreshed. Put the command after
"--" so its leading dash is not read as a flag.

Examples:
  orion command -- -data-evaluate-expression x
  orion command --expected stopped -- -exec-continue`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			expected, _ := cmd.Flags().GetString("expected")
			miCommand := strings.Join(args, " ")
			return withSession(cmd, func(client daemon.Client, token string) error {
				recs, err := client.SendRaw(cmd.Context(), token, miCommand, expected)
				if err != nil {
					return err
				}
				return emit(cmd, recs, func() string { return stateview.Records(recs) })
			})
		},
	}
	addSessionFlag(cmd)
	cmd.Flags().String("expected", "", "Record message that ends the command (default: done)")
	return cmd
}

// NewVarCmd returns the variable inspection command.
func NewVarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var <name>",
		Short: "Show a variable's address and size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frame, _ := cmd.Flags().GetInt("frame")
			return withSession(cmd, func(client daemon.Client, token string) error {
				info, err := client.InspectVariable(cmd.Context(), token, args[0], frame)
				if err != nil {
					return err
				}
				return emit(cmd, info, func() string { return stateview.Variable(info) })
			})
		},
	}
	addSessionFlag(cmd)
	cmd.Flags().Int("frame", 0, "Stack frame level")
	return cmd
}

// NewOutputCmd returns the command printing captured program output.
func NewOutputCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "output",
		Short: "Print the program's captured output",
		Long: `Print what the debugged program wrote to standard output. With --follow
new lines are printed as the program writes them until the session closes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			follow, _ := cmd.Flags().GetBool("follow")
			return withSession(cmd, func(client daemon.Client, token string) error {
				if follow {
					lines, err := client.FollowOutput(cmd.Context(), token)
					if err != nil {
						return err
					}
					for line := range lines {
						fmt.Fprintln(cmd.OutOrStdout(), line)
					}
					return nil
				}

				lines, err := client.Output(cmd.Context(), token)
				if err != nil {
					return err
				}
				return emit(cmd, map[string]interface{}{"sessionToken": token, "output": lines}, func() string {
					return stateview.Output(lines)
				})
			})
		},
	}
	addSessionFlag(cmd)
	cmd.Flags().BoolP("follow", "f", false, "Follow output as it is written")
	return cmd
}

// NewMemoryCmd returns the command printing the heap snapshot.
func NewMemoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Print the last heap snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(client daemon.Client, token string) error {
				heap, err := client.Memory(cmd.Context(), token)
				if err != nil {
					return err
				}
				return emit(cmd, map[string]interface{}{"sessionToken": token, "memory": heap}, func() string {
					return stateview.Heap(heap)
				})
			})
		},
	}
	addSessionFlag(cmd)
	return cmd
}
