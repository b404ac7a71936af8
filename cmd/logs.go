package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/internal/daemon/watcher"
	"github.com/grovetools/orion/pkg/logging/logutil"
	"github.com/spf13/cobra"
)

// NewLogsCmd returns the command showing daemon logs.
func NewLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon's log",
		Long: `Print the newest log file written by the daemon, or the file configured
under logging.file.path.

Examples:
  orion logs --tail 50
  orion logs -f`,
		Args: cobra.NoArgs,
		RunE: runLogs,
	}
	cmd.Flags().BoolP("follow", "f", false, "Follow log output")
	cmd.Flags().Int("tail", -1, "Number of lines to show from the end of the log (default: all)")
	cmd.Flags().String("component", daemonComponent, "Component whose log to show")
	return cmd
}

func runLogs(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, "orion")
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}
	component, _ := cmd.Flags().GetString("component")
	follow, _ := cmd.Flags().GetBool("follow")
	tailN, _ := cmd.Flags().GetInt("tail")

	logFile, logsDir, err := logutil.FindLogFile(cfg, component)
	if err != nil {
		return fmt.Errorf("no %s log in %s: %w", component, logsDir, err)
	}
	logger.WithField("file", logFile).Debug("Showing log")

	out := cmd.OutOrStdout()
	lines, err := lastLines(logFile, tailN)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if !follow {
		return nil
	}

	appended, err := watcher.FollowFile(cmd.Context(), logFile, io.SeekEnd, logger)
	if err != nil {
		return err
	}
	for line := range appended {
		fmt.Fprintln(out, line)
	}
	return nil
}

// lastLines returns the final n lines of path, or all of them when n < 0.
func lastLines(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n >= 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	return lines, nil
}
