package cmd

import (
	"strings"

	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/internal/workdir"
	"github.com/grovetools/orion/logging"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/pkg/paths"
	"github.com/spf13/cobra"
)

// PathsOutput lists the locations orion reads and writes.
type PathsOutput struct {
	ConfigDir  string `json:"config_dir"`
	StateDir   string `json:"state_dir"`
	CacheDir   string `json:"cache_dir"`
	RuntimeDir string `json:"runtime_dir"`
	LogDir     string `json:"log_dir"`
	WorkRoot   string `json:"work_root"`
	Socket     string `json:"socket"`
	PidFile    string `json:"pid_file"`
}

// NewPathsCmd returns the command printing orion's paths.
func NewPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the directories and files orion uses",
		Long: `Print the directories and files orion uses. Locations follow the XDG base
directory layout unless ORION_HOME is set, and the session work root and
socket honor the configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			out := PathsOutput{
				ConfigDir:  paths.ConfigDir(),
				StateDir:   paths.StateDir(),
				CacheDir:   paths.CacheDir(),
				RuntimeDir: paths.RuntimeDir(),
				LogDir:     paths.LogDir(),
				WorkRoot:   workdir.NewManager(cfg.Workdir, nil).Root(),
				Socket:     daemon.SocketPath(cfg),
				PidFile:    paths.PidFilePath(),
			}
			return emit(cmd, out, func() string {
				var b strings.Builder
				pretty := logging.NewPrettyLogger().WithWriter(&b)
				pretty.Path("config", out.ConfigDir)
				pretty.Path("state", out.StateDir)
				pretty.Path("cache", out.CacheDir)
				pretty.Path("runtime", out.RuntimeDir)
				pretty.Path("logs", out.LogDir)
				pretty.Path("sessions", out.WorkRoot)
				pretty.Path("socket", out.Socket)
				pretty.Path("pidfile", out.PidFile)
				return strings.TrimRight(b.String(), "\n")
			})
		},
	}
}
