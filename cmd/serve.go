package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/orion/cli"
	"github.com/grovetools/orion/internal/daemon/pidfile"
	"github.com/grovetools/orion/internal/daemon/server"
	"github.com/grovetools/orion/internal/daemon/watcher"
	"github.com/grovetools/orion/pkg/daemon"
	"github.com/grovetools/orion/pkg/paths"
	"github.com/grovetools/orion/pkg/process"
	"github.com/grovetools/orion/version"
	"github.com/spf13/cobra"
)

// daemonComponent names the daemon's logger and log files.
const daemonComponent = "orion-daemon"

// NewServeCmd returns the command running the daemon in the foreground.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the debug session daemon",
		Long: `Run the orion daemon in the foreground. Each session owns a gdb
process and a work directory; clients drive sessions over HTTP.

The daemon listens on a unix socket when one is configured (server.socket or
--socket), otherwise on the TCP address from server.listen.

Examples:
  orion serve
  orion serve --listen 0.0.0.0:5000
  orion serve --socket /tmp/orion.sock --timing-log timing.csv`,
		RunE: runServe,
	}

	cmd.Flags().String("listen", "", "TCP address to listen on")
	cmd.Flags().String("socket", "", "Unix socket path (takes precedence over --listen)")
	cmd.Flags().String("static", "", "Directory served under /static/")
	cmd.Flags().String("timing-log", "", "CSV file receiving one row per debugger command")
	cmd.Flags().Bool("no-watch", false, "Do not publish heap_changed updates")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := cli.GetLogger(cmd, daemonComponent)
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("listen"); v != "" {
		cfg.Server.Listen = v
		cfg.Server.Socket = ""
	}
	if v, _ := cmd.Flags().GetString("socket"); v != "" {
		cfg.Server.Socket = v
	}
	if v, _ := cmd.Flags().GetString("static"); v != "" {
		cfg.Server.StaticDir = v
	}
	if v, _ := cmd.Flags().GetString("timing-log"); v != "" {
		cfg.TimingLog = v
	}
	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		off := false
		cfg.Server.WatchHeap = &off
	}

	endpoint := cfg.Server.Socket
	if endpoint == "" {
		endpoint = "tcp://" + cfg.Server.Listen
	}
	pidPath := paths.PidFilePath()
	if err := pidfile.Acquire(pidPath, endpoint); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer func() {
		if err := pidfile.Release(pidPath); err != nil && !os.IsNotExist(err) {
			logger.WithError(err).Error("Failed to release pidfile")
		}
	}()

	eng, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Store().Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Server.WatchHeap == nil || *cfg.Server.WatchHeap {
		hw, err := watcher.NewHeapWatcher(eng.Store(), watcher.DefaultDebounce, logger.WithField("component", "watcher"))
		if err != nil {
			logger.WithError(err).Warn("Heap watcher unavailable")
		} else {
			go hw.Start(ctx)
		}
	}

	srv := server.New(logger)
	srv.SetEngine(eng)
	srv.SetRunningConfig(&server.RunningConfig{
		Config:    cfg,
		Version:   version.GetInfo().Version,
		StartedAt: time.Now(),
	})

	go func() {
		<-ctx.Done()
		logger.Info("Received stop signal")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown error")
		}
	}()

	logger.WithField("pid", os.Getpid()).Info("Starting daemon")
	if cfg.Server.Socket != "" {
		err = srv.ListenAndServe(cfg.Server.Socket)
	} else {
		err = srv.ListenAndServeTCP(cfg.Server.Listen)
	}
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// NewStopCmd returns the command stopping a running daemon.
func NewStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, rec, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error checking status: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}

			grace, _ := cmd.Flags().GetDuration("grace")
			if err := process.Terminate(rec.PID, grace); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped daemon (PID %d)\n", rec.PID)
			return nil
		},
	}
	cmd.Flags().Duration("grace", 10*time.Second, "How long to wait for sessions to close before killing")
	return cmd
}

// NewStatusCmd returns the command reporting whether the daemon runs.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			running, rec, err := pidfile.IsRunning(paths.PidFilePath())
			if err != nil {
				return fmt.Errorf("error: %w", err)
			}
			if !running {
				fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
				return errSilentExit
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Running (PID: %d)\n", rec.PID)
			if rec.Endpoint != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Endpoint: %s\n", rec.Endpoint)
			}

			client, err := daemon.Connect(cfg)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not answering on its configured address")
				return errSilentExit
			}
			defer client.Close()

			sessions, err := client.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sessions: %d\n", len(sessions))

			if running, err := client.GetConfig(cmd.Context()); err == nil && !version.Compatible(running.Version) {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon version %s differs from client %s; restart with 'orion stop && orion serve'\n",
					running.Version, version.Version)
			}
			return nil
		},
	}
}
