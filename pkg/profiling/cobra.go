package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/grovetools/orion/logging"
	"github.com/spf13/cobra"
)

// CobraProfiler wires pprof capture and the timing table into a command tree.
type CobraProfiler struct {
	cpuProfileFile *os.File
	cpuProfilePath string
	memProfilePath string
	timing         bool
	profiler       *Profiler
}

// NewCobraProfiler creates a profiler bound to the global timing table.
func NewCobraProfiler() *CobraProfiler {
	return &CobraProfiler{profiler: defaultProfiler}
}

// AddFlags registers the profiling flags as persistent flags of cmd.
func (p *CobraProfiler) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&p.cpuProfilePath, "cpu-profile", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&p.memProfilePath, "mem-profile", "", "Write memory profile to file")
	cmd.PersistentFlags().BoolVar(&p.timing, "timing", false, "Print per-operation timings (compile, gdb commands, steps) on exit")
}

// PreRun is a PersistentPreRunE hook.
func (p *CobraProfiler) PreRun(cmd *cobra.Command, args []string) error {
	if p.timing {
		p.profiler.Enable()
	}

	if p.cpuProfilePath != "" {
		f, err := os.Create(p.cpuProfilePath)
		if err != nil {
			return fmt.Errorf("could not create CPU profile: %w", err)
		}
		p.cpuProfileFile = f
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			p.cpuProfileFile = nil
			return fmt.Errorf("could not start CPU profile: %w", err)
		}
	}
	return nil
}

// PostRun is a PersistentPostRun hook. Reports go to the command's stderr.
func (p *CobraProfiler) PostRun(cmd *cobra.Command, args []string) {
	out := logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr())

	if p.cpuProfileFile != nil {
		pprof.StopCPUProfile()
		_ = p.cpuProfileFile.Close()
		p.cpuProfileFile = nil
		out.Path("CPU profile", p.cpuProfilePath)
	}

	if p.memProfilePath != "" {
		if err := writeHeapProfile(p.memProfilePath); err != nil {
			out.ErrorPretty("could not write memory profile", err)
		} else {
			out.Path("Memory profile", p.memProfilePath)
		}
	}

	if p.timing {
		p.profiler.Summarize(cmd.ErrOrStderr())
	}
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.GC()
	return pprof.WriteHeapProfile(f)
}
