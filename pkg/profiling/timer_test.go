package profiling

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilerDisabledRecordsNothing(t *testing.T) {
	p := NewProfiler()
	p.Start("step").Stop()

	var buf bytes.Buffer
	p.Summarize(&buf)
	assert.Empty(t, buf.String())
}

func TestProfilerAggregatesByName(t *testing.T) {
	p := NewProfiler()
	clock := time.Unix(0, 0)
	p.now = func() time.Time { return clock }
	p.Enable()

	step := p.Start("step")
	clock = clock.Add(2 * time.Millisecond)
	step.Stop()
	step.Stop()

	next := p.Start("next")
	clock = clock.Add(6 * time.Millisecond)
	next.Stop()

	step = p.Start("step")
	clock = clock.Add(2 * time.Millisecond)
	step.Stop()

	assert.Equal(t, 2, p.stats["step"].count)
	assert.Equal(t, 4*time.Millisecond, p.stats["step"].total)
	assert.Equal(t, 6*time.Millisecond, p.stats["next"].max)

	var buf bytes.Buffer
	p.Summarize(&buf)
	out := buf.String()
	assert.Contains(t, out, "Timing Profile (10ms)")
	assert.Contains(t, out, "60.0%")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("step")), bytes.Index(buf.Bytes(), []byte("next")))
}

func TestCobraProfilerTiming(t *testing.T) {
	p := &CobraProfiler{profiler: NewProfiler()}
	cmd := &cobra.Command{Use: "orion", Run: func(*cobra.Command, []string) {}}
	p.AddFlags(cmd)
	require.NoError(t, cmd.PersistentFlags().Set("timing", "true"))

	var stderr bytes.Buffer
	cmd.SetErr(&stderr)
	require.NoError(t, p.PreRun(cmd, nil))
	p.profiler.Start("compile").Stop()
	p.PostRun(cmd, nil)

	assert.Contains(t, stderr.String(), "Timing Profile")
	assert.Contains(t, stderr.String(), "compile")
}
