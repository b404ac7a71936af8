package profiling

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"text/tabwriter"
	"time"
)

// Stopper ends a timed operation.
type Stopper interface {
	Stop()
}

// stat accumulates every run of one named operation.
type stat struct {
	count int
	total time.Duration
	max   time.Duration
	first time.Time
}

// Profiler aggregates operation timings by name. Sessions run concurrently,
// so operations are tallied independently rather than nested.
type Profiler struct {
	mu      sync.Mutex
	enabled bool
	started time.Time
	stats   map[string]*stat
	now     func() time.Time
}

// NewProfiler returns a disabled profiler.
func NewProfiler() *Profiler {
	return &Profiler{stats: make(map[string]*stat), now: time.Now}
}

var defaultProfiler = NewProfiler()

// Enable turns on the global profiler.
func Enable() {
	defaultProfiler.Enable()
}

// Start times an operation on the global profiler.
func Start(name string) Stopper {
	return defaultProfiler.Start(name)
}

// Summarize writes the global profiler's table to w.
func Summarize(w io.Writer) {
	defaultProfiler.Summarize(w)
}

// Enable starts collecting. Calling it again keeps what was collected.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled {
		return
	}
	p.enabled = true
	p.started = p.now()
}

// Enabled reports whether timings are collected.
func (p *Profiler) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Start begins timing name. The returned Stopper may be called once.
func (p *Profiler) Start(name string) Stopper {
	if !p.Enabled() {
		return noopStopper{}
	}
	return &span{profiler: p, name: name, start: p.now()}
}

func (p *Profiler) record(name string, start time.Time, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.stats[name]
	if !ok {
		s = &stat{first: start}
		p.stats[name] = s
	}
	s.count++
	s.total += d
	s.max = max(s.max, d)
}

// Summarize writes one row per operation, ordered by first use, with its
// share of the wall time since Enable.
func (p *Profiler) Summarize(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || len(p.stats) == 0 {
		return
	}

	wall := p.now().Sub(p.started)
	names := make([]string, 0, len(p.stats))
	for name := range p.stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return p.stats[names[i]].first.Before(p.stats[names[j]].first)
	})

	fmt.Fprintf(w, "\n--- Timing Profile (%v) ---\n", wall.Round(100*time.Microsecond))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tCOUNT\tTOTAL\tMAX\tSHARE")
	for _, name := range names {
		s := p.stats[name]
		share := 0.0
		if wall > 0 {
			share = float64(s.total) / float64(wall) * 100
		}
		fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%.1f%%\n", name, s.count,
			s.total.Round(100*time.Microsecond), s.max.Round(100*time.Microsecond), share)
	}
	_ = tw.Flush()
}

type span struct {
	profiler *Profiler
	name     string
	start    time.Time
	once     sync.Once
}

func (s *span) Stop() {
	s.once.Do(func() {
		s.profiler.record(s.name, s.start, s.profiler.now().Sub(s.start))
	})
}

type noopStopper struct{}

func (noopStopper) Stop() {}
