package profiling

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// CommandTimer appends one CSV row per timed operation to a log file:
// start and end as fractional unix seconds, elapsed seconds, then free-form labels.
// A nil or zero-path CommandTimer records nothing.
type CommandTimer struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCommandTimer returns a timer writing to path. An empty path disables it.
func NewCommandTimer(path string) *CommandTimer {
	return &CommandTimer{path: path, now: time.Now}
}

// Enabled reports whether rows are being written.
func (t *CommandTimer) Enabled() bool {
	return t != nil && t.path != ""
}

// Path returns the CSV file path.
func (t *CommandTimer) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Start begins timing an operation. The returned Stopper writes the row and
// also closes a span in the hierarchical profiler when that is enabled.
func (t *CommandTimer) Start(labels ...string) Stopper {
	var inner Stopper = noopStopper{}
	if len(labels) > 0 {
		inner = Start(labels[len(labels)-1])
	}
	if !t.Enabled() {
		return inner
	}
	return &timedRow{timer: t, start: t.now(), labels: labels, inner: inner}
}

type timedRow struct {
	timer  *CommandTimer
	start  time.Time
	labels []string
	inner  Stopper
}

func (r *timedRow) Stop() {
	r.inner.Stop()
	end := r.timer.now()
	// The log is diagnostic; a failed write never affects the timed operation.
	_ = r.timer.write(r.start, end, r.labels)
}

func (t *CommandTimer) write(start, end time.Time, labels []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	row := []string{
		unixSeconds(start),
		unixSeconds(end),
		strconv.FormatFloat(end.Sub(start).Seconds(), 'f', 6, 64),
	}
	row = append(row, labels...)

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func unixSeconds(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}
