package gdb

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/profiling"
	"github.com/sirupsen/logrus"
)

// Process is a Channel backed by a gdb subprocess. A single reader goroutine
// parses stdout into a queue; Send consumes the queue under the send lock.
// Each command is written with a fresh numeric token, and only the result
// record echoing that token answers it.
type Process struct {
	opts   Options
	logger *logrus.Entry
	timer  *profiling.CommandTimer
	label  string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *io.PipeWriter

	mu       sync.Mutex
	closed   bool
	failed   bool
	timeouts int
	seq      int

	qmu     sync.Mutex
	queue   []mi.Record
	signal  chan struct{}
	done    chan struct{}
	readErr error
}

// Start launches cmd and attaches a channel to its standard streams.
func Start(cmd *exec.Cmd, opts Options, timer *profiling.CommandTimer, logger *logrus.Entry) (*Process, error) {
	opts = opts.withDefaults()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}
	stderr := logger.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr
	cmd.WaitDelay = opts.ExitTimeout

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stderr.Close()
		return nil, errors.SubprocessUnavailable("failed to start "+opts.Path, err)
	}

	p := attach(stdin, stdout, opts, timer, logger)
	p.cmd = cmd
	p.stderr = stderr
	logger.WithField("pid", cmd.Process.Pid).Debug("Started debugger")
	return p, nil
}

func attach(stdin io.WriteCloser, stdout io.Reader, opts Options, timer *profiling.CommandTimer, logger *logrus.Entry) *Process {
	p := &Process{
		opts:   opts.withDefaults(),
		logger: logger,
		timer:  timer,
		stdin:  stdin,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if label, ok := logger.Data["session"].(string); ok {
		p.label = label
	}
	go p.readLoop(stdout)
	return p
}

func (p *Process) readLoop(stdout io.Reader) {
	defer close(p.done)

	reader := bufio.NewReader(stdout)
	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if rec, ok := mi.ParseLine(line); ok {
				p.qmu.Lock()
				p.queue = append(p.queue, rec)
				p.qmu.Unlock()
				select {
				case p.signal <- struct{}{}:
				default:
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				p.readErr = err
			}
			return
		}
	}
}

func (p *Process) drain() []mi.Record {
	p.qmu.Lock()
	defer p.qmu.Unlock()
	recs := p.queue
	p.queue = nil
	return recs
}

func (p *Process) requeue(recs []mi.Record) {
	if len(recs) == 0 {
		return
	}
	p.qmu.Lock()
	defer p.qmu.Unlock()
	p.queue = append(append([]mi.Record{}, recs...), p.queue...)
}

func (p *Process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Process) availableLocked() error {
	switch {
	case p.closed:
		return errors.SubprocessUnavailable("channel closed", nil)
	case p.failed:
		return errors.SubprocessUnavailable(
			fmt.Sprintf("%d consecutive command timeouts", p.timeouts), nil)
	case p.exited():
		return errors.SubprocessUnavailable("debugger exited", p.readErr)
	}
	return nil
}

// Send implements Channel.
func (p *Process) Send(ctx context.Context, command, expected string) ([]mi.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.availableLocked(); err != nil {
		return nil, err
	}

	timeout := p.opts.CommandTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	stop := p.timer.Start("gdb", p.label, command)
	defer stop.Stop()

	p.seq++
	resp := &response{token: p.seq, expected: expected}

	// Anything queued before the write belongs to an earlier command. Its
	// async and stream records are kept; its results are not.
	for _, rec := range p.drain() {
		if rec.Type == mi.TypeResult {
			p.discard(rec, command)
			continue
		}
		resp.recs = append(resp.recs, rec)
	}

	if _, err := fmt.Fprintf(p.stdin, "%d%s\n", resp.token, command); err != nil {
		return resp.recs, errors.SubprocessUnavailable("write to debugger failed", err)
	}
	p.logger.WithFields(logrus.Fields{"command": command, "token": resp.token}).Debug("Sent command")

	collect := func() bool {
		batch := p.drain()
		for i, rec := range batch {
			done, stale := resp.add(rec)
			if stale {
				p.discard(rec, command)
				continue
			}
			if done {
				p.requeue(batch[i+1:])
				return true
			}
		}
		return false
	}

	for {
		if collect() {
			p.timeouts = 0
			return resp.recs, nil
		}

		select {
		case <-p.signal:
		case <-p.done:
			if collect() {
				p.timeouts = 0
				return resp.recs, nil
			}
			return resp.recs, errors.SubprocessUnavailable("debugger exited during "+command, p.readErr)
		case <-ctx.Done():
			if collect() {
				p.timeouts = 0
				return resp.recs, nil
			}
			if ctx.Err() != context.DeadlineExceeded {
				return resp.recs, ctx.Err()
			}
			p.timeouts++
			p.logger.WithError(errors.TransportTimeout(command, expected, timeout)).
				WithField("consecutive", p.timeouts).
				Warn("Command timed out, returning partial response")
			if p.opts.MaxConsecutiveTimeouts > 0 && p.timeouts >= p.opts.MaxConsecutiveTimeouts {
				p.failed = true
			}
			return resp.recs, nil
		}
	}
}

// discard logs a result record that answers some earlier, timed out command.
func (p *Process) discard(rec mi.Record, during string) {
	entry := p.logger.WithFields(logrus.Fields{"message": rec.Message, "during": during})
	if rec.Token != nil {
		entry = entry.WithField("token", *rec.Token)
	}
	entry.Debug("Dropped stale result record")
}

// response gathers the records answering one tokened command.
type response struct {
	token    int
	expected string
	answered bool
	recs     []mi.Record
}

// add takes the next record read after the command was written. It reports
// done once the response is complete, and stale for result records that
// carry another token. Async records only end a response after the
// command's own result record has arrived.
func (r *response) add(rec mi.Record) (done, stale bool) {
	if rec.Type == mi.TypeResult {
		if rec.Token == nil || *rec.Token != r.token {
			return false, true
		}
		r.answered = true
	}
	r.recs = append(r.recs, rec)
	return r.answered && (rec.Message == r.expected || rec.Failed()), false
}

// Close implements Channel.
func (p *Process) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if !p.exited() {
		_, _ = io.WriteString(p.stdin, GdbExit+"\n")
	}
	_ = p.stdin.Close()

	exitTimer := time.NewTimer(p.opts.ExitTimeout)
	defer exitTimer.Stop()

	select {
	case <-p.done:
	case <-exitTimer.C:
		p.logger.Warn("Debugger did not exit in time, killing it")
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
	}

	var err error
	if p.cmd != nil {
		err = p.cmd.Wait()
		if _, ok := err.(*exec.ExitError); ok {
			err = nil
		}
	}
	if p.stderr != nil {
		_ = p.stderr.Close()
	}
	p.logger.Debug("Debugger closed")
	return err
}
