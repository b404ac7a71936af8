package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/grovetools/orion/pkg/mi"
)

// Response is one scripted answer of a FakeChannel.
type Response struct {
	Records []mi.Record
	Err     error
}

// FakeChannel is an in-memory debugger channel answering commands from a
// script. Each command has a queue of responses; the last one repeats once
// the queue is drained. Unscripted commands answer ^done.
type FakeChannel struct {
	mu       sync.Mutex
	scripts  map[string][]Response
	sent     []string
	closed   int
	CloseErr error
	OnSend   func(command string)
}

// NewFakeChannel creates an empty FakeChannel.
func NewFakeChannel() *FakeChannel {
	return &FakeChannel{scripts: make(map[string][]Response)}
}

// On queues a response to command, given as MI output lines.
func (f *FakeChannel) On(command string, lines ...string) *FakeChannel {
	return f.OnResponse(command, Response{Records: MI(lines...)})
}

// OnError queues an error answer to command.
func (f *FakeChannel) OnError(command string, err error) *FakeChannel {
	return f.OnResponse(command, Response{Err: err})
}

// OnResponse queues resp as an answer to command.
func (f *FakeChannel) OnResponse(command string, resp Response) *FakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[command] = append(f.scripts[command], resp)
	return f
}

// Reset drops every response queued for command.
func (f *FakeChannel) Reset(command string) *FakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scripts, command)
	return f
}

// Send implements gdb.Channel.
func (f *FakeChannel) Send(ctx context.Context, command, expected string) ([]mi.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.sent = append(f.sent, command)
	hook := f.OnSend
	var resp Response
	queue, ok := f.scripts[command]
	switch {
	case !ok:
		resp = Response{Records: MI("^done")}
	case len(queue) > 1:
		resp = queue[0]
		f.scripts[command] = queue[1:]
	default:
		resp = queue[0]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	return append([]mi.Record(nil), resp.Records...), resp.Err
}

// Close implements gdb.Channel.
func (f *FakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return f.CloseErr
}

// Sent returns every command sent so far, in order.
func (f *FakeChannel) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// SentWithPrefix returns the sent commands starting with prefix.
func (f *FakeChannel) SentWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Sent() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Closed returns how many times Close was called.
func (f *FakeChannel) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// MI parses MI output lines into records.
func MI(lines ...string) []mi.Record {
	return mi.ParseOutput(strings.Join(lines, "\n"))
}
