// Package models defines the program state shared by the engine, the daemon API
// and its clients.
package models

import (
	"bytes"
	"encoding/json"
)

// ExecutionState is the last known execution state of the debugged program.
type ExecutionState string

const (
	StateUnknown        ExecutionState = "unknown"
	StateRunning        ExecutionState = "running"
	StateStopped        ExecutionState = "stopped"
	StateExited         ExecutionState = "exited"
	StateExitedNormally ExecutionState = "exited-normally"
)

// IsTerminal reports whether no further execution state change is possible.
func (s ExecutionState) IsTerminal() bool {
	return s == StateExited || s == StateExitedNormally
}

// ProgramState is the per-session aggregate rebuilt by every step.
// Frames, Heap and Output are always replaced as a whole.
type ProgramState struct {
	ExecutionState ExecutionState `json:"execState"`
	CurrentLine    int            `json:"lineNum"`
	Frames         []Frame        `json:"frames"`
	Heap           HeapSnapshot   `json:"heap"`
	Output         []string       `json:"output"`
}

// NewProgramState returns an empty state in the unknown execution state.
func NewProgramState() *ProgramState {
	return &ProgramState{
		ExecutionState: StateUnknown,
		Frames:         []Frame{},
		Output:         []string{},
	}
}

// Clone returns a deep copy that shares nothing with the receiver.
func (p *ProgramState) Clone() ProgramState {
	out := ProgramState{
		ExecutionState: p.ExecutionState,
		CurrentLine:    p.CurrentLine,
		Frames:         make([]Frame, len(p.Frames)),
		Heap:           p.Heap.Clone(),
		Output:         append([]string{}, p.Output...),
	}
	for i, f := range p.Frames {
		out.Frames[i] = f.Clone()
	}
	return out
}

// Frame is one stack activation with its local variables.
type Frame struct {
	FrameInfo FrameInfo  `json:"frameInfo"`
	Variables []Variable `json:"variables"`
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	vars := make([]Variable, len(f.Variables))
	for i, v := range f.Variables {
		vars[i] = v.Clone()
	}
	return Frame{FrameInfo: f.FrameInfo, Variables: vars}
}

// FrameInfo mirrors the frame tuple reported by -stack-list-frames.
type FrameInfo struct {
	Address  string `json:"addr" mapstructure:"addr"`
	File     string `json:"file" mapstructure:"file"`
	FullPath string `json:"fullname" mapstructure:"fullname"`
	Function string `json:"func" mapstructure:"func"`
	Level    int    `json:"level" mapstructure:"level"`
	Line     int    `json:"line" mapstructure:"line"`
}

// Variable is a local variable merged from the value-rich and type-rich listings.
// Type, Address and Size stay nil when the debugger could not supply them.
type Variable struct {
	Name    string  `json:"name"`
	Value   string  `json:"value"`
	Type    *string `json:"type,omitempty"`
	Address *string `json:"address,omitempty"`
	Size    *string `json:"size,omitempty"`
}

// Clone returns a copy whose optional fields do not alias the receiver's.
func (v Variable) Clone() Variable {
	return Variable{
		Name:    v.Name,
		Value:   v.Value,
		Type:    cloneString(v.Type),
		Address: cloneString(v.Address),
		Size:    cloneString(v.Size),
	}
}

// VariableInfo is the answer to an ad hoc variable inspection. Address and
// Size are nil when the debugger could not evaluate them.
type VariableInfo struct {
	Name    string  `json:"name"`
	Frame   int     `json:"frame"`
	Address *string `json:"address"`
	Size    *string `json:"size"`
}

// HeapSnapshot holds the last successfully decoded heap description as raw JSON.
type HeapSnapshot json.RawMessage

// Clone copies the snapshot bytes.
func (h HeapSnapshot) Clone() HeapSnapshot {
	if h == nil {
		return nil
	}
	return append(HeapSnapshot{}, h...)
}

// IsEmpty reports whether no snapshot has been read yet.
func (h HeapSnapshot) IsEmpty() bool {
	return len(bytes.TrimSpace(h)) == 0
}

// MarshalJSON emits the snapshot verbatim, or an empty list before the first read.
func (h HeapSnapshot) MarshalJSON() ([]byte, error) {
	if h.IsEmpty() {
		return []byte("[]"), nil
	}
	return []byte(h), nil
}

// UnmarshalJSON stores the raw snapshot.
func (h *HeapSnapshot) UnmarshalJSON(data []byte) error {
	*h = append((*h)[:0], data...)
	return nil
}

// Ptr returns a pointer to a copy of s.
func Ptr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
