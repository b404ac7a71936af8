// Package mi parses gdb/MI output lines into records and decodes their
// payloads into typed variants.
package mi

import "encoding/json"

// RecordType classifies an MI output line by its prefix character.
type RecordType string

const (
	TypeResult  RecordType = "result"  // ^
	TypeNotify  RecordType = "notify"  // * and =
	TypeStatus  RecordType = "status"  // +
	TypeConsole RecordType = "console" // ~
	TypeTarget  RecordType = "target"  // @
	TypeLog     RecordType = "log"     // &
	TypeOutput  RecordType = "output"  // anything else
)

// Well-known result and async classes.
const (
	ClassDone    = "done"
	ClassRunning = "running"
	ClassStopped = "stopped"
	ClassError   = "error"
	ClassExit    = "exit"
)

// Record is one parsed line of debugger output.
type Record struct {
	Type    RecordType
	Message string
	Token   *int
	Stream  string

	// Payload is the typed decoding of Raw; never nil after parsing.
	Payload Payload

	// Raw is the generic decoded MI value: map[string]any for result and
	// async records, string for stream and output records, nil when absent.
	Raw any
}

// IsResult reports whether the record is a result record of the given class.
func (r Record) IsResult(class string) bool {
	return r.Type == TypeResult && r.Message == class
}

// Failed reports whether the record is a result record ending a command unsuccessfully.
func (r Record) Failed() bool {
	return r.IsResult(ClassError) || r.IsResult(ClassExit)
}

type recordJSON struct {
	Type    RecordType `json:"type"`
	Message *string    `json:"message"`
	Payload any        `json:"payload"`
	Token   *int       `json:"token"`
	Stream  string     `json:"stream"`
}

// MarshalJSON renders the record in the form raw-command callers consume.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Type:    r.Type,
		Payload: r.Raw,
		Token:   r.Token,
		Stream:  r.Stream,
	}
	if r.Message != "" {
		msg := r.Message
		out.Message = &msg
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a record and re-derives its typed payload.
func (r *Record) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = Record{
		Type:   in.Type,
		Token:  in.Token,
		Stream: in.Stream,
		Raw:    in.Payload,
	}
	if in.Message != nil {
		r.Message = *in.Message
	}
	r.Payload = Decode(r.Message, r.Raw)
	return nil
}

// Find returns the payload of the last record whose payload has type T. In
// a command response that is the terminal result record.
func Find[T Payload](recs []Record) (T, bool) {
	for i := len(recs) - 1; i >= 0; i-- {
		if p, ok := recs[i].Payload.(T); ok {
			return p, true
		}
	}
	var zero T
	return zero, false
}
