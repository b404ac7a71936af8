package mi

import (
	"github.com/grovetools/orion/pkg/models"
	"github.com/mitchellh/mapstructure"
)

// Payload is the typed form of a record's result list. The concrete type is
// one of StoppedPayload, BreakpointPayload, StackPayload, VariablesPayload,
// ValuePayload, ErrorPayload or Unrecognized.
type Payload interface {
	Kind() string
}

// StoppedPayload is carried by *stopped async records.
type StoppedPayload struct {
	Reason   string            `mapstructure:"reason"`
	Frame    *models.FrameInfo `mapstructure:"frame"`
	ThreadID string            `mapstructure:"thread-id"`
	ExitCode string            `mapstructure:"exit-code"`
	Signal   string            `mapstructure:"signal-name"`
}

func (StoppedPayload) Kind() string { return "stopped" }

// Breakpoint describes a breakpoint as reported by -break-insert.
type Breakpoint struct {
	Number   string `mapstructure:"number"`
	Type     string `mapstructure:"type"`
	Function string `mapstructure:"func"`
	File     string `mapstructure:"file"`
	FullPath string `mapstructure:"fullname"`
	Line     *int   `mapstructure:"line"`
}

// BreakpointPayload is carried by ^done records answering a breakpoint command.
type BreakpointPayload struct {
	Breakpoint Breakpoint `mapstructure:"bkpt"`
}

func (BreakpointPayload) Kind() string { return "bkpt" }

// StackPayload is the answer to -stack-list-frames.
type StackPayload struct {
	Frames []models.FrameInfo `mapstructure:"stack"`
}

func (StackPayload) Kind() string { return "stack" }

// VariableEntry is one element of a -stack-list-variables answer. Type is only
// present for --simple-values listings, Value is absent for aggregates there.
type VariableEntry struct {
	Name  string  `mapstructure:"name"`
	Value *string `mapstructure:"value"`
	Type  *string `mapstructure:"type"`
}

// VariablesPayload is the answer to -stack-list-variables.
type VariablesPayload struct {
	Variables []VariableEntry `mapstructure:"variables"`
}

func (VariablesPayload) Kind() string { return "variables" }

// ValuePayload is the answer to -data-evaluate-expression.
type ValuePayload struct {
	Value string `mapstructure:"value"`
}

func (ValuePayload) Kind() string { return "value" }

// ErrorPayload is carried by ^error records.
type ErrorPayload struct {
	Msg  string `mapstructure:"msg"`
	Code string `mapstructure:"code"`
}

func (ErrorPayload) Kind() string { return "error" }

// Unrecognized holds anything that does not match a known shape. Fields is set
// for tuple payloads, Text for stream and output records.
type Unrecognized struct {
	Fields map[string]any
	Text   string
}

func (Unrecognized) Kind() string { return "unrecognized" }

// Decode maps a record's class and generic payload onto a typed variant.
// Shapes that fail to decode fall back to Unrecognized.
func Decode(message string, raw any) Payload {
	fields, ok := raw.(map[string]any)
	if !ok {
		text, _ := raw.(string)
		return Unrecognized{Text: text}
	}

	var target Payload
	switch {
	case message == ClassStopped:
		target = &StoppedPayload{}
	case message == ClassError:
		target = &ErrorPayload{}
	case has(fields, "bkpt"):
		target = &BreakpointPayload{}
	case has(fields, "stack"):
		target = &StackPayload{}
	case has(fields, "variables"):
		target = &VariablesPayload{}
	case has(fields, "value"):
		target = &ValuePayload{}
	default:
		return Unrecognized{Fields: fields}
	}

	if err := decodeWeak(fields, target); err != nil {
		return Unrecognized{Fields: fields}
	}

	switch p := target.(type) {
	case *StoppedPayload:
		return *p
	case *ErrorPayload:
		return *p
	case *BreakpointPayload:
		return *p
	case *StackPayload:
		return *p
	case *VariablesPayload:
		return *p
	case *ValuePayload:
		return *p
	}
	return Unrecognized{Fields: fields}
}

func has(fields map[string]any, key string) bool {
	_, ok := fields[key]
	return ok
}

// decodeWeak decodes MI values, which are always strings, into typed fields.
func decodeWeak(input map[string]any, output any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           output,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
