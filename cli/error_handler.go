package cli

import (
	"fmt"
	"io"

	"github.com/grovetools/orion/errors"
	"github.com/grovetools/orion/tui/theme"
	"github.com/spf13/cobra"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler writing to out.
func NewErrorHandler(out io.Writer, verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: out}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	prefix := theme.IconError + " "

	var orionErr *errors.OrionError
	if oe, ok := err.(*errors.OrionError); ok {
		orionErr = oe
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeSessionNotFound:
		fmt.Fprintf(h.Out, "%sSession not found. Run 'orion session list' to see live sessions.\n", prefix)

	case errors.ErrCodeSubprocessUnavailable:
		fmt.Fprintf(h.Out, "%sThe debugger is gone and its session was closed. Start a new session with 'orion session start'.\n", prefix)

	case errors.ErrCodeCompileFailed:
		fmt.Fprintf(h.Out, "%sCompilation failed.\n", prefix)
		if orionErr != nil {
			if diagnostics, ok := orionErr.Details["diagnostics"].(string); ok && diagnostics != "" {
				fmt.Fprintln(h.Out, diagnostics)
			}
		}

	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%sConfiguration not found. Run 'orion config show' to see the defaults in effect.\n", prefix)

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "%sInvalid configuration: %v\n", prefix, messageOf(err))

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "%s%v\n", prefix, messageOf(err))

	default:
		fmt.Fprintf(h.Out, "%sError: %v\n", prefix, err)
	}

	if h.Verbose && orionErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", orionErr.ToJSON())
	}
	return err
}

func messageOf(err error) string {
	if oe, ok := err.(*errors.OrionError); ok {
		return oe.Message
	}
	return err.Error()
}

// Report prints err for the command that failed. Usage mistakes caught by
// cobra carry no code and get a help hint; coded errors go through
// ErrorHandler.
func Report(cmd *cobra.Command, err error, verbose bool) {
	if errors.GetCode(err) == "" {
		PrintError(cmd, err)
		return
	}
	NewErrorHandler(cmd.ErrOrStderr(), verbose).Handle(err)
}
