package engine

import (
	"github.com/grovetools/orion/pkg/mi"
	"github.com/grovetools/orion/pkg/models"
)

// Reconcile folds a command's records, in order, into st.
//
// A stopped record moves the current line to its frame and classifies its
// stop reason. A done record carrying a breakpoint with a line marks the
// program stopped there. A running record only matters before anything else
// is known. Once the program has exited its execution state never changes;
// the current line still may.
func Reconcile(st *models.ProgramState, recs []mi.Record) {
	for _, rec := range recs {
		switch p := rec.Payload.(type) {
		case mi.StoppedPayload:
			if rec.Message != mi.ClassStopped {
				continue
			}
			if p.Frame != nil && p.Frame.Line > 0 {
				st.CurrentLine = p.Frame.Line
			}
			if p.Reason != "" {
				setExecutionState(st, classifyStop(p.Reason))
			}
		case mi.BreakpointPayload:
			if rec.Message == mi.ClassDone && p.Breakpoint.Line != nil {
				st.CurrentLine = *p.Breakpoint.Line
				setExecutionState(st, models.StateStopped)
			}
		default:
			if rec.Message == mi.ClassRunning && st.ExecutionState == models.StateUnknown {
				st.ExecutionState = models.StateRunning
			}
		}
	}
}

// classifyStop maps a stop reason onto an execution state.
func classifyStop(reason string) models.ExecutionState {
	switch reason {
	case "exited-normally":
		return models.StateExitedNormally
	case "exited":
		return models.StateExited
	default:
		return models.StateStopped
	}
}

func setExecutionState(st *models.ProgramState, next models.ExecutionState) {
	if st.ExecutionState.IsTerminal() {
		return
	}
	st.ExecutionState = next
}
