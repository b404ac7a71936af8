package stepper

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/grovetools/orion/tui"
)

// Run starts the stepper full screen and blocks until the user quits. A
// session the stepper created is closed on the way out.
func Run(opts Options) error {
	tui.InitializeTUI()

	final, err := tea.NewProgram(New(opts), tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("stepper failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return nil
	}
	m.cancel()
	if m.created && m.token != "" {
		if err := opts.Client.CloseSession(context.Background(), m.token); err != nil {
			m.logger.WithError(err).Warn("Failed to close session")
		}
	}
	return nil
}
