// Package scrollbar draws a vertical scrollbar beside a viewport.
package scrollbar

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/grovetools/orion/tui/theme"
)

const (
	thumb = "█"
	track = "░"
)

// Generate returns one scrollbar cell per line for a bar of the given height.
// Content that fits the viewport yields a blank bar.
func Generate(vp *viewport.Model, height int) []string {
	if height <= 0 {
		return []string{}
	}
	muted := theme.DefaultTheme.Muted
	bar := make([]string, height)

	totalLines := vp.TotalLineCount()
	if totalLines <= vp.Height {
		for i := range bar {
			bar[i] = " "
		}
		return bar
	}

	thumbSize := max(1, (height*vp.Height)/totalLines)
	percent := min(max(vp.ScrollPercent(), 0), 1)
	maxStart := height - thumbSize
	start := min(max(int(float64(maxStart)*percent+0.5), 0), maxStart)

	for i := range bar {
		if i >= start && i < start+thumbSize {
			bar[i] = muted.Render(thumb)
		} else {
			bar[i] = muted.Render(track)
		}
	}
	return bar
}

// Overlay returns the viewport's visible content with the scrollbar
// appended to each line.
func Overlay(vp *viewport.Model) string {
	lines := strings.Split(vp.View(), "\n")
	bar := Generate(vp, len(lines))
	for i := range lines {
		lines[i] += bar[i]
	}
	return strings.Join(lines, "\n")
}
