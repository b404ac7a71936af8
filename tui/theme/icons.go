package theme

import (
	"os"

	"github.com/grovetools/orion/config"
)

// Nerd Font Icons
const (
	nerdIconSuccess = "󰄬" // md-check
	nerdIconError   = "" // cod-error
	nerdIconWarning = "" // fa-warning
	nerdIconRunning = "" // fa-refresh
	nerdIconBullet  = "" // oct-dot_fill
	nerdIconFrame   = "" // cod-debug_stackframe
	nerdIconCurrent = "" // fa-circle
)

// ASCII Icons
const (
	asciiIconSuccess = "✓"
	asciiIconError   = "✗"
	asciiIconWarning = "⚠"
	asciiIconRunning = "◐"
	asciiIconBullet  = "•"
	asciiIconFrame   = "#"
	asciiIconCurrent = ">"
)

// Public Icon Variables
var (
	IconSuccess string
	IconError   string
	IconWarning string
	IconRunning string
	IconBullet  string
	IconFrame   string
	IconCurrent string
)

// init determines which icon set to use
func init() {
	setIcons(useASCIIIcons())
}

func useASCIIIcons() bool {
	if icons := os.Getenv("ORION_ICONS"); icons != "" {
		return icons == "ascii"
	}
	cfg, err := config.LoadDefault()
	if err != nil || cfg == nil {
		return false
	}
	var tuiCfg struct {
		Icons string `yaml:"icons"`
	}
	if err := cfg.UnmarshalExtension("tui", &tuiCfg); err != nil {
		return false
	}
	return tuiCfg.Icons == "ascii"
}

func setIcons(ascii bool) {
	if ascii {
		IconSuccess = asciiIconSuccess
		IconError = asciiIconError
		IconWarning = asciiIconWarning
		IconRunning = asciiIconRunning
		IconBullet = asciiIconBullet
		IconFrame = asciiIconFrame
		IconCurrent = asciiIconCurrent
		return
	}
	IconSuccess = nerdIconSuccess
	IconError = nerdIconError
	IconWarning = nerdIconWarning
	IconRunning = nerdIconRunning
	IconBullet = nerdIconBullet
	IconFrame = nerdIconFrame
	IconCurrent = nerdIconCurrent
}
