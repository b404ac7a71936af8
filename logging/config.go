package logging

import "strings"

// Config is the "logging" section of orion.yml.
type Config struct {
	// Level applies to every component without its own entry. ORION_LOG_LEVEL
	// overrides it and every per-component level.
	Level string `yaml:"level" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error"`

	// Components maps a component to its level, e.g. {gdb: debug} to trace
	// MI traffic for every session while the engine stays at info.
	Components map[string]string `yaml:"components" jsonschema:"description=Per-component levels keyed by component name (gdb, engine, daemon, watcher, ...)"`

	ReportCaller bool `yaml:"report_caller"`

	File   FileSinkConfig `yaml:"file"`
	Format FormatConfig   `yaml:"format"`
}

// LevelFor returns the configured level name for component, which may be
// given with or without its "orion-" prefix. Empty means unset.
func (c Config) LevelFor(component string) string {
	if level := c.Components[component]; level != "" {
		return level
	}
	if level := c.Components[strings.TrimPrefix(component, "orion-")]; level != "" {
		return level
	}
	return c.Level
}

// FileSinkConfig configures the file sink. When Path is unset logs go to
// <state dir>/logs/<component>-<date>.log, which `orion logs` reads.
type FileSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// FormatConfig controls how records are rendered.
type FormatConfig struct {
	Preset           string `yaml:"preset" jsonschema:"enum=default,enum=simple,enum=json"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	DisableComponent bool   `yaml:"disable_component"`
	// StructuredToStderr is auto, always or never. In auto mode the daemon
	// logs to stderr only when debugging or when stderr is not a terminal.
	StructuredToStderr string `yaml:"structured_to_stderr" jsonschema:"enum=auto,enum=always,enum=never"`
}
