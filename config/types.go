package config

import (
	"fmt"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Duration is a time.Duration written as a Go duration string ("2s", "500ms")
// in every configuration format.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes the accepted duration syntax.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 2s or 500ms",
	}
}

// GDBConfig configures the debugger subprocess of every session.
type GDBConfig struct {
	Path                   string   `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=gdb executable (default: gdb)"`
	Args                   []string `yaml:"args,omitempty" toml:"args,omitempty" json:"args,omitempty" jsonschema:"description=Arguments putting gdb in MI mode"`
	Thread                 int      `yaml:"thread,omitempty" toml:"thread,omitempty" json:"thread,omitempty" jsonschema:"minimum=1,description=Thread id used for stack and expression queries (default: 1)"`
	CommandTimeout         Duration `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty" json:"command_timeout,omitempty" jsonschema:"description=Per-command response timeout (default: 2s)"`
	StepTimeout            Duration `yaml:"step_timeout,omitempty" toml:"step_timeout,omitempty" json:"step_timeout,omitempty" jsonschema:"description=Timeout for step, next and run (default: 5s)"`
	ExitTimeout            Duration `yaml:"exit_timeout,omitempty" toml:"exit_timeout,omitempty" json:"exit_timeout,omitempty" jsonschema:"description=Grace period after -gdb-exit before the process is killed (default: 1s)"`
	MaxConsecutiveTimeouts int      `yaml:"max_consecutive_timeouts,omitempty" toml:"max_consecutive_timeouts,omitempty" json:"max_consecutive_timeouts,omitempty" jsonschema:"minimum=0,description=Consecutive timeouts after which a session is torn down (0: never)"`
	SkipFiles              []string `yaml:"skip_files,omitempty" toml:"skip_files,omitempty" json:"skip_files,omitempty" jsonschema:"description=File globs never stepped into"`
	SkipFunctions          []string `yaml:"skip_functions,omitempty" toml:"skip_functions,omitempty" json:"skip_functions,omitempty" jsonschema:"description=Function regexes never stepped into"`
	BreakAt                string   `yaml:"break_at,omitempty" toml:"break_at,omitempty" json:"break_at,omitempty" jsonschema:"description=Initial breakpoint location (default: main)"`
}

// CompilerConfig configures how uploaded sources are built.
type CompilerConfig struct {
	Path           string   `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty" jsonschema:"description=C++ compiler (default: g++)"`
	Flags          []string `yaml:"flags,omitempty" toml:"flags,omitempty" json:"flags,omitempty" jsonschema:"description=Compiler flags (default: -g -std=c++11)"`
	IncludeDirs    []string `yaml:"include_dirs,omitempty" toml:"include_dirs,omitempty" json:"include_dirs,omitempty" jsonschema:"description=Extra include directories"`
	Timeout        Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Compilation timeout (default: 30s)"`
	AllowedSources []string `yaml:"allowed_sources,omitempty" toml:"allowed_sources,omitempty" json:"allowed_sources,omitempty" jsonschema:"description=File name patterns accepted for upload"`
}

// WorkdirConfig configures the per-session work directories.
type WorkdirConfig struct {
	Root       string `yaml:"root,omitempty" toml:"root,omitempty" json:"root,omitempty" jsonschema:"description=Directory holding one subdirectory per session (default: state dir)"`
	ObjectName string `yaml:"object_name,omitempty" toml:"object_name,omitempty" json:"object_name,omitempty" jsonschema:"description=Compiled executable name (default: a.out)"`
	HeapFile   string `yaml:"heap_file,omitempty" toml:"heap_file,omitempty" json:"heap_file,omitempty" jsonschema:"description=Heap snapshot file written by the instrumented program (default: mem.txt)"`
	OutputFile string `yaml:"output_file,omitempty" toml:"output_file,omitempty" json:"output_file,omitempty" jsonschema:"description=File capturing the program's standard output (default: output.txt)"`
}

// ServerConfig configures the daemon's HTTP front end.
type ServerConfig struct {
	Listen         string `yaml:"listen,omitempty" toml:"listen,omitempty" json:"listen,omitempty" jsonschema:"description=TCP address to listen on (default: 127.0.0.1:5000)"`
	Socket         string `yaml:"socket,omitempty" toml:"socket,omitempty" json:"socket,omitempty" jsonschema:"description=Unix socket path; takes precedence over listen"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes,omitempty" toml:"max_upload_bytes,omitempty" json:"max_upload_bytes,omitempty" jsonschema:"minimum=1,description=Maximum accepted source size in bytes (default: 1MiB)"`
	StaticDir      string `yaml:"static_dir,omitempty" toml:"static_dir,omitempty" json:"static_dir,omitempty" jsonschema:"description=Directory served under /static/"`
	WatchHeap      *bool  `yaml:"watch_heap,omitempty" toml:"watch_heap,omitempty" json:"watch_heap,omitempty" jsonschema:"description=Publish heap_changed updates when a session's heap file changes (default: true)"`
}

// Config represents the orion.yml configuration
type Config struct {
	Version   string         `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	GDB       GDBConfig      `yaml:"gdb,omitempty" toml:"gdb,omitempty" json:"gdb,omitempty" jsonschema:"description=Debugger settings"`
	Compiler  CompilerConfig `yaml:"compiler,omitempty" toml:"compiler,omitempty" json:"compiler,omitempty" jsonschema:"description=Compiler settings"`
	Workdir   WorkdirConfig  `yaml:"workdir,omitempty" toml:"workdir,omitempty" json:"workdir,omitempty" jsonschema:"description=Session work directory layout"`
	Server    ServerConfig   `yaml:"server,omitempty" toml:"server,omitempty" json:"server,omitempty" jsonschema:"description=HTTP server settings"`
	TimingLog string         `yaml:"timing_log,omitempty" toml:"timing_log,omitempty" json:"timing_log,omitempty" jsonschema:"description=CSV file receiving one timing row per debugger command and step"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`

	// Source is the file the configuration was loaded from, empty for defaults.
	Source string `yaml:"-" toml:"-" json:"-" jsonschema:"-"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	g := &c.GDB
	if g.Path == "" {
		g.Path = "gdb"
	}
	if g.Args == nil {
		g.Args = []string{"--nx", "--quiet", "--interpreter=mi3"}
	}
	if g.Thread == 0 {
		g.Thread = 1
	}
	if g.CommandTimeout == 0 {
		g.CommandTimeout = Duration(2 * time.Second)
	}
	if g.StepTimeout == 0 {
		g.StepTimeout = Duration(5 * time.Second)
	}
	if g.ExitTimeout == 0 {
		g.ExitTimeout = Duration(time.Second)
	}
	if g.SkipFiles == nil {
		g.SkipFiles = []string{"/usr/include/c++/*/bits/*.h", "dyno.h"}
	}
	if g.SkipFunctions == nil {
		g.SkipFunctions = []string{"^__.*"}
	}
	if g.BreakAt == "" {
		g.BreakAt = "main"
	}

	cc := &c.Compiler
	if cc.Path == "" {
		cc.Path = "g++"
	}
	if cc.Flags == nil {
		cc.Flags = []string{"-g", "-std=c++11"}
	}
	if cc.Timeout == 0 {
		cc.Timeout = Duration(30 * time.Second)
	}
	if cc.AllowedSources == nil {
		cc.AllowedSources = []string{"*.cpp", "*.cc", "*.cxx", "*.c++"}
	}

	w := &c.Workdir
	if w.ObjectName == "" {
		w.ObjectName = "a.out"
	}
	if w.HeapFile == "" {
		w.HeapFile = "mem.txt"
	}
	if w.OutputFile == "" {
		w.OutputFile = "output.txt"
	}

	s := &c.Server
	if s.Listen == "" {
		s.Listen = "127.0.0.1:5000"
	}
	if s.MaxUploadBytes == 0 {
		s.MaxUploadBytes = 1 << 20
	}
	if s.WatchHeap == nil {
		enabled := true
		s.WatchHeap = &enabled
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded orion.yml into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
