package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/grovetools/orion/errors"
	"github.com/moby/patternmatcher"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.GDB.Thread < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "gdb.thread must be at least 1").
			WithDetail("thread", c.GDB.Thread)
	}

	if c.GDB.MaxConsecutiveTimeouts < 0 {
		return errors.New(errors.ErrCodeConfigValidation, "gdb.max_consecutive_timeouts cannot be negative")
	}

	for name, d := range map[string]Duration{
		"gdb.command_timeout": c.GDB.CommandTimeout,
		"gdb.step_timeout":    c.GDB.StepTimeout,
		"gdb.exit_timeout":    c.GDB.ExitTimeout,
		"compiler.timeout":    c.Compiler.Timeout,
	} {
		if d <= 0 {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be positive", name)).
				WithDetail("field", name)
		}
	}

	for _, re := range c.GDB.SkipFunctions {
		if _, err := regexp.Compile(re); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid gdb.skip_functions regex '%s'", re)).
				WithDetail("regex", re)
		}
	}

	if _, err := patternmatcher.New(c.Compiler.AllowedSources); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid compiler.allowed_sources pattern").
			WithDetail("patterns", c.Compiler.AllowedSources)
	}

	for field, name := range map[string]string{
		"workdir.object_name": c.Workdir.ObjectName,
		"workdir.heap_file":   c.Workdir.HeapFile,
		"workdir.output_file": c.Workdir.OutputFile,
	} {
		if err := validatePlainFileName(name); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid %s", field)).
				WithDetail("field", field)
		}
	}

	if c.Workdir.HeapFile == c.Workdir.OutputFile {
		return errors.New(errors.ErrCodeConfigValidation, "workdir.heap_file and workdir.output_file must differ")
	}

	if c.Server.MaxUploadBytes < 1 {
		return errors.New(errors.ErrCodeConfigValidation, "server.max_upload_bytes must be positive")
	}

	return nil
}

// validatePlainFileName rejects names that would escape the session directory
// or break the debugger's command line.
func validatePlainFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\ \t\n\"'") || name == "." || name == ".." {
		return fmt.Errorf("file name '%s' must be a plain name without separators or whitespace", name)
	}
	return nil
}
