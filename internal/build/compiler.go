// Package build compiles uploaded C++ sources for debugging.
package build

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grovetools/orion/command"
	"github.com/grovetools/orion/config"
	"github.com/grovetools/orion/errors"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Compiler runs the configured compiler inside a session directory.
type Compiler struct {
	cfg     config.CompilerConfig
	builder *command.SafeBuilder
	logger  *logrus.Entry

	mu    sync.Mutex
	allow *patternmatcher.PatternMatcher
}

// New creates a compiler. builder supplies validation and the executor.
func New(cfg config.CompilerConfig, builder *command.SafeBuilder, logger *logrus.Entry) (*Compiler, error) {
	allow, err := patternmatcher.New(cfg.AllowedSources)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid compiler.allowed_sources")
	}
	return &Compiler{
		cfg:     cfg,
		builder: builder.WithDefaultTimeout(cfg.Timeout.Std()),
		logger:  logger,
		allow:   allow,
	}, nil
}

// CheckSource rejects upload names that are not plain file names or that
// the allow-list does not cover. An empty allow-list accepts every name.
func (c *Compiler) CheckSource(name string) error {
	if err := c.builder.Validate("sourceName", name); err != nil {
		return errors.InvalidInput(err.Error()).WithDetail("source", name)
	}
	if len(c.cfg.AllowedSources) == 0 {
		return nil
	}

	c.mu.Lock()
	ok, err := c.allow.MatchesOrParentMatches(name)
	c.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to match source name")
	}
	if !ok {
		return errors.InvalidInput(fmt.Sprintf("source '%s' is not an allowed source type", name)).
			WithDetail("source", name).
			WithDetail("allowed", c.cfg.AllowedSources)
	}
	return nil
}

// Args returns the compiler arguments for source and object.
func (c *Compiler) Args(source, object string) []string {
	args := append([]string{}, c.cfg.Flags...)
	for _, dir := range c.cfg.IncludeDirs {
		args = append(args, "-I"+dir)
	}
	return append(args, source, "-o", object)
}

// Compile builds source into object, running in the source's directory.
// Diagnostics are logged, and attached to the error when compilation fails.
func (c *Compiler) Compile(ctx context.Context, source, object string) error {
	cmd, err := c.builder.Build(ctx, c.cfg.Path, c.Args(source, object)...)
	if err != nil {
		return errors.InvalidInput(err.Error())
	}
	defer cmd.Cancel()
	cmd.InDir(filepath.Dir(source))

	logger := c.logger.WithField("source", filepath.Base(source))
	logger.WithField("command", cmd.String()).Debug("Compiling")

	var stderr bytes.Buffer
	execCmd := cmd.Exec()
	execCmd.Stderr = &stderr

	if err := execCmd.Run(); err != nil {
		if cmd.Context().Err() == context.DeadlineExceeded {
			return errors.New(errors.ErrCodeCommandTimeout, fmt.Sprintf("compiler timed out after %s", cmd.Timeout())).
				WithDetail("source", filepath.Base(source))
		}
		diagnostics := strings.TrimSpace(stderr.String())
		logDiagnostics(logger, &stderr)
		compileErr := errors.CompileFailed(filepath.Base(source), err)
		if diagnostics != "" {
			compileErr = compileErr.WithDetail("diagnostics", diagnostics)
		}
		return compileErr
	}

	if stderr.Len() > 0 {
		logDiagnostics(logger.WithField("status", "warnings"), &stderr)
	}
	logger.Info("Compiled")
	return nil
}

func logDiagnostics(logger *logrus.Entry, stderr *bytes.Buffer) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		if line := strings.TrimRight(scanner.Text(), " \t"); line != "" {
			logger.Warn(line)
		}
	}
}
