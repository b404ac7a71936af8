package command

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

var (
	sourceNamePattern   = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.+-]*$`)
	variableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*((\.|->|::)[A-Za-z_][A-Za-z0-9_]*|\[[0-9]+\])*$`)
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

// WithDefaultTimeout changes the timeout applied by Build.
func (sb *SafeBuilder) WithDefaultTimeout(timeout time.Duration) *SafeBuilder {
	if timeout > 0 {
		sb.defaultTimeout = clampTimeout(timeout)
	}
	return sb
}

// Executor returns the executor commands are created with.
func (sb *SafeBuilder) Executor() Executor {
	return sb.executor
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"sourceName":   validateSourceName,
		"variableName": validateVariableName,
		"miCommand":    validateMICommand,
		"fileName":     validateFileName,
	}
}

// validateSourceName ensures an uploaded source file name is a plain file name
func validateSourceName(name string) error {
	if name == "" {
		return fmt.Errorf("source name cannot be empty")
	}

	if !sourceNamePattern.MatchString(name) {
		return fmt.Errorf("invalid source name: %s (letters, digits, '_', '.', '+', '-' only)", name)
	}

	if len(name) > 255 {
		return fmt.Errorf("source name too long: %s (max 255 characters)", name)
	}

	return nil
}

// validateVariableName accepts identifiers with member, scope and index access
func validateVariableName(name string) error {
	if name == "" {
		return fmt.Errorf("variable name cannot be empty")
	}

	if !variableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid variable name: %s", name)
	}

	return nil
}

// validateMICommand ensures a raw debugger command is a single line
func validateMICommand(cmd string) error {
	if strings.TrimSpace(cmd) == "" {
		return fmt.Errorf("command cannot be empty")
	}

	if strings.ContainsAny(cmd, "\r\n") {
		return fmt.Errorf("command must be a single line")
	}

	// The channel prefixes its own token.
	if c := strings.TrimSpace(cmd)[0]; c >= '0' && c <= '9' {
		return fmt.Errorf("command must not start with a token")
	}

	return nil
}

// validateFileName ensures file paths are safe
func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	// Prevent directory traversal
	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}

	// Prevent command injection via shell metacharacters
	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}

	return nil
}

// Command represents a safe command configuration
type Command struct {
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	args     []string
	dir      string
	timeout  time.Duration
	executor Executor
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}

	for _, arg := range args {
		if strings.ContainsAny(arg, "\x00\n") {
			return nil, fmt.Errorf("argument contains invalid characters: %q", arg)
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, sb.defaultTimeout)

	return &Command{
		ctx:      timeoutCtx,
		cancel:   cancel,
		name:     name,
		args:     args,
		timeout:  sb.defaultTimeout,
		executor: sb.executor,
	}, nil
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	timeout = clampTimeout(timeout)

	parent := context.Background()
	if c.ctx != nil {
		parent = context.WithoutCancel(c.ctx)
	}
	c.Cancel()

	c.ctx, c.cancel = context.WithTimeout(parent, timeout)
	c.timeout = timeout
	return c
}

// InDir sets the working directory of the command
func (c *Command) InDir(dir string) *Command {
	c.dir = dir
	return c
}

// Timeout returns the effective timeout.
func (c *Command) Timeout() time.Duration {
	return c.timeout
}

// Context returns the context the command runs under.
func (c *Command) Context() context.Context {
	return c.ctx
}

// Cancel releases the command's timeout context.
func (c *Command) Cancel() {
	if c.cancel != nil {
		c.cancel()
	}
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// Exec creates and returns an exec.Cmd
func (c *Command) Exec() *exec.Cmd {
	cmd := c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
	if c.dir != "" {
		cmd.Dir = c.dir
	}
	return cmd
}

func clampTimeout(timeout time.Duration) time.Duration {
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}
