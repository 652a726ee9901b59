// Package execx runs external tools, streaming their output into structured logs
// and capturing stderr for error reporting.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/devzero-inc/selfhost-cli/internal/logging"
)

// Command describes a single external tool invocation.
type Command struct {
	// Name is the binary to run (e.g. "terraform").
	Name string
	// Args are the arguments passed to the binary.
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Stdin is written to the process stdin when non-empty.
	Stdin string
	// Env holds extra KEY=VALUE entries appended to the process environment.
	Env []string
}

// String renders the invocation for log messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// ExitError reports a tool that exited non-zero, carrying its captured stderr.
type ExitError struct {
	// Cmd is the invocation that failed.
	Cmd Command
	// Code is the process exit code, or -1 when the process did not start.
	Code int
	// Stderr is the captured standard error output.
	Stderr string
}

func (e *ExitError) Error() string {
	if e == nil {
		return "tool invocation failed"
	}
	msg := fmt.Sprintf("%s exited with code %d", e.Cmd.String(), e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// IsExitError reports whether err wraps an ExitError.
func IsExitError(err error) bool {
	var target *ExitError
	return errors.As(err, &target)
}

// Runner executes external commands. Implementations other than Local are used in tests.
type Runner interface {
	// Run executes the command, streaming stdout to the logger.
	Run(ctx context.Context, cmd Command) error
	// Capture executes the command and returns its stdout.
	Capture(ctx context.Context, cmd Command) ([]byte, error)
}

// Local runs commands on the local host.
type Local struct {
	logger *slog.Logger
}

// NewLocal constructs a Local runner bound to the given logger.
func NewLocal(logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{logger: logger}
}

// Run executes cmd, streaming stdout through the logger line by line and
// capturing stderr. A non-zero exit is returned as an ExitError.
func (l *Local) Run(ctx context.Context, cmd Command) error {
	c := l.build(ctx, cmd)

	var stderr bytes.Buffer
	c.Stdout = logging.NewToolWriter(l.logger, cmd.Name)
	c.Stderr = &stderr

	l.logger.Debug("running command", "cmd", cmd.String(), "dir", cmd.Dir)
	if err := c.Run(); err != nil {
		return wrapRunError(cmd, err, stderr.String())
	}
	return nil
}

// Capture executes cmd and returns its stdout, capturing stderr for errors.
func (l *Local) Capture(ctx context.Context, cmd Command) ([]byte, error) {
	c := l.build(ctx, cmd)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	l.logger.Debug("running command", "cmd", cmd.String(), "dir", cmd.Dir)
	if err := c.Run(); err != nil {
		return nil, wrapRunError(cmd, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (l *Local) build(ctx context.Context, cmd Command) *exec.Cmd {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	return c
}

func wrapRunError(cmd Command, err error, stderr string) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Cmd: cmd, Code: exitErr.ExitCode(), Stderr: stderr}
	}
	return fmt.Errorf("%s: %w", cmd.String(), err)
}
