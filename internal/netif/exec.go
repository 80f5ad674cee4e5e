package netif

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrTimeout is returned when an external command exceeds its deadline
var ErrTimeout = errors.New("command timed out")

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError reports a command that exited unsuccessfully
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Output)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands through os/exec, each under its own timeout
type ExecRunner struct {
	Timeout time.Duration
}

// NewExecRunner creates a runner bounding every command by timeout
func NewExecRunner(timeout time.Duration) *ExecRunner {
	return &ExecRunner{Timeout: timeout}
}

// Run executes name with args and returns the combined output.
// A deadline overrun yields an error wrapping ErrTimeout; a cancelled
// parent context yields the context error.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err == nil {
		return out.Bytes(), nil
	}

	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return out.Bytes(), &CommandError{Command: cmdline, Err: fmt.Errorf("%w after %s", ErrTimeout, r.Timeout)}
	case ctx.Err() != nil:
		return out.Bytes(), &CommandError{Command: cmdline, Err: ctx.Err()}
	}
	return out.Bytes(), &CommandError{
		Command: cmdline,
		Output:  strings.TrimSpace(out.String()),
		Err:     err,
	}
}
