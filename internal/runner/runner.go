// Package runner starts external model executables with an argument vector
// and collects their output under a size ceiling and an optional deadline.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

var (
	// ErrOutputTooLarge is returned when stdout grows past the configured
	// ceiling. The process is killed when that happens.
	ErrOutputTooLarge = errors.New("stdout exceeded output limit")
	// ErrTimeout is returned when the per-run deadline expires.
	ErrTimeout = errors.New("process timed out")
)

// Command describes one process invocation. Args are passed to the
// executable verbatim; no shell is involved.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env is appended to the server's own environment.
	Env []string
}

// Argv returns the full argument vector, executable first.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	maxOutput int
	timeout   time.Duration
}

// NewExecRunner returns a runner that caps stdout at maxOutput bytes and
// kills processes running longer than timeout. A zero timeout means the
// run is bounded only by the caller's context.
func NewExecRunner(maxOutput int, timeout time.Duration) *ExecRunner {
	return &ExecRunner{maxOutput: maxOutput, timeout: timeout}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	stdout := newCappedBuffer(r.maxOutput, cancel)
	stderr := newCappedBuffer(r.maxOutput, nil)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Children of the model process may keep the pipes open after a kill.
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode(cmd),
		Duration: time.Since(start),
	}

	switch {
	case stdout.Overflowed():
		return res, fmt.Errorf("%s: %w (%d bytes)", c.Name, ErrOutputTooLarge, r.maxOutput)
	case err == nil:
		return res, nil
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && r.timeout > 0:
		return res, fmt.Errorf("%s: %w after %s", c.Name, ErrTimeout, r.timeout)
	case ctx.Err() != nil:
		return res, fmt.Errorf("%s: %w", c.Name, ctx.Err())
	default:
		return res, fmt.Errorf("%s: %w", c.Name, err)
	}
}

func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}
