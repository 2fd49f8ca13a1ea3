package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"
)

// ErrTimeout is returned by Exec when a command exceeds its timeout.
var ErrTimeout = errors.New("command timed out")

// Environment represents a running sandbox.
type Environment interface {
	// ID returns the unique identifier for this environment.
	ID() string

	// Exec executes a command in the environment, streaming stdout and stderr to the provided writers.
	// Returns the exit code, or an error wrapping ErrTimeout if opts.Timeout elapsed.
	Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts ExecOptions) (int, error)

	// Destroy removes the environment and cleans up all resources.
	Destroy(ctx context.Context) error
}

// ExecOptions configures command execution.
type ExecOptions struct {
	Env     map[string]string
	Timeout time.Duration
	WorkDir string
}

// Provider is a factory for creating environments.
type Provider interface {
	// Name returns the provider name (e.g., "docker", "modal", "local").
	Name() string

	// PullImage fetches an image ahead of the first run.
	PullImage(ctx context.Context, imageRef string) error

	// CreateEnvironment creates and starts a new environment from an image.
	CreateEnvironment(ctx context.Context, opts CreateEnvironmentOptions) (Environment, error)
}

// CreateEnvironmentOptions configures environment creation.
type CreateEnvironmentOptions struct {
	Name     string
	ImageRef string
	CPUs     int
	MemoryMB int
	Env      map[string]string
	WorkDir  string
}

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = 5 * time.Second

// RunCommand runs the command built by newCmd under an optional timeout and
// classifies the result: a non-zero exit is returned as an exit code with
// a nil error, an elapsed timeout as ErrTimeout, and anything else that
// kept the command from completing as an error.
func RunCommand(ctx context.Context, timeout time.Duration, newCmd func(ctx context.Context) *exec.Cmd) (int, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := newCmd(ctx)
	cmd.WaitDelay = waitDelay

	err := cmd.Run()

	// Check for context timeout first: a killed command also reports an ExitError
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return -1, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return exitErr.ExitCode(), nil
		}
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return -1, fmt.Errorf("executing command: %w", err)
	}

	return 0, nil
}
