package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kballard/go-shellquote"

	"github.com/spachava753/compatprobe/internal/environment"
	"github.com/spachava753/compatprobe/internal/models"
)

// maxAppNameLength is the longest environment name accepted by every
// provider (Modal, Docker and the container CLI all allow 63).
const maxAppNameLength = 63

// TestRequest identifies one sandboxed run: a downstream project at a
// commit, tested against a versioned library such as "left-pad@1.3.0".
type TestRequest struct {
	Project string
	Commit  string
	Library string
}

// TestRunner runs a project's test suite against one library version.
// Harness failures are reported through the returned status; the error is
// reserved for cancellation of the caller's context.
type TestRunner interface {
	Run(ctx context.Context, req TestRequest) (models.TestStatus, error)
}

// SandboxRunner runs the harness in a fresh environment per request.
type SandboxRunner struct {
	provider environment.Provider
	harness  models.HarnessConfig
}

// NewSandboxRunner creates a SandboxRunner.
func NewSandboxRunner(provider environment.Provider, harness models.HarnessConfig) *SandboxRunner {
	return &SandboxRunner{provider: provider, harness: harness}
}

// Run creates an environment, executes the harness command and destroys
// the environment again.
func (r *SandboxRunner) Run(ctx context.Context, req TestRequest) (models.TestStatus, error) {
	var out syncBuffer

	env, err := r.provider.CreateEnvironment(ctx, environment.CreateEnvironmentOptions{
		Name:     envName(req),
		ImageRef: r.harness.Image,
		CPUs:     r.harness.Env.CPUs,
		MemoryMB: r.harness.Env.MemoryMB,
		Env:      r.harness.Env.Vars,
		WorkDir:  r.harness.Env.WorkDir,
	})
	if err != nil {
		if ctx.Err() != nil {
			return models.TestStatus{}, ctx.Err()
		}
		return fault(&out, models.CauseInvocationFault, "sandbox error: %v", err), nil
	}
	defer func() {
		// The run context may already be cancelled; cleanup must still happen
		if err := env.Destroy(context.Background()); err != nil {
			slog.Warn("failed to destroy environment", "id", env.ID(), "error", err)
		}
	}()

	cmd := r.harness.Command + " " + shellquote.Join(req.Project, req.Commit, req.Library)
	slog.Debug("running harness", "environment", env.ID(), "command", cmd)

	exitCode, err := env.Exec(ctx, cmd, &out, &out, environment.ExecOptions{
		Timeout: r.harness.Timeout(),
	})
	switch {
	case ctx.Err() != nil:
		return models.TestStatus{}, ctx.Err()
	case errors.Is(err, environment.ErrTimeout):
		return fault(&out, models.CauseTimeout, "%v", err), nil
	case err != nil:
		return fault(&out, models.CauseInvocationFault, "sandbox error: %v", err), nil
	case exitCode != 0:
		return fault(&out, models.CauseExitCode, "exit status %d", exitCode), nil
	}

	return models.TestStatus{State: models.StateSuccess, Log: out.String()}, nil
}

// fault appends a diagnostic line to the captured output and returns the
// resulting failure status.
func fault(out *syncBuffer, cause models.FailureCause, format string, args ...any) models.TestStatus {
	log := out.String()
	if log != "" && !strings.HasSuffix(log, "\n") {
		log += "\n"
	}
	log += fmt.Sprintf(format, args...) + "\n"
	return models.TestStatus{State: models.StateFailure, Log: log, Cause: cause}
}

// syncBuffer is a bytes.Buffer shared by the stdout and stderr streams of
// one command.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// envName derives a unique, provider-safe environment name for a request.
func envName(req TestRequest) string {
	suffix := uuid.NewString()[:8]
	base := sanitizeEnvName(req.Project + "-" + req.Library)
	if limit := maxAppNameLength - len(suffix) - 1; len(base) > limit {
		base = strings.TrimRight(base[:limit], "-")
	}
	if base == "" {
		return "compatprobe-" + suffix
	}
	return base + "-" + suffix
}

var invalidNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// sanitizeEnvName turns s into a lowercase name made of letters, digits and
// single hyphens, at most maxAppNameLength long.
func sanitizeEnvName(s string) string {
	name := invalidNameChars.ReplaceAllString(strings.ToLower(s), "-")
	name = strings.Trim(name, "-")
	if len(name) > maxAppNameLength {
		name = strings.TrimRight(name[:maxAppNameLength], "-")
	}
	return name
}
