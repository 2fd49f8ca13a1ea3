// Package local runs harness commands directly on the host with bash.
// It provides no isolation and cannot cap CPUs; it exists for harnesses
// that manage their own sandboxing and for tests.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"

	"github.com/spachava753/compatprobe/internal/environment"
)

// Provider implements the local environment provider.
type Provider struct {
	shell string
}

// NewProvider creates a new local provider.
func NewProvider() (*Provider, error) {
	shell, err := exec.LookPath("bash")
	if err != nil {
		return nil, fmt.Errorf("bash not found: %w", err)
	}
	return &Provider{shell: shell}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "local"
}

// PullImage is a no-op: local environments have no image.
func (p *Provider) PullImage(ctx context.Context, imageRef string) error {
	return nil
}

// CreateEnvironment prepares a working directory. Without opts.WorkDir a
// temporary directory is created and removed again on Destroy.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	env := &Environment{
		shell: p.shell,
		dir:   opts.WorkDir,
		vars:  opts.Env,
	}

	if env.dir == "" {
		dir, err := os.MkdirTemp("", "compatprobe-*")
		if err != nil {
			return nil, fmt.Errorf("creating work directory: %w", err)
		}
		env.dir = dir
		env.ownsDir = true
	}

	if opts.CPUs > 0 {
		slog.Debug("local environment does not enforce cpu limits", "cpus", opts.CPUs)
	}

	return env, nil
}

// Environment is a working directory on the host.
type Environment struct {
	shell   string
	dir     string
	ownsDir bool
	vars    map[string]string
}

// ID returns the working directory.
func (e *Environment) ID() string {
	return e.dir
}

// Exec runs cmd with bash in the working directory.
func (e *Environment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	dir := e.dir
	if opts.WorkDir != "" {
		dir = opts.WorkDir
	}

	slog.Debug("executing command locally", "dir", dir, "command", cmd, "timeout", opts.Timeout)

	return environment.RunCommand(ctx, opts.Timeout, func(ctx context.Context) *exec.Cmd {
		c := exec.CommandContext(ctx, e.shell, "-c", cmd)
		c.Dir = dir
		c.Env = append(os.Environ(), envList(e.vars, opts.Env)...)
		c.Stdout = stdout
		c.Stderr = stderr
		return c
	})
}

// Destroy removes the working directory if it was created by the provider.
func (e *Environment) Destroy(ctx context.Context) error {
	if !e.ownsDir {
		return nil
	}
	if err := os.RemoveAll(e.dir); err != nil {
		return fmt.Errorf("removing work directory: %w", err)
	}
	return nil
}

// envList merges variable maps, later maps winning, into KEY=value form.
func envList(maps ...map[string]string) []string {
	merged := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+merged[k])
	}
	return list
}
