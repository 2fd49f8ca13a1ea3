package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/spachava753/compatprobe/internal/environment"
)

// Provider implements the Docker environment provider.
type Provider struct {
	binary string
}

// NewProvider creates a new Docker provider.
func NewProvider() *Provider {
	return &Provider{binary: "docker"}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "docker"
}

// PullImage pulls a pre-built image from a registry.
func (p *Provider) PullImage(ctx context.Context, imageRef string) error {
	slog.Debug("pulling docker image", "image", imageRef)

	// Pull output stays off the terminal, which the progress display owns.
	out, err := exec.CommandContext(ctx, p.binary, "pull", imageRef).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pulling docker image: %w: %s", err, strings.TrimSpace(string(out)))
	}
	slog.Debug("pull output", "image", imageRef, "output", string(out))

	return nil
}

// CreateEnvironment creates and starts a Docker container.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	// Use provided name or generate one
	containerID := opts.Name
	if containerID == "" {
		containerID = "compatprobe-" + uuid.NewString()
	}

	slog.Debug("creating docker container",
		"name", containerID,
		"image", opts.ImageRef,
		"cpus", opts.CPUs,
		"memory_mb", opts.MemoryMB)

	cmd := exec.CommandContext(ctx, p.binary, runArgs(containerID, opts)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("creating docker container: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return &DockerEnvironment{
		binary:      p.binary,
		containerID: containerID,
		workDir:     opts.WorkDir,
	}, nil
}

// runArgs builds the arguments of the `docker run` call that starts an idle
// container for later exec calls.
func runArgs(name string, opts environment.CreateEnvironmentOptions) []string {
	args := []string{
		"run",
		"-d",
		"--name", name,
	}

	// Add resource constraints
	if opts.CPUs > 0 {
		args = append(args, "--cpus", strconv.Itoa(opts.CPUs))
	}
	if opts.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", opts.MemoryMB))
	}

	args = append(args, envArgs(opts.Env)...)

	args = append(args, opts.ImageRef)
	// Keep container running with sleep infinity
	args = append(args, "sleep", "infinity")
	return args
}

// execArgs builds the arguments of a `docker exec` call running cmd in bash.
func execArgs(containerID, cmd string, opts environment.ExecOptions) []string {
	args := []string{"exec"}
	args = append(args, envArgs(opts.Env)...)

	// Add working directory
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	return append(args, containerID, "bash", "-c", cmd)
}

// envArgs renders -e flags in key order.
func envArgs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var args []string
	for _, k := range keys {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, env[k]))
	}
	return args
}

// DockerEnvironment represents a running Docker container.
type DockerEnvironment struct {
	binary      string
	containerID string
	workDir     string
}

// ID returns the container ID.
func (e *DockerEnvironment) ID() string {
	return e.containerID
}

// Exec executes a command in the container.
func (e *DockerEnvironment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	if opts.WorkDir == "" {
		opts.WorkDir = e.workDir
	}

	slog.Debug("executing command in docker container",
		"container_id", e.containerID,
		"command", cmd,
		"timeout", opts.Timeout)

	exitCode, err := environment.RunCommand(ctx, opts.Timeout, func(ctx context.Context) *exec.Cmd {
		c := exec.CommandContext(ctx, e.binary, execArgs(e.containerID, cmd, opts)...)
		c.Stdout = stdout
		c.Stderr = stderr
		return c
	})
	if err == nil && exitCode != 0 {
		slog.Debug("command exited with non-zero code",
			"container_id", e.containerID,
			"exit_code", exitCode)
	}
	return exitCode, err
}

// Destroy removes the container and cleans up resources.
func (e *DockerEnvironment) Destroy(ctx context.Context) error {
	// Force remove the container
	cmd := exec.CommandContext(ctx, e.binary, "rm", "-f", e.containerID)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// Ignore error if container already removed
		if !strings.Contains(string(output), "No such container") {
			return fmt.Errorf("removing container: %w: %s", err, strings.TrimSpace(string(output)))
		}
	}
	return nil
}
