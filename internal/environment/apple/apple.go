package apple

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

// ProviderConfig is read from the harness [provider_config] table.
type ProviderConfig struct {
	// RuntimeUser and RuntimeGroup pin the UID/GID that runs the harness,
	// skipping detection from the image.
	RuntimeUser  string
	RuntimeGroup string
}

// ParseProviderConfig reads runtime_user and runtime_group, which may be
// given as names or numeric IDs.
func ParseProviderConfig(config map[string]any) ProviderConfig {
	return ProviderConfig{
		RuntimeUser:  idValue(config["runtime_user"]),
		RuntimeGroup: idValue(config["runtime_group"]),
	}
}

func idValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

// Provider implements the Apple Container environment provider.
type Provider struct {
	config ProviderConfig
}

// NewProvider creates a new Apple Container provider.
func NewProvider(cfg ProviderConfig) (*Provider, error) {
	// Check that container CLI is available
	if _, err := exec.LookPath("container"); err != nil {
		return nil, fmt.Errorf("apple container CLI not found: install from https://github.com/apple/container or run: brew install container")
	}
	return &Provider{config: cfg}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "apple"
}

// PullImage pulls a pre-built image from a registry.
func (p *Provider) PullImage(ctx context.Context, imageRef string) error {
	slog.Debug("pulling container image", "image", imageRef)

	// Pull output stays off the terminal, which the progress display owns.
	out, err := exec.CommandContext(ctx, "container", "image", "pull", imageRef).CombinedOutput()
	if err != nil {
		return fmt.Errorf("pulling container image: %w: %s", err, strings.TrimSpace(string(out)))
	}
	slog.Debug("pull output", "image", imageRef, "output", string(out))

	slog.Debug("container image pulled", "image", imageRef)
	return nil
}

// CreateEnvironment creates and starts an Apple Container.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	// Use provided name or generate one
	containerName := opts.Name
	if containerName == "" {
		containerName = "compatprobe-" + uuid.NewString()
	}

	slog.Debug("creating apple container",
		"name", containerName,
		"image", opts.ImageRef,
		"cpus", opts.CPUs,
		"memory_mb", opts.MemoryMB)

	cmd := exec.CommandContext(ctx, "container", runArgs(containerName, opts)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("creating apple container: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	containerID := strings.TrimSpace(stdout.String())
	if containerID == "" {
		containerID = containerName // Some versions return empty, use name
	}

	slog.Debug("apple container created", "container_id", containerID)

	// Detect runtime UID after container is running
	uid, gid := detectRuntimeUID(ctx, containerCLI, containerID, p.config)

	return &Environment{
		containerID: containerID,
		runtimeUID:  uid,
		runtimeGID:  gid,
		workDir:     opts.WorkDir,
	}, nil
}

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
	return append(args, "sleep", "infinity")
}

// execArgs builds a `container exec` call. Commands run as the image's
// user unless it is root.
func execArgs(containerID, uid, gid, cmd string, opts environment.ExecOptions) []string {
	args := []string{"exec"}

	if uid != "" && uid != "0" {
		args = append(args, "--uid", uid)
		if gid != "" {
			args = append(args, "--gid", gid)
		}
	}

	args = append(args, envArgs(opts.Env)...)

	// Add working directory
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	return append(args, containerID, "bash", "-c", cmd)
}

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

// Environment represents a running Apple Container.
type Environment struct {
	containerID string
	runtimeUID  string
	runtimeGID  string
	workDir     string
}

// ID returns the container ID.
func (e *Environment) ID() string {
	return e.containerID
}

// Exec executes a command in the container.
func (e *Environment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	if opts.WorkDir == "" {
		opts.WorkDir = e.workDir
	}

	slog.Debug("executing command in container",
		"container_id", e.containerID,
		"command", cmd,
		"timeout", opts.Timeout)

	exitCode, err := environment.RunCommand(ctx, opts.Timeout, func(ctx context.Context) *exec.Cmd {
		c := exec.CommandContext(ctx, "container", execArgs(e.containerID, e.runtimeUID, e.runtimeGID, cmd, opts)...)
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
func (e *Environment) Destroy(ctx context.Context) error {
	slog.Debug("destroying apple container", "container_id", e.containerID)

	// Force remove the container
	cmd := exec.CommandContext(ctx, "container", "rm", "--force", e.containerID)
	output, err := cmd.CombinedOutput()
	if err != nil {
		errStr := string(output)
		// Ignore error if container already removed
		if !strings.Contains(errStr, "No such container") &&
			!strings.Contains(errStr, "not found") {
			return fmt.Errorf("removing container: %w: %s", err, errStr)
		}
	}
	return nil
}
