package modal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/modal-labs/libmodal/modal-go"

	"github.com/spachava753/compatprobe/internal/environment"
)

// DefaultAppName is the Modal app that owns every sandbox of a run.
const DefaultAppName = "compatprobe"

// sandboxLifetime caps how long a sandbox survives if Destroy never runs.
const sandboxLifetime = time.Hour

// ProviderConfig holds Modal-specific configuration.
type ProviderConfig struct {
	// AppName is the name of the Modal app to use. Defaults to DefaultAppName.
	AppName string
	// Regions specifies the Modal regions (e.g., "us-east", "us-west").
	Regions []string
	// Verbose enables detailed sandbox logging.
	Verbose bool
}

// ParseProviderConfig extracts Modal-specific config from the generic config map.
func ParseProviderConfig(config map[string]any) ProviderConfig {
	pc := ProviderConfig{AppName: DefaultAppName}
	if config == nil {
		return pc
	}
	if v, ok := config["app_name"].(string); ok && v != "" {
		pc.AppName = v
	}
	if v, ok := config["region"].(string); ok {
		pc.Regions = []string{v}
	}
	switch v := config["regions"].(type) {
	case []any:
		for _, r := range v {
			if s, ok := r.(string); ok {
				pc.Regions = append(pc.Regions, s)
			}
		}
	case []string:
		pc.Regions = append(pc.Regions, v...)
	}
	if v, ok := config["verbose"].(bool); ok {
		pc.Verbose = v
	}
	return pc
}

// Provider implements the Modal environment provider using Modal Sandboxes.
// All sandboxes share one app, looked up once.
type Provider struct {
	client *modal.Client
	config ProviderConfig

	mu  sync.Mutex
	app *modal.App
}

// NewProvider creates a new Modal provider. Credentials are read from the
// environment (MODAL_TOKEN_ID, MODAL_TOKEN_SECRET) or the Modal config file.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}

	slog.Debug("initializing modal client")
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}
	return &Provider{
		client: client,
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "modal"
}

// PullImage is a no-op since Modal pulls registry images itself.
func (p *Provider) PullImage(ctx context.Context, imageRef string) error {
	slog.Debug("modal pull is no-op - handled internally", "image", imageRef)
	return nil
}

func (p *Provider) getApp(ctx context.Context) (*modal.App, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.app != nil {
		return p.app, nil
	}

	slog.Debug("looking up modal app", "name", p.config.AppName)
	app, err := p.client.Apps.FromName(ctx, p.config.AppName, &modal.AppFromNameParams{
		CreateIfMissing: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal app: %w", err)
	}
	p.app = app
	return app, nil
}

// CreateEnvironment creates and starts a Modal sandbox.
func (p *Provider) CreateEnvironment(ctx context.Context, opts environment.CreateEnvironmentOptions) (environment.Environment, error) {
	app, err := p.getApp(ctx)
	if err != nil {
		return nil, err
	}

	image := p.client.Images.FromRegistry(opts.ImageRef, nil)

	cpuCount := opts.CPUs
	if cpuCount <= 0 {
		cpuCount = 1
	}
	memoryMiB := opts.MemoryMB
	if memoryMiB <= 0 {
		memoryMiB = 2048
	}

	envVars := make(map[string]string, len(opts.Env))
	for k, v := range opts.Env {
		envVars[k] = v
	}

	slog.Debug("creating modal sandbox",
		"app", p.config.AppName,
		"name", opts.Name,
		"image", opts.ImageRef,
		"cpus", cpuCount,
		"memory_mib", memoryMiB,
		"regions", p.config.Regions)

	sandbox, err := p.client.Sandboxes.Create(ctx, app, image, &modal.SandboxCreateParams{
		CPU:       float64(cpuCount),
		MemoryMiB: memoryMiB,
		Env:       envVars,
		Timeout:   sandboxLifetime,
		Verbose:   p.config.Verbose,
		Regions:   p.config.Regions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal sandbox: %w", err)
	}

	slog.Debug("modal sandbox created", "sandbox_id", sandbox.SandboxID)

	return &ModalEnvironment{
		sandbox: sandbox,
		workDir: opts.WorkDir,
	}, nil
}

// ModalEnvironment represents a running Modal sandbox.
type ModalEnvironment struct {
	sandbox *modal.Sandbox
	workDir string
}

// ID returns the sandbox ID.
func (e *ModalEnvironment) ID() string {
	return e.sandbox.SandboxID
}

// Exec executes a command in the sandbox.
func (e *ModalEnvironment) Exec(ctx context.Context, cmd string, stdout, stderr io.Writer, opts environment.ExecOptions) (int, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	execParams := &modal.SandboxExecParams{
		Env:     opts.Env,
		Timeout: opts.Timeout,
		Workdir: opts.WorkDir,
	}
	if execParams.Workdir == "" {
		execParams.Workdir = e.workDir
	}

	slog.Debug("executing command in modal sandbox",
		"sandbox_id", e.sandbox.SandboxID,
		"command", cmd,
		"timeout", opts.Timeout)

	process, err := e.sandbox.Exec(ctx, []string{"bash", "-c", cmd}, execParams)
	if err != nil {
		return -1, e.classify(ctx, opts.Timeout, fmt.Errorf("executing command: %w", err))
	}

	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	// Stream stdout and stderr concurrently
	var wg sync.WaitGroup
	wg.Go(func() { io.Copy(stdout, process.Stdout) })
	wg.Go(func() { io.Copy(stderr, process.Stderr) })
	wg.Wait()

	exitCode, err := process.Wait(ctx)
	if err != nil {
		return -1, e.classify(ctx, opts.Timeout, fmt.Errorf("waiting for process: %w", err))
	}

	if exitCode != 0 {
		slog.Debug("command exited with non-zero code",
			"sandbox_id", e.sandbox.SandboxID,
			"exit_code", exitCode)
	}

	return exitCode, nil
}

func (e *ModalEnvironment) classify(ctx context.Context, timeout time.Duration, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", environment.ErrTimeout, timeout)
	}
	return err
}

// Destroy terminates the sandbox. The shared app is left running for the
// other sandboxes of the batch.
func (e *ModalEnvironment) Destroy(ctx context.Context) error {
	slog.Debug("destroying modal sandbox", "sandbox_id", e.sandbox.SandboxID)

	if err := e.sandbox.Terminate(ctx); err != nil {
		if !strings.Contains(err.Error(), "already terminated") &&
			!strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("terminating sandbox: %w", err)
		}
	}
	return nil
}
