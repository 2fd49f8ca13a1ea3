package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/spachava753/compatprobe/internal/config"
	"github.com/spachava753/compatprobe/internal/environment"
	"github.com/spachava753/compatprobe/internal/environment/apple"
	"github.com/spachava753/compatprobe/internal/environment/docker"
	"github.com/spachava753/compatprobe/internal/environment/local"
	"github.com/spachava753/compatprobe/internal/environment/modal"
	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/progress"
	"github.com/spachava753/compatprobe/internal/registry"
	"github.com/spachava753/compatprobe/internal/semrange"
	"github.com/spachava753/compatprobe/internal/store"
)

// RunOptions holds command-line overrides for a batch run. Zero values
// keep the batch file's settings.
type RunOptions struct {
	BatchPath   string
	Concurrency int
	Limit       int
	OutputDir   string

	// Progress receives the progress display; nil discards it.
	Progress io.Writer
	// Plain forces line-per-event progress even on a terminal.
	Plain bool
}

// Report is the outcome of a batch run.
type Report struct {
	Batch   string
	Results [][]models.TestResult
	Summary models.BatchSummary
}

// RunFromConfig loads a batch file and its harness, then runs the batch.
func RunFromConfig(ctx context.Context, opts RunOptions) (*Report, error) {
	cfg, err := config.LoadBatchConfig(opts.BatchPath)
	if err != nil {
		return nil, fmt.Errorf("loading batch config: %w", err)
	}
	if opts.Concurrency > 0 {
		cfg.Concurrency = opts.Concurrency
	}
	if opts.Limit > 0 {
		cfg.Limit = opts.Limit
	}
	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}
	if cpus := runtime.NumCPU(); cfg.Concurrency > cpus {
		slog.Warn("concurrency exceeds available CPUs", "concurrency", cfg.Concurrency, "cpus", cpus)
	}

	inputs := cfg.SelectedInputs()
	coord := &Coordinator{
		Ranges:            semrange.Resolver{},
		Store:             store.New(cfg.OutputDir),
		Concurrency:       cfg.Concurrency,
		VerifyFingerprint: cfg.Cache.VerifyFingerprint,
	}

	// A cached batch does no work, so it must not depend on the harness,
	// provider credentials or the registry being reachable.
	cached, err := coord.Cached(cfg.Name, inputs)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return newReport(cfg.Name, cached), nil
	}

	harness, err := config.LoadHarnessFile(cfg.HarnessPath)
	if err != nil {
		return nil, fmt.Errorf("loading harness config: %w", err)
	}

	provider, err := NewProvider(harness)
	if err != nil {
		return nil, fmt.Errorf("creating provider: %w", err)
	}

	coord.Registry, err = NewRegistry(ctx, cfg.Registry)
	if err != nil {
		return nil, fmt.Errorf("creating registry: %w", err)
	}
	coord.Runner = NewSandboxRunner(provider, harness)

	// Pulling ahead keeps the first runs from racing on the same image.
	// Runs still pull lazily if this fails.
	if harness.Image != "" {
		if err := provider.PullImage(ctx, harness.Image); err != nil {
			slog.Warn("failed to pull harness image", "image", harness.Image, "error", err)
		}
	}

	var sink progress.Sink = progress.Discard
	if opts.Progress != nil {
		sink = progress.New(opts.Progress, cfg.Name, len(inputs), opts.Plain)
	}
	if f, ok := sink.(interface{ Finish() }); ok {
		defer f.Finish()
	}
	coord.Sink = sink

	results, err := coord.Run(ctx, cfg.Name, inputs)
	if err != nil {
		return nil, err
	}
	return newReport(cfg.Name, results), nil
}

func newReport(batch string, results [][]models.TestResult) *Report {
	return &Report{
		Batch:   batch,
		Results: results,
		Summary: models.Summarize(results),
	}
}

// NewProvider creates the environment provider named by the harness.
func NewProvider(harness models.HarnessConfig) (environment.Provider, error) {
	switch harness.Env.Type {
	case "docker":
		return docker.NewProvider(), nil
	case "modal":
		return modal.NewProvider(modal.ParseProviderConfig(harness.ProviderConfig))
	case "apple":
		return apple.NewProvider(apple.ParseProviderConfig(harness.ProviderConfig))
	case "local":
		return local.NewProvider()
	default:
		return nil, fmt.Errorf("unsupported environment type: %s", harness.Env.Type)
	}
}

// NewRegistry creates the registry described by cfg. Every backend is
// wrapped in a per-run cache so inputs sharing a library see one list.
func NewRegistry(ctx context.Context, cfg models.RegistryConfig) (registry.Registry, error) {
	timeout := time.Duration(cfg.TimeoutSec * float64(time.Second))

	var reg registry.Registry
	switch cfg.Type {
	case models.RegistryNPM, "":
		url := cfg.URL
		if url == "" {
			url = config.DefaultRegistryURL
		}
		reg = registry.NewNPM(url, os.Getenv("NPM_TOKEN"), timeout)
	case models.RegistryFile:
		var (
			f   *registry.File
			err error
		)
		if cfg.Path != "" {
			f, err = registry.LoadFromPath(cfg.Path)
		} else {
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			f, err = registry.LoadFromURL(ctx, cfg.URL)
		}
		if err != nil {
			return nil, err
		}
		reg = f
	default:
		return nil, fmt.Errorf("unsupported registry type: %s", cfg.Type)
	}

	return registry.NewCached(reg), nil
}
