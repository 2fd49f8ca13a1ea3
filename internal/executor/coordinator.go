package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/pool"
	"github.com/spachava753/compatprobe/internal/progress"
	"github.com/spachava753/compatprobe/internal/registry"
	"github.com/spachava753/compatprobe/internal/store"
)

// Coordinator runs a batch of experiment inputs. Each input's version window
// is tested serially until the first failure; inputs run concurrently
// through the task pool.
type Coordinator struct {
	Registry registry.Registry
	Ranges   registry.RangeResolver
	Runner   TestRunner
	Store    *store.Store
	Sink     progress.Sink

	// Concurrency bounds the number of inputs in progress. Values below 1 mean 1.
	Concurrency int

	// VerifyFingerprint discards a cached aggregate whose inputs changed.
	VerifyFingerprint bool
}

// Run executes the batch and returns one result list per input, aligned
// with inputs. An existing aggregate for the batch is returned as is.
// Any infrastructure fault aborts the batch before the aggregate is written.
func (c *Coordinator) Run(ctx context.Context, batch string, inputs []models.ExperimentInput) ([][]models.TestResult, error) {
	sink := c.Sink
	if sink == nil {
		sink = progress.Discard
	}
	sink.Interrupt(batch)

	fingerprint, err := store.Fingerprint(inputs)
	if err != nil {
		return nil, err
	}

	cached, err := c.cached(batch, fingerprint)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	slog.Info("running batch", "batch", batch, "inputs", len(inputs), "concurrency", c.Concurrency)

	tasks := make([]pool.Task[[]models.TestResult], len(inputs))
	for i, in := range inputs {
		tasks[i] = func() ([]models.TestResult, error) {
			results, err := c.runInput(ctx, sink, batch, in)
			if err != nil {
				return nil, fmt.Errorf("input %d (%s): %w", i, in.Project, err)
			}
			sink.Tick(in.Label())
			return results, nil
		}
	}

	results, err := pool.Run(tasks, c.Concurrency)
	if err != nil {
		return nil, err
	}

	// The fingerprint goes first: once the aggregate exists the batch counts
	// as cached.
	if err := c.Store.WriteFingerprint(batch, fingerprint); err != nil {
		return nil, fmt.Errorf("writing fingerprint of %s: %w", batch, err)
	}
	if err := c.Store.WriteAggregate(batch, results); err != nil {
		return nil, fmt.Errorf("writing results of %s: %w", batch, err)
	}
	return results, nil
}

// Cached returns the stored aggregate for batch, or nil if the batch has no
// usable results and must run. It needs only the Store.
func (c *Coordinator) Cached(batch string, inputs []models.ExperimentInput) ([][]models.TestResult, error) {
	fingerprint, err := store.Fingerprint(inputs)
	if err != nil {
		return nil, err
	}
	return c.cached(batch, fingerprint)
}

// cached returns the stored aggregate, or nil if the batch must run.
func (c *Coordinator) cached(batch, fingerprint string) ([][]models.TestResult, error) {
	ok, err := c.Store.HasAggregate(batch)
	if err != nil || !ok {
		return nil, err
	}

	if c.VerifyFingerprint {
		match, err := c.Store.FingerprintMatches(batch, fingerprint)
		if err != nil {
			return nil, err
		}
		if !match {
			slog.Warn("batch inputs changed since results were cached, re-running", "batch", batch)
			return nil, nil
		}
	}

	results, err := c.Store.LoadAggregate(batch)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = [][]models.TestResult{}
	}
	slog.Info("using cached results", "batch", batch, "path", c.Store.AggregatePath(batch))
	return results, nil
}

// runInput tests one input against its version window, oldest first, and
// stops after the first failure.
func (c *Coordinator) runInput(ctx context.Context, sink progress.Sink, batch string, in models.ExperimentInput) ([]models.TestResult, error) {
	versions, err := registry.Window(ctx, c.Registry, c.Ranges, in.LibraryPackage, in.Range)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		slog.Info("no testable versions", "project", in.Project, "package", in.LibraryPackage, "range", in.Range)
	}

	results := make([]models.TestResult, 0, len(versions))
	for _, v := range versions {
		resolved := in.Resolve(v)
		library := resolved.VersionedLibrary()

		status, err := c.Runner.Run(ctx, TestRequest{
			Project: in.Project,
			Commit:  in.ProjectCommit,
			Library: library,
		})
		if err != nil {
			return nil, fmt.Errorf("testing %s: %w", library, err)
		}

		results = append(results, models.NewTestResult(resolved, status))
		sink.Interrupt(fmt.Sprintf("  %s -> %s ... %s", in.Project, library, status.State))

		if err := c.Store.WriteLog(batch, v.Version, in.Project, status.State, status.Log); err != nil {
			return nil, err
		}

		if status.State == models.StateFailure {
			slog.Debug("stopping at first failure",
				"project", in.Project,
				"library", library,
				"cause", status.Cause)
			break
		}
	}
	return results, nil
}
