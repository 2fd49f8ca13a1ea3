// Package registry lists published library versions and derives the
// window of versions a downstream project should be tested against.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/spachava753/compatprobe/internal/models"
)

// ErrPackageNotFound is returned when a registry has no entry for a package.
var ErrPackageNotFound = errors.New("package not found")

// Registry lists the published versions of a package in publication order.
// The list must be stable within a run.
type Registry interface {
	ListVersions(ctx context.Context, pkg string) ([]models.Version, error)
}

// RangeResolver computes the lowest version satisfying a range expression.
// ok is false when the expression is unparsable or unsatisfiable.
type RangeResolver interface {
	MinimumSatisfying(expr string) (version string, ok bool)
}

// Window returns the published versions of pkg from the minimum version
// satisfying rangeExpr through the newest one. The baseline itself is
// included. An unresolvable range or a baseline missing from the registry
// yields an empty window; only registry faults are returned as errors.
func Window(ctx context.Context, reg Registry, ranges RangeResolver, pkg, rangeExpr string) ([]models.Version, error) {
	versions, err := reg.ListVersions(ctx, pkg)
	if err != nil {
		return nil, fmt.Errorf("listing versions of %s: %w", pkg, err)
	}

	current, ok := ranges.MinimumSatisfying(rangeExpr)
	if !ok {
		slog.Debug("range has no minimum version", "package", pkg, "range", rangeExpr)
		return []models.Version{}, nil
	}

	idx := slices.IndexFunc(versions, func(v models.Version) bool {
		return v.Version == current
	})
	if idx < 0 {
		slog.Debug("baseline version not published", "package", pkg, "range", rangeExpr, "version", current)
		return []models.Version{}, nil
	}

	return slices.Clone(versions[idx:]), nil
}
