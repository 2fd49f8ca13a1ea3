package registry

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/spachava753/compatprobe/internal/models"
)

// Cached memoizes another Registry per package, so inputs sharing a
// library fetch its version list once and all see the same list. Failed
// lookups are not remembered.
type Cached struct {
	inner Registry
	group singleflight.Group

	mu   sync.Mutex
	memo map[string][]models.Version
}

// NewCached wraps inner with a per-run memo.
func NewCached(inner Registry) *Cached {
	return &Cached{
		inner: inner,
		memo:  make(map[string][]models.Version),
	}
}

// ListVersions implements Registry.
func (c *Cached) ListVersions(ctx context.Context, pkg string) ([]models.Version, error) {
	c.mu.Lock()
	versions, ok := c.memo[pkg]
	c.mu.Unlock()
	if ok {
		return slices.Clone(versions), nil
	}

	v, err, _ := c.group.Do(pkg, func() (any, error) {
		c.mu.Lock()
		versions, ok := c.memo[pkg]
		c.mu.Unlock()
		if ok {
			return versions, nil
		}

		versions, err := c.inner.ListVersions(ctx, pkg)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.memo[pkg] = versions
		c.mu.Unlock()
		return versions, nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]models.Version)), nil
}
