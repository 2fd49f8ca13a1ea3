package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/spachava753/compatprobe/internal/models"
)

// File is a registry backed by a static snapshot: a JSON object mapping
// each package name to its versions in publication order.
//
//	{"left-pad": [{"version": "1.0.0", "hash": "abc"}, ...]}
type File struct {
	packages map[string][]models.Version
}

// NewFile creates a File registry from an in-memory snapshot.
func NewFile(packages map[string][]models.Version) *File {
	return &File{packages: packages}
}

// LoadFromPath loads a registry snapshot from a local filesystem path.
func LoadFromPath(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading registry file: %w", err)
	}
	return parseSnapshot(data)
}

// LoadFromURL loads a registry snapshot from a remote URL.
func LoadFromURL(ctx context.Context, url string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching registry: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching registry: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return parseSnapshot(data)
}

func parseSnapshot(data []byte) (*File, error) {
	var packages map[string][]models.Version
	if err := json.Unmarshal(data, &packages); err != nil {
		return nil, fmt.Errorf("parsing registry JSON: %w", err)
	}

	for pkg, versions := range packages {
		seen := make(map[string]bool, len(versions))
		for _, v := range versions {
			if v.Version == "" {
				return nil, fmt.Errorf("registry: package %s has an entry without a version", pkg)
			}
			if err := checkVersion(v.Version); err != nil {
				return nil, fmt.Errorf("registry: package %s: %w", pkg, err)
			}
			if seen[v.Version] {
				return nil, fmt.Errorf("registry: package %s lists version %s twice", pkg, v.Version)
			}
			seen[v.Version] = true
		}
	}

	return NewFile(packages), nil
}

// checkVersion rejects versions that are not semver. Versions name log
// files on disk, so path separators are refused as well.
func checkVersion(version string) error {
	if strings.ContainsAny(version, `/\`) || strings.Contains(version, "..") {
		return fmt.Errorf("invalid version %q", version)
	}
	if _, err := semver.NewVersion(version); err != nil {
		return fmt.Errorf("invalid version %q: %w", version, err)
	}
	return nil
}

// ListVersions implements Registry.
func (f *File) ListVersions(_ context.Context, pkg string) ([]models.Version, error) {
	versions, ok := f.packages[pkg]
	if !ok {
		return nil, fmt.Errorf("%s: %w", pkg, ErrPackageNotFound)
	}
	return slices.Clone(versions), nil
}
