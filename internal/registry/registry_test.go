package registry

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/semrange"
)

func versionList(vs ...string) []models.Version {
	out := make([]models.Version, len(vs))
	for i, v := range vs {
		out[i] = models.Version{Version: v, Hash: "sha-" + v}
	}
	return out
}

func versionStrings(vs []models.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Version
	}
	return out
}

type failingRegistry struct{ err error }

func (f failingRegistry) ListVersions(context.Context, string) ([]models.Version, error) {
	return nil, f.err
}

func TestWindow(t *testing.T) {
	reg := NewFile(map[string][]models.Version{
		"lib": versionList("0.9.0", "1.0.0", "1.1.0", "1.2.0"),
		// publication order differs from semver order
		"backport": versionList("1.0.0", "2.0.0", "1.0.1", "2.0.1"),
	})

	tests := []struct {
		name string
		pkg  string
		rng  string
		want []string
	}{
		{name: "caret from baseline", pkg: "lib", rng: "^1.0.0", want: []string{"1.0.0", "1.1.0", "1.2.0"}},
		{name: "baseline is the last version", pkg: "lib", rng: "~1.2.0", want: []string{"1.2.0"}},
		{name: "exact", pkg: "lib", rng: "0.9.0", want: []string{"0.9.0", "1.0.0", "1.1.0", "1.2.0"}},
		{name: "baseline not published", pkg: "lib", rng: "^9.9.9", want: []string{}},
		{name: "unparsable range", pkg: "lib", rng: "github:owner/repo", want: []string{}},
		{name: "unsatisfiable range", pkg: "lib", rng: "<0.0.0", want: []string{}},
		{name: "publication order", pkg: "backport", rng: "^2.0.0", want: []string{"2.0.0", "1.0.1", "2.0.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Window(context.Background(), reg, semrange.Resolver{}, tt.pkg, tt.rng)
			if err != nil {
				t.Fatalf("Window: %v", err)
			}
			if got == nil {
				t.Fatal("Window returned nil slice")
			}
			if !slices.Equal(versionStrings(got), tt.want) {
				t.Errorf("Window(%q) = %v, want %v", tt.rng, versionStrings(got), tt.want)
			}
		})
	}
}

func TestWindowKeepsHashes(t *testing.T) {
	reg := NewFile(map[string][]models.Version{"lib": versionList("1.0.0", "1.1.0")})

	got, err := Window(context.Background(), reg, semrange.Resolver{}, "lib", "^1.0.0")
	if err != nil {
		t.Fatalf("Window: %v", err)
	}
	if got[1].Hash != "sha-1.1.0" {
		t.Errorf("expected hash sha-1.1.0, got %q", got[1].Hash)
	}
}

func TestWindowRegistryFaultIsHard(t *testing.T) {
	boom := errors.New("connection refused")

	_, err := Window(context.Background(), failingRegistry{err: boom}, semrange.Resolver{}, "lib", "^1.0.0")
	if !errors.Is(err, boom) {
		t.Errorf("expected registry error to propagate, got %v", err)
	}
}

func TestWindowUnknownPackageIsHard(t *testing.T) {
	_, err := Window(context.Background(), NewFile(nil), semrange.Resolver{}, "missing", "^1.0.0")
	if !errors.Is(err, ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}
}
