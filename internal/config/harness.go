package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/google/go-containerregistry/pkg/name"

	"github.com/spachava753/compatprobe/internal/models"
	"github.com/spachava753/compatprobe/internal/util"
)

// DefaultHarnessImage is the runner image used when harness.toml does not name one.
const DefaultHarnessImage = "compatprobe/runner:latest"

// DefaultHarnessConfig returns a HarnessConfig with default values.
func DefaultHarnessConfig() models.HarnessConfig {
	return models.HarnessConfig{
		Image:      DefaultHarnessImage,
		Command:    "./runTest.sh",
		TimeoutSec: 150.0,
		Env: models.EnvironmentConfig{
			Type:     "docker",
			CPUs:     1,
			MemoryMB: 2048, // 2G
		},
	}
}

// LoadHarnessFile loads a harness config from disk. An empty path yields
// the defaults.
func LoadHarnessFile(path string) (models.HarnessConfig, error) {
	if path == "" {
		cfg := DefaultHarnessConfig()
		return cfg, ValidateHarnessConfig(cfg)
	}
	return LoadHarnessConfig(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

// LoadHarnessConfig loads and parses a harness file from the given filesystem.
func LoadHarnessConfig(fsys fs.FS, file string) (models.HarnessConfig, error) {
	cfg := DefaultHarnessConfig()

	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", file, err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", file, err)
	}

	// 'memory' is a human-readable size; 'memory_mb' wins when both are set
	if !md.IsDefined("environment", "memory_mb") && md.IsDefined("environment", "memory") {
		mb, err := util.ParseMemory(cfg.Env.Memory)
		if err != nil {
			return cfg, fmt.Errorf("parsing memory %q: %w", cfg.Env.Memory, err)
		}
		cfg.Env.MemoryMB = mb
	}

	if cfg.Command == "" {
		cfg.Command = "./runTest.sh"
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 150.0
	}
	if cfg.Env.Type == "" {
		cfg.Env.Type = "docker"
	}

	if err := ValidateHarnessConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ValidateHarnessConfig checks the environment type and image reference.
func ValidateHarnessConfig(cfg models.HarnessConfig) error {
	switch cfg.Env.Type {
	case "docker", "modal", "apple":
		if cfg.Image == "" {
			return fmt.Errorf("harness: environment %q requires 'image'", cfg.Env.Type)
		}
		if _, err := name.ParseReference(cfg.Image); err != nil {
			return fmt.Errorf("harness: invalid image %q: %w", cfg.Image, err)
		}
	case "local":
	default:
		return fmt.Errorf("harness: unsupported environment type %q", cfg.Env.Type)
	}

	if cfg.Env.CPUs < 1 {
		return fmt.Errorf("harness: cpus must be at least 1, got %d", cfg.Env.CPUs)
	}
	return nil
}
