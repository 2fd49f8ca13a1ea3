package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spachava753/compatprobe/internal/models"
)

// DefaultRegistryURL is the public npm registry.
const DefaultRegistryURL = "https://registry.npmjs.org"

// DefaultBatchConfig returns a BatchConfig with default values. The npm
// registry URL is filled in by LoadBatchConfig once the type is known.
func DefaultBatchConfig() models.BatchConfig {
	return models.BatchConfig{
		OutputDir:   "output",
		Concurrency: 1,
		Registry: models.RegistryConfig{
			Type:       models.RegistryNPM,
			TimeoutSec: 30.0,
		},
	}
}

// LoadBatchConfig loads and parses a batch file. Relative harness, inputs
// and registry paths are resolved against the batch file's directory.
// JSON batch files are accepted as well.
func LoadBatchConfig(path string) (models.BatchConfig, error) {
	cfg := DefaultBatchConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading batch config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing batch config: %w", err)
	}

	baseDir := filepath.Dir(path)
	cfg.HarnessPath = resolvePath(baseDir, cfg.HarnessPath)
	cfg.InputsPath = resolvePath(baseDir, cfg.InputsPath)
	cfg.Registry.Path = resolvePath(baseDir, cfg.Registry.Path)

	hasInline := len(cfg.Inputs) > 0
	hasPath := cfg.InputsPath != ""
	if hasInline && hasPath {
		return cfg, fmt.Errorf("batch config: cannot specify both 'inputs' and 'inputs_path'")
	}
	if hasPath {
		inputs, err := LoadInputs(cfg.InputsPath)
		if err != nil {
			return cfg, err
		}
		cfg.Inputs = inputs
	}

	// Apply defaults for missing values
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Registry.Type == "" {
		cfg.Registry.Type = models.RegistryNPM
	}
	if cfg.Registry.Type == models.RegistryNPM && cfg.Registry.URL == "" {
		cfg.Registry.URL = DefaultRegistryURL
	}
	if cfg.Registry.TimeoutSec <= 0 {
		cfg.Registry.TimeoutSec = 30.0
	}

	if err := ValidateBatchConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadInputs reads a YAML or JSON list of experiment inputs.
func LoadInputs(path string) ([]models.ExperimentInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inputs: %w", err)
	}

	var inputs []models.ExperimentInput
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parsing inputs: %w", err)
	}
	return inputs, nil
}

// ValidateBatchConfig checks a loaded batch for missing or unsafe values.
func ValidateBatchConfig(cfg models.BatchConfig) error {
	if err := ValidateBatchName(cfg.Name); err != nil {
		return err
	}

	switch cfg.Registry.Type {
	case models.RegistryNPM:
	case models.RegistryFile:
		if cfg.Registry.Path == "" && cfg.Registry.URL == "" {
			return fmt.Errorf("registry: type 'file' requires 'path' or 'url'")
		}
	default:
		return fmt.Errorf("registry: unsupported type %q", cfg.Registry.Type)
	}

	for i, in := range cfg.Inputs {
		if in.Project == "" {
			return fmt.Errorf("inputs[%d]: 'project' is required", i)
		}
		if in.LibraryPackage == "" {
			return fmt.Errorf("inputs[%d]: 'library_package' is required", i)
		}
		if in.Range == "" {
			return fmt.Errorf("inputs[%d]: 'range' is required", i)
		}
	}

	if cfg.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", cfg.Limit)
	}
	return nil
}

// ValidateBatchName rejects names that would escape the cache directory.
// A name may contain "/" (e.g. the library's owner/name) and is then
// stored in nested directories.
func ValidateBatchName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("batch config: 'name' is required")
	}
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return fmt.Errorf("invalid batch name %q: must be relative", name)
	}
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if part == ".." {
			return fmt.Errorf("invalid batch name %q: contains directory traversal", name)
		}
	}
	return nil
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
