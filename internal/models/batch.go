package models

// RegistryType selects the package registry backend.
type RegistryType string

const (
	RegistryNPM  RegistryType = "npm"
	RegistryFile RegistryType = "file"
)

// BatchConfig represents the parsed batch file.
type BatchConfig struct {
	Name        string            `yaml:"name" json:"name"`
	OutputDir   string            `yaml:"output_dir" json:"output_dir"`
	Concurrency int               `yaml:"concurrency" json:"concurrency"`
	Limit       int               `yaml:"limit,omitempty" json:"limit,omitempty"`
	HarnessPath string            `yaml:"harness,omitempty" json:"harness,omitempty"`
	Registry    RegistryConfig    `yaml:"registry" json:"registry"`
	Cache       CacheConfig       `yaml:"cache,omitempty" json:"cache,omitempty"`
	InputsPath  string            `yaml:"inputs_path,omitempty" json:"inputs_path,omitempty"`
	Inputs      []ExperimentInput `yaml:"inputs,omitempty" json:"inputs,omitempty"`
}

type RegistryConfig struct {
	Type       RegistryType `yaml:"type" json:"type"`
	URL        string       `yaml:"url,omitempty" json:"url,omitempty"`
	Path       string       `yaml:"path,omitempty" json:"path,omitempty"`
	TimeoutSec float64      `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`
}

type CacheConfig struct {
	// VerifyFingerprint re-runs a batch whose inputs changed since the
	// aggregate was written. Off by default: an existing aggregate is served as is.
	VerifyFingerprint bool `yaml:"verify_fingerprint" json:"verify_fingerprint"`
}

// SelectedInputs applies Limit to Inputs.
func (c BatchConfig) SelectedInputs() []ExperimentInput {
	if c.Limit > 0 && c.Limit < len(c.Inputs) {
		return c.Inputs[:c.Limit]
	}
	return c.Inputs
}
