package models

import "time"

// HarnessConfig represents the parsed harness.toml: how a project's test
// suite is run against one library version.
type HarnessConfig struct {
	Image          string            `toml:"image"`
	Command        string            `toml:"command"`     // default: ./runTest.sh
	TimeoutSec     float64           `toml:"timeout_sec"` // default: 150.0
	Env            EnvironmentConfig `toml:"environment"`
	ProviderConfig map[string]any    `toml:"provider_config,omitempty"`
}

type EnvironmentConfig struct {
	Type     string            `toml:"type"` // docker, modal, apple or local
	CPUs     int               `toml:"cpus"` // default: 1
	Memory   string            `toml:"memory,omitempty"`
	MemoryMB int               `toml:"memory_mb,omitempty"`
	WorkDir  string            `toml:"workdir,omitempty"`
	Vars     map[string]string `toml:"env,omitempty"`
}

// Timeout returns the wall-clock budget of a single run.
func (h HarnessConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSec * float64(time.Second))
}
