package modal

import (
	"bytes"
	"context"
	"errors"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/spachava753/compatprobe/internal/environment"
)

func TestParseProviderConfig(t *testing.T) {
	tests := []struct {
		name   string
		config map[string]any
		want   ProviderConfig
	}{
		{
			name:   "nil config",
			config: nil,
			want:   ProviderConfig{AppName: DefaultAppName},
		},
		{
			name: "app name and verbose",
			config: map[string]any{
				"app_name": "probe-ci",
				"verbose":  true,
			},
			want: ProviderConfig{AppName: "probe-ci", Verbose: true},
		},
		{
			name:   "single region",
			config: map[string]any{"region": "us-east"},
			want:   ProviderConfig{AppName: DefaultAppName, Regions: []string{"us-east"}},
		},
		{
			name:   "region list from toml",
			config: map[string]any{"regions": []any{"us-east", "eu-west", 3}},
			want:   ProviderConfig{AppName: DefaultAppName, Regions: []string{"us-east", "eu-west"}},
		},
		{
			name:   "empty app name keeps default",
			config: map[string]any{"app_name": ""},
			want:   ProviderConfig{AppName: DefaultAppName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProviderConfig(tt.config)
			if got.AppName != tt.want.AppName || got.Verbose != tt.want.Verbose || !slices.Equal(got.Regions, tt.want.Regions) {
				t.Errorf("ParseProviderConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func modalConfigured() bool {
	return os.Getenv("MODAL_TOKEN_ID") != "" && os.Getenv("MODAL_TOKEN_SECRET") != ""
}

// TestIntegration creates a real sandbox.
// This test is skipped with -short flag or without Modal credentials.
func TestIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !modalConfigured() {
		t.Skip("modal credentials not configured")
	}

	ctx := context.Background()
	p, err := NewProvider(ParseProviderConfig(nil))
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	env, err := p.CreateEnvironment(ctx, environment.CreateEnvironmentOptions{
		ImageRef: "bash:5",
		CPUs:     1,
	})
	if err != nil {
		t.Fatalf("CreateEnvironment: %v", err)
	}
	defer env.Destroy(context.Background())

	var out bytes.Buffer
	code, err := env.Exec(ctx, "echo hello; exit 2", &out, &out, environment.ExecOptions{})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if code != 2 || out.String() != "hello\n" {
		t.Errorf("unexpected result: code=%d output=%q", code, out.String())
	}

	_, err = env.Exec(ctx, "sleep 30", nil, nil, environment.ExecOptions{Timeout: 2 * time.Second})
	if !errors.Is(err, environment.ErrTimeout) {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}
