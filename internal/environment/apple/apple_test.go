package apple

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"slices"
	"strings"
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
			want:   ProviderConfig{},
		},
		{
			name: "with runtime_user and runtime_group",
			config: map[string]any{
				"runtime_user":  "1001",
				"runtime_group": "1002",
			},
			want: ProviderConfig{RuntimeUser: "1001", RuntimeGroup: "1002"},
		},
		{
			name: "numeric ids from toml",
			config: map[string]any{
				"runtime_user":  int64(1001),
				"runtime_group": int64(1002),
			},
			want: ProviderConfig{RuntimeUser: "1001", RuntimeGroup: "1002"},
		},
		{
			name: "with invalid types (ignored)",
			config: map[string]any{
				"runtime_user": 10.5,
			},
			want: ProviderConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProviderConfig(tt.config)
			if got != tt.want {
				t.Errorf("ParseProviderConfig() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecArgs(t *testing.T) {
	opts := environment.ExecOptions{Env: map[string]string{"CI": "1"}, WorkDir: "/work"}

	got := execArgs("c1", "1001", "1002", "./runTest.sh", opts)
	want := []string{"exec", "--uid", "1001", "--gid", "1002", "-e", "CI=1", "-w", "/work", "c1", "bash", "-c", "./runTest.sh"}
	if !slices.Equal(got, want) {
		t.Errorf("execArgs() = %v, want %v", got, want)
	}

	// root runs without --uid
	got = execArgs("c1", "0", "0", "true", environment.ExecOptions{})
	want = []string{"exec", "c1", "bash", "-c", "true"}
	if !slices.Equal(got, want) {
		t.Errorf("execArgs() = %v, want %v", got, want)
	}
}

func TestRunArgs(t *testing.T) {
	got := runArgs("widget", environment.CreateEnvironmentOptions{ImageRef: "runner", CPUs: 1, MemoryMB: 512})
	want := []string{"run", "-d", "--name", "widget", "--cpus", "1", "--memory", "512m", "runner", "sleep", "infinity"}
	if !slices.Equal(got, want) {
		t.Errorf("runArgs() = %v, want %v", got, want)
	}
}

// fakeCLI answers container CLI calls from a table keyed by joined args.
func fakeCLI(responses map[string]string) cliOutput {
	return func(_ context.Context, args ...string) ([]byte, error) {
		out, ok := responses[strings.Join(args, " ")]
		if !ok {
			return nil, errors.New("exit status 1")
		}
		return []byte(out), nil
	}
}

func TestDetectRuntimeUID(t *testing.T) {
	tests := []struct {
		name      string
		cfg       ProviderConfig
		responses map[string]string
		wantUID   string
		wantGID   string
	}{
		{
			name:    "configured user wins",
			cfg:     ProviderConfig{RuntimeUser: "1234"},
			wantUID: "1234",
			wantGID: "1234",
		},
		{
			name:      "empty image user is root",
			responses: map[string]string{"inspect c1": `[{"Config": {"User": ""}}]`},
			wantUID:   "0",
			wantGID:   "0",
		},
		{
			name:      "numeric user and group",
			responses: map[string]string{"inspect c1": `[{"Config": {"User": "1000:2000"}}]`},
			wantUID:   "1000",
			wantGID:   "2000",
		},
		{
			name: "named user is resolved",
			responses: map[string]string{
				"inspect c1":          `[{"Config": {"User": "node"}}]`,
				"exec c1 id -u node": "1000\n",
			},
			wantUID: "1000",
			wantGID: "1000",
		},
		{
			name: "falls back to id",
			responses: map[string]string{
				"exec c1 id -u": "501\n",
				"exec c1 id -g": "20\n",
			},
			wantUID: "501",
			wantGID: "20",
		},
		{
			name:    "default",
			wantUID: "1000",
			wantGID: "1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uid, gid := detectRuntimeUID(context.Background(), fakeCLI(tt.responses), "c1", tt.cfg)
			if uid != tt.wantUID || gid != tt.wantGID {
				t.Errorf("detectRuntimeUID() = %s:%s, want %s:%s", uid, gid, tt.wantUID, tt.wantGID)
			}
		})
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"1000", true},
		{"0", true},
		{"", false},
		{"abc", false},
		{"-1", false},
	}

	for _, tt := range tests {
		if got := isNumeric(tt.s); got != tt.want {
			t.Errorf("isNumeric(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

// containerAvailable checks if Apple Container CLI is available.
func containerAvailable() bool {
	_, err := exec.LookPath("container")
	return err == nil
}

func TestIntegration(t *testing.T) {
	if !containerAvailable() {
		t.Skip("container CLI not available")
	}
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	provider, err := NewProvider(ProviderConfig{})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if err := provider.PullImage(ctx, "bash:5"); err != nil {
		t.Fatalf("PullImage() error = %v", err)
	}

	env, err := provider.CreateEnvironment(ctx, environment.CreateEnvironmentOptions{ImageRef: "bash:5", CPUs: 1})
	if err != nil {
		t.Fatalf("CreateEnvironment() error = %v", err)
	}
	defer env.Destroy(ctx)

	var out bytes.Buffer
	exitCode, err := env.Exec(ctx, "echo hello", &out, &out, environment.ExecOptions{})
	if err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if exitCode != 0 || out.String() != "hello\n" {
		t.Errorf("Exec() = %d %q, want 0 %q", exitCode, out.String(), "hello\n")
	}

	_, err = env.Exec(ctx, "sleep 10", nil, nil, environment.ExecOptions{Timeout: time.Second})
	if !errors.Is(err, environment.ErrTimeout) {
		t.Errorf("Exec() error = %v, want ErrTimeout", err)
	}
}
