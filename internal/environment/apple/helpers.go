package apple

import (
	"context"
	"encoding/json"
	"log/slog"
	"os/exec"
	"strings"
)

// cliOutput runs the container CLI and returns its stdout.
type cliOutput func(ctx context.Context, args ...string) ([]byte, error)

func containerCLI(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, "container", args...).Output()
}

// detectRuntimeUID determines the UID and GID to use for exec operations.
// Priority: explicit config > image user from inspect > `id` in the container > "1000".
func detectRuntimeUID(ctx context.Context, run cliOutput, containerID string, cfg ProviderConfig) (uid, gid string) {
	if cfg.RuntimeUser != "" {
		uid, gid = cfg.RuntimeUser, cfg.RuntimeGroup
		if gid == "" {
			gid = uid
		}
		slog.Debug("using configured runtime user", "uid", uid, "gid", gid)
		return uid, gid
	}

	if uid, gid = userFromInspect(ctx, run, containerID); uid != "" {
		slog.Debug("detected runtime user from inspect", "uid", uid, "gid", gid)
		return uid, gid
	}

	if uid, gid = userFromID(ctx, run, containerID); uid != "" {
		slog.Debug("detected runtime user from exec", "uid", uid, "gid", gid)
		return uid, gid
	}

	slog.Warn("could not detect runtime UID, defaulting to 1000", "container_id", containerID)
	return "1000", "1000"
}

// userFromInspect reads the image's configured user. An empty user means root.
func userFromInspect(ctx context.Context, run cliOutput, containerID string) (uid, gid string) {
	output, err := run(ctx, "inspect", containerID)
	if err != nil {
		slog.Debug("container inspect failed", "error", err)
		return "", ""
	}

	// inspect returns an array
	var inspectData []struct {
		Config struct {
			User string `json:"User"`
		} `json:"Config"`
	}
	if err := json.Unmarshal(output, &inspectData); err != nil || len(inspectData) == 0 {
		slog.Debug("failed to parse inspect output", "error", err)
		return "", ""
	}

	user := inspectData[0].Config.User
	if user == "" {
		return "0", "0"
	}

	// "1000", "1000:1000" or "username[:group]"
	uid, gid, found := strings.Cut(user, ":")
	if !found {
		gid = uid
	}

	if !isNumeric(uid) {
		out, err := run(ctx, "exec", containerID, "id", "-u", uid)
		if err != nil {
			return "", ""
		}
		uid = strings.TrimSpace(string(out))
	}
	if !isNumeric(gid) {
		gid = uid
	}
	return uid, gid
}

// userFromID asks the container for its default uid and gid.
func userFromID(ctx context.Context, run cliOutput, containerID string) (uid, gid string) {
	out, err := run(ctx, "exec", containerID, "id", "-u")
	if err != nil {
		slog.Debug("exec id -u failed", "error", err)
		return "", ""
	}
	uid = strings.TrimSpace(string(out))

	out, err = run(ctx, "exec", containerID, "id", "-g")
	if err != nil {
		return uid, uid
	}
	return uid, strings.TrimSpace(string(out))
}

// isNumeric checks if a string contains only digits.
func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
