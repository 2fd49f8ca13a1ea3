package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/spachava753/compatprobe/internal/models"
)

// NPM lists versions from an npm-compatible registry.
type NPM struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewNPM creates an NPM registry client. token, if set, is sent as a
// bearer token. A zero timeout disables the per-request deadline.
func NewNPM(baseURL, token string, timeout time.Duration) *NPM {
	return &NPM{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// packument is the subset of an npm package document used here.
type packument struct {
	Versions map[string]struct {
		GitHead string `json:"gitHead"`
	} `json:"versions"`
	Time map[string]string `json:"time"`
}

// ListVersions implements Registry. Versions are ordered by publish time;
// versions without a timestamp sort last.
func (n *NPM) ListVersions(ctx context.Context, pkg string) ([]models.Version, error) {
	// scoped names escape the slash: @scope%2Fname
	endpoint := n.baseURL + "/" + url.PathEscape(pkg)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	slog.Debug("fetching packument", "package", pkg, "url", endpoint)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pkg, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", pkg, ErrPackageNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s: HTTP %d", pkg, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var doc packument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing packument for %s: %w", pkg, err)
	}

	return orderByPublishTime(doc), nil
}

func orderByPublishTime(doc packument) []models.Version {
	type published struct {
		models.Version
		at time.Time
	}

	list := make([]published, 0, len(doc.Versions))
	for v, meta := range doc.Versions {
		p := published{Version: models.Version{Version: v, Hash: meta.GitHead}}
		if ts, ok := doc.Time[v]; ok {
			if at, err := time.Parse(time.RFC3339, ts); err == nil {
				p.at = at
			}
		}
		list = append(list, p)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch {
		case a.at.IsZero() != b.at.IsZero():
			return !a.at.IsZero()
		case !a.at.Equal(b.at):
			return a.at.Before(b.at)
		default:
			return a.Version.Version < b.Version.Version
		}
	})

	versions := make([]models.Version, len(list))
	for i, p := range list {
		versions[i] = p.Version
	}
	return versions
}
