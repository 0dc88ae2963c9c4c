// Package update checks GitHub releases for a newer Pacer version.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const defaultAPI = "https://api.github.com"

// Release describes a GitHub release with the download URL for the current platform.
type Release struct {
	Version string `json:"version"`
	URL     string `json:"url,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// githubRelease is the subset of the GitHub releases API response we use.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Body    string        `json:"body"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Checker looks up the latest release of a repository.
type Checker struct {
	CurrentVersion string
	RepoOwner      string
	RepoName       string
	// BaseURL is the GitHub API root; tests point it at a local server.
	BaseURL    string
	httpClient *http.Client
}

// New returns a Checker configured for the GoCodeAlone/pacer repository.
func New(currentVersion string) *Checker {
	return &Checker{
		CurrentVersion: currentVersion,
		RepoOwner:      "GoCodeAlone",
		RepoName:       "pacer",
		BaseURL:        defaultAPI,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Check queries the latest release. It returns nil, nil when the running
// version is current, newer, or a dev build.
func (c *Checker) Check(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest",
		strings.TrimRight(c.BaseURL, "/"), c.RepoOwner, c.RepoName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "pacer/"+c.CurrentVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github API returned %d", resp.StatusCode)
	}

	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return nil, fmt.Errorf("decode release: %w", err)
	}

	if !Newer(rel.TagName, c.CurrentVersion) {
		return nil, nil
	}
	return &Release{
		Version: rel.TagName,
		URL:     platformAssetURL(rel.Assets, runtime.GOOS, runtime.GOARCH),
		Notes:   strings.TrimSpace(rel.Body),
	}, nil
}

// Newer reports whether latest is a strictly higher semantic version than
// current. Unparseable versions, including "dev", are never outdated.
func Newer(latest, current string) bool {
	l, c := canonical(latest), canonical(current)
	if l == "" || c == "" {
		return false
	}
	return semver.Compare(l, c) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// platformAssetURL finds the download URL matching the OS and architecture.
func platformAssetURL(assets []githubAsset, goos, goarch string) string {
	if goarch == "amd64" {
		goarch = "x86_64"
	}
	for _, a := range assets {
		name := strings.ToLower(a.Name)
		if strings.Contains(name, goos) && strings.Contains(name, goarch) {
			return a.BrowserDownloadURL
		}
	}
	return ""
}
