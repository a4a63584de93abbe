package internal

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var (
	CurrentVersion = "v0.4.0" // Will be overwritten by ldflags during build
	GitHubAPI      = "https://api.github.com/repos/greyhoundforty/blueterm/releases/latest"
	CheckInterval  = 24 * time.Hour
)

type GitHubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

type VersionCheck struct {
	LastChecked   time.Time `json:"last_checked"`
	LatestVersion string    `json:"latest_version"`
}

// Update describes a newer release.
type Update struct {
	Current string
	Latest  string
	URL     string
}

func (u Update) String() string {
	return fmt.Sprintf("Update available: %s → %s (%s)", u.Current, u.Latest, u.URL)
}

// CheckForUpdates looks for a newer release at most once per CheckInterval.
// The result is delivered on the returned channel, which is closed without a
// value when there is nothing to report.
func CheckForUpdates() <-chan Update {
	out := make(chan Update, 1)
	if !shouldCheck() {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		latest, url, err := FetchLatestVersion()
		if err != nil {
			return // Silently fail
		}
		saveLastCheck(latest)
		if IsNewer(latest, CurrentVersion) {
			out <- Update{Current: CurrentVersion, Latest: latest, URL: url}
		}
	}()
	return out
}

func versionCachePath() string {
	return filepath.Join(filepath.Dir(prefsPath), "version_check.json")
}

func shouldCheck() bool {
	data, err := os.ReadFile(versionCachePath())
	if err != nil {
		return true
	}

	var check VersionCheck
	if err := json.Unmarshal(data, &check); err != nil {
		return true
	}

	return time.Since(check.LastChecked) > CheckInterval
}

func FetchLatestVersion() (string, string, error) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(GitHubAPI)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", "", err
	}
	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", "", err
	}

	return release.TagName, release.HTMLURL, nil
}

// IsNewer compares dotted numeric versions, ignoring a leading v and any
// pre-release suffix.
func IsNewer(latest, current string) bool {
	l, c := versionParts(latest), versionParts(current)
	for i := 0; i < len(l) || i < len(c); i++ {
		var a, b int
		if i < len(l) {
			a = l[i]
		}
		if i < len(c) {
			b = c[i]
		}
		if a != b {
			return a > b
		}
	}
	return false
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if i := strings.IndexAny(v, "-+"); i >= 0 {
		v = v[:i]
	}
	var parts []int
	for _, p := range strings.Split(v, ".") {
		n, err := strconv.Atoi(p)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	return parts
}

func saveLastCheck(version string) {
	path := versionCachePath()
	os.MkdirAll(filepath.Dir(path), 0700)
	check := VersionCheck{
		LastChecked:   time.Now(),
		LatestVersion: version,
	}
	data, _ := json.Marshal(check)
	os.WriteFile(path, data, 0600)
}
