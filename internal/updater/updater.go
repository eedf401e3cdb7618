// Package updater checks a JSON version feed for newer releases.
//
// The feed is a single object:
//
//	{"version": "1.2.0", "download_url": "https://...", "changelog": "..."}
//
// Nothing is downloaded or installed; the caller decides what to show.
package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/ginjaninja78/payequity/pkg/logger"
)

// ErrDisabled is returned when no feed URL is configured.
var ErrDisabled = errors.New("update check disabled")

// maxFeedSize bounds the feed body read into memory.
const maxFeedSize = 1 << 20

// Release is the feed document.
type Release struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
	Changelog   string `json:"changelog"`
}

// UpdateInfo contains update information
type UpdateInfo struct {
	CurrentVersion string
	LatestVersion  string
	DownloadURL    string
	Changelog      string

	// Available is true when LatestVersion is newer than CurrentVersion.
	Available bool
}

// Updater checks the feed on behalf of one running binary.
type Updater struct {
	currentVersion string
	feedURL        string
	client         *http.Client
	log            *logger.Logger
}

// New creates an updater. A zero timeout means 10 seconds.
func New(currentVersion, feedURL string, timeout time.Duration, log *logger.Logger) *Updater {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Updater{
		currentVersion: currentVersion,
		feedURL:        feedURL,
		client:         &http.Client{Timeout: timeout},
		log:            log,
	}
}

// Check fetches the feed and compares versions.
//
// RETURNS:
//   - The update information; Available reports whether to upgrade.
//   - ErrDisabled when no feed is configured, or an error when the feed is
//     unreachable or carries an invalid version.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	if u.feedURL == "" {
		return nil, ErrDisabled
	}

	current := canonical(u.currentVersion)
	if current == "" {
		return nil, fmt.Errorf("invalid current version %q", u.currentVersion)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch update feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("update feed returned status: %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedSize)).Decode(&release); err != nil {
		return nil, fmt.Errorf("failed to parse update feed: %w", err)
	}

	latest := canonical(release.Version)
	if latest == "" {
		return nil, fmt.Errorf("update feed carries invalid version %q", release.Version)
	}

	info := &UpdateInfo{
		CurrentVersion: u.currentVersion,
		LatestVersion:  release.Version,
		DownloadURL:    release.DownloadURL,
		Changelog:      release.Changelog,
		Available:      semver.Compare(latest, current) > 0,
	}

	u.log.Debug().
		Str("current", u.currentVersion).
		Str("latest", release.Version).
		Bool("available", info.Available).
		Msg("Checked for updates")

	return info, nil
}

// canonical returns the semver form of v ("1.2" -> "v1.2.0"), or "" when
// v is not a version.
func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
