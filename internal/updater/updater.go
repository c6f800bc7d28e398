// Package updater checks the CRM for newer bridge releases.
package updater

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/salespulse/bridge/internal/crm"
)

// checkTimeout caps a single version check.
const checkTimeout = 5 * time.Second

// VersionSource answers the version endpoint. *crm.Client satisfies it.
type VersionSource interface {
	Version(ctx context.Context) (*crm.VersionInfo, error)
}

// Result contains the outcome of an update check.
type Result struct {
	Available      bool   `json:"available"`
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version"`
	DownloadURL    string `json:"download_url,omitempty"`
}

// Check asks the CRM for the latest bridge version and compares it against
// currentVersion. Dev builds never report an update.
func Check(ctx context.Context, src VersionSource, currentVersion string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	info, err := src.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("updater: fetch version: %w", err)
	}

	latest := normalizeVersion(info.Version)
	current := normalizeVersion(currentVersion)

	return &Result{
		Available:      latest != current && current != "dev" && isNewer(latest, current),
		CurrentVersion: currentVersion,
		LatestVersion:  info.Version,
		DownloadURL:    info.DownloadURL,
	}, nil
}

// normalizeVersion strips the leading "v" prefix for comparison.
func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

// isNewer does a simple semver comparison (major.minor.patch).
// Returns true if latest > current.
func isNewer(latest, current string) bool {
	lParts := splitVersion(latest)
	cParts := splitVersion(current)

	for i := 0; i < 3; i++ {
		if lParts[i] > cParts[i] {
			return true
		}
		if lParts[i] < cParts[i] {
			return false
		}
	}
	return false
}

// splitVersion parses "1.2.3" into [1, 2, 3]. Returns [0,0,0] on failure.
func splitVersion(v string) [3]int {
	var parts [3]int
	fmt.Sscanf(v, "%d.%d.%d", &parts[0], &parts[1], &parts[2])
	return parts
}

// NotifyFunc is called when a new version is detected.
type NotifyFunc func(result *Result)

// BackgroundChecker periodically checks for updates and notifies when a new
// version is available, once per version.
type BackgroundChecker struct {
	src          VersionSource
	version      string
	interval     time.Duration
	initialDelay time.Duration
	notify       NotifyFunc

	mu           sync.Mutex
	lastNotified string
}

// NewBackgroundChecker creates a checker that runs every interval and calls
// notify when a new version is detected.
func NewBackgroundChecker(src VersionSource, currentVersion string, interval time.Duration, notify NotifyFunc) *BackgroundChecker {
	return &BackgroundChecker{
		src:          src,
		version:      currentVersion,
		interval:     interval,
		initialDelay: 30 * time.Second,
		notify:       notify,
	}
}

// Run starts the periodic check loop. It performs an initial check after a
// short delay (let the browser attach first), then rechecks every interval.
// Blocks until ctx is cancelled.
func (b *BackgroundChecker) Run(ctx context.Context) {
	select {
	case <-time.After(b.initialDelay):
	case <-ctx.Done():
		return
	}

	b.check(ctx)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.check(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// check performs a single update check and notifies if a new version is
// found that we haven't already notified about.
func (b *BackgroundChecker) check(ctx context.Context) {
	result, err := Check(ctx, b.src, b.version)
	if err != nil || result == nil || !result.Available {
		return
	}

	b.mu.Lock()
	alreadyNotified := b.lastNotified == result.LatestVersion
	if !alreadyNotified {
		b.lastNotified = result.LatestVersion
	}
	b.mu.Unlock()

	if !alreadyNotified && b.notify != nil {
		b.notify(result)
	}
}
