// Package daemon coordinates the bridge's background state: the parked
// lead capture, the badge shown on the status surface, and update polling
// results.
package daemon

import (
	"log/slog"
	"sync"

	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/updater"
)

// Badge is the daemon's attention state, exposed on the status server.
type Badge string

const (
	// BadgeNone means nothing needs attention.
	BadgeNone Badge = "none"
	// BadgeCapture means a lead capture is parked for pickup.
	BadgeCapture Badge = "capture"
	// BadgeUpdate means a newer bridge version is available.
	BadgeUpdate Badge = "update"
)

// NotifyFunc sends an OS notification. notify.Send satisfies it.
type NotifyFunc func(title, body string)

// Coordinator owns the badge and the transitions that notify the user.
// Capture outranks update when both apply.
type Coordinator struct {
	store  *Store
	log    *slog.Logger
	notify NotifyFunc

	mu    sync.Mutex
	badge Badge
}

// NewCoordinator builds a coordinator over a store. The initial badge is
// recomputed from persisted state, without notifications.
func NewCoordinator(store *Store, log *slog.Logger, notify NotifyFunc) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		store:  store,
		log:    log.With("component", "daemon"),
		notify: notify,
		badge:  BadgeNone,
	}
	c.badge = c.compute()
	return c
}

// Badge returns the current badge state.
func (c *Coordinator) Badge() Badge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.badge
}

// SetPending parks a capture and raises the capture badge.
func (c *Coordinator) SetPending(p *PendingCapture) error {
	if err := c.store.SetPending(p); err != nil {
		return err
	}
	c.transition("Lead captured", "Captured lead data is ready for your CRM.")
	return nil
}

// Pending returns the parked capture, nil when none.
func (c *Coordinator) Pending() (*PendingCapture, error) {
	return c.store.Pending()
}

// ClearPending drops the parked capture and lowers the capture badge.
func (c *Coordinator) ClearPending() error {
	if err := c.store.ClearPending(); err != nil {
		return err
	}
	c.transition("", "")
	return nil
}

// OnUpdate handles a background checker result: records the version and
// raises the update badge unless that version was dismissed. Wire this as
// the checker's NotifyFunc.
func (c *Coordinator) OnUpdate(res *updater.Result) {
	if res == nil || !res.Available {
		return
	}
	if err := c.store.SetLatestVersion(res.LatestVersion); err != nil {
		c.log.Warn("failed to record latest version", "error", err)
		return
	}
	dismissed, _ := c.store.DismissedVersion()
	if dismissed == res.LatestVersion {
		return
	}
	c.transition("Update available", "SalesPulse Bridge "+res.LatestVersion+" is available.")
}

// DismissUpdate marks the currently known version as seen.
func (c *Coordinator) DismissUpdate() error {
	latest, err := c.store.LatestVersion()
	if err != nil || latest == "" {
		return err
	}
	if err := c.store.DismissVersion(latest); err != nil {
		return err
	}
	c.transition("", "")
	return nil
}

// transition recomputes the badge and notifies when it rises to a new
// attention state. Lowering is silent.
func (c *Coordinator) transition(title, body string) {
	c.mu.Lock()
	old := c.badge
	c.badge = c.compute()
	changed := c.badge != old
	raised := changed && c.badge != BadgeNone
	badge := c.badge
	c.mu.Unlock()

	if changed {
		devlog.Printf("[Daemon] badge %s -> %s", old, badge)
	}
	if raised && title != "" && c.notify != nil {
		c.notify(title, body)
	}
}

// compute derives the badge from persisted state.
func (c *Coordinator) compute() Badge {
	if p, err := c.store.Pending(); err == nil && p != nil {
		return BadgeCapture
	}
	latest, _ := c.store.LatestVersion()
	if latest != "" {
		dismissed, _ := c.store.DismissedVersion()
		if dismissed != latest {
			return BadgeUpdate
		}
	}
	return BadgeNone
}
