package inject

import (
	"context"
	"strings"
	"time"

	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/dom"
)

// PanelDriver is what the active chat-URL strategy needs from the live
// page: clicking the widget's detail-panel toggles and taking snapshots.
type PanelDriver interface {
	// OpenDetailPanel clicks the three-dots toggle of the widget owning the
	// fragment. Returns false when no toggle was found.
	OpenDetailPanel(ctx context.Context, fragmentID string) (bool, error)
	// NavigateBack clicks the panel's back control for the widget owning
	// the fragment, if the widget is still attached.
	NavigateBack(ctx context.Context, fragmentID string) error
	// Snapshot returns a fresh parsed copy of the page.
	Snapshot(ctx context.Context) (*dom.Document, error)
}

// panelLinkSelectors locate the full-screen thread link inside an opened
// detail panel, most specific first.
var panelLinkSelectors = []string{
	`.OpenChatInInbox fl-link[fltrackinglabel="OpenChatInInbox-link"] a`,
	`.OpenChatInInbox a[href*="/messages/thread/"]`,
	`app-messaging-chat-details a[href*="/messages/thread/"]`,
}

// ResolveChatURL returns the thread URL for a widget anchor. The passive
// context value wins when present. Otherwise, on the create flow only, the
// widget's detail panel is opened and polled for the full-screen link. The
// panel stays open for back-navigation after the form closes; call
// FinishPanel then.
func (c *Controller) ResolveChatURL(ctx context.Context, drv PanelDriver, key string) string {
	c.mu.Lock()
	a, ok := c.widgets[key]
	if !ok {
		c.mu.Unlock()
		return ""
	}
	if a.Context.ChatURL != "" {
		url := a.Context.ChatURL
		c.mu.Unlock()
		return url
	}
	if a.State == StateEdit || a.State == StateOtherOwner {
		// Edit flow skips the panel dance; the stored lead already has the
		// chat URL on the server side.
		c.mu.Unlock()
		return ""
	}
	fragmentID := a.FragmentID
	attempts, interval := c.cfg.PanelPollAttempts, c.cfg.PanelPollInterval
	c.mu.Unlock()

	opened, err := drv.OpenDetailPanel(ctx, fragmentID)
	if err != nil || !opened {
		if err != nil {
			c.log.Warn("detail panel open failed", "username", key, "error", err)
		}
		return ""
	}

	c.mu.Lock()
	c.pendingPanel[key] = true
	c.mu.Unlock()

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return ""
		case <-time.After(interval):
		}

		doc, err := drv.Snapshot(ctx)
		if err != nil {
			continue
		}
		for _, sel := range panelLinkSelectors {
			link := doc.Find(sel).First()
			if link.Length() == 0 {
				continue
			}
			href := dom.Attr(link, "href")
			if !strings.Contains(href, "/messages/thread/") {
				continue
			}
			url := absoluteURL(href)
			devlog.Printf("[Inject] resolved chat URL for %s after %d poll(s)", key, i+1)
			c.SetChatURL(key, url)
			return url
		}
	}

	devlog.Printf("[Inject] chat URL not found for %s after %d polls", key, attempts)
	return ""
}

// FinishPanel navigates the widget back out of its detail panel if one was
// opened for chat-URL capture. Best effort; called when the form closes.
func (c *Controller) FinishPanel(ctx context.Context, drv PanelDriver, key string) {
	c.mu.Lock()
	pending := c.pendingPanel[key]
	delete(c.pendingPanel, key)
	var fragmentID string
	if a, ok := c.widgets[key]; ok {
		fragmentID = a.FragmentID
	}
	c.mu.Unlock()

	if !pending || fragmentID == "" {
		return
	}
	if err := drv.NavigateBack(ctx, fragmentID); err != nil {
		c.log.Warn("panel back navigation failed", "username", key, "error", err)
	}
}
