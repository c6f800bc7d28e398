package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/dom"
)

// MessagesURL is the page the bridge decorates.
const MessagesURL = "https://www.freelancer.com/messages"

// ErrDisconnected is returned by page operations after the CDP connection
// is lost. The session does not reconnect; the caller restarts it.
var ErrDisconnected = errors.New("browser connection lost")

var (
	// Playwright driver (singleton)
	pwOnce     sync.Once
	pwInstance *playwright.Playwright
	pwErr      error
)

// getPlaywright returns the singleton Playwright driver.
func getPlaywright() (*playwright.Playwright, error) {
	pwOnce.Do(func() {
		// CDP attach needs only the driver, not downloaded browsers
		if err := playwright.Install(&playwright.RunOptions{SkipInstallBrowsers: true}); err != nil {
			pwErr = fmt.Errorf("failed to install playwright driver: %w", err)
			return
		}

		pw, err := playwright.Run()
		if err != nil {
			pwErr = fmt.Errorf("failed to start playwright: %w", err)
			return
		}
		pwInstance = pw
	})

	return pwInstance, pwErr
}

// Session is one live attachment to a Chromium instance, pinned to the
// messages page.
type Session struct {
	mu      sync.Mutex
	browser playwright.Browser
	page    playwright.Page
	log     *slog.Logger
	lost    bool
	closed  bool
}

// Connect attaches to a running Chromium over CDP and finds or opens the
// messages page.
func Connect(ctx context.Context, cdpURL string, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	pw, err := getPlaywright()
	if err != nil {
		return nil, err
	}

	b, err := pw.Chromium.ConnectOverCDP(cdpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CDP at %s: %w", cdpURL, err)
	}

	s := &Session{browser: b, log: log.With("component", "browser")}
	b.OnDisconnected(func(playwright.Browser) {
		s.mu.Lock()
		s.lost = true
		s.mu.Unlock()
		s.log.Warn("browser disconnected")
	})

	if err := s.attachMessagesPage(); err != nil {
		return nil, err
	}
	return s, nil
}

// attachMessagesPage picks an existing messages tab or navigates one there.
func (s *Session) attachMessagesPage() error {
	var first playwright.Page
	for _, bctx := range s.browser.Contexts() {
		for _, p := range bctx.Pages() {
			if first == nil {
				first = p
			}
			if strings.Contains(p.URL(), "freelancer.com/messages") {
				s.page = p
				devlog.Printf("[Browser] attached to existing messages tab: %s", p.URL())
				return nil
			}
		}
	}

	page := first
	if page == nil {
		var bctx playwright.BrowserContext
		if ctxs := s.browser.Contexts(); len(ctxs) > 0 {
			bctx = ctxs[0]
		} else {
			var err error
			bctx, err = s.browser.NewContext()
			if err != nil {
				return fmt.Errorf("failed to create browser context: %w", err)
			}
		}
		var err error
		page, err = bctx.NewPage()
		if err != nil {
			return fmt.Errorf("failed to open page: %w", err)
		}
	}

	if _, err := page.Goto(MessagesURL); err != nil {
		return fmt.Errorf("failed to open messages page: %w", err)
	}
	s.page = page
	devlog.Printf("[Browser] opened messages tab")
	return nil
}

// alive returns the page, or ErrDisconnected once the connection dropped.
func (s *Session) alive() (playwright.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.lost || s.page == nil {
		return nil, ErrDisconnected
	}
	return s.page, nil
}

// fail latches the lost flag when an error smells like a dead connection.
func (s *Session) fail(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Target closed") ||
		strings.Contains(msg, "has been closed") ||
		!s.browser.IsConnected() {
		s.mu.Lock()
		s.lost = true
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return err
}

// URL returns the current page URL, "" when disconnected.
func (s *Session) URL() string {
	page, err := s.alive()
	if err != nil {
		return ""
	}
	return page.URL()
}

// Content returns the full page HTML.
func (s *Session) Content(ctx context.Context) (string, error) {
	page, err := s.alive()
	if err != nil {
		return "", err
	}
	html, err := page.Content()
	if err != nil {
		return "", s.fail(err)
	}
	return html, nil
}

// Snapshot returns the page parsed for the injection controller. Also the
// PanelDriver snapshot.
func (s *Session) Snapshot(ctx context.Context) (*dom.Document, error) {
	html, err := s.Content(ctx)
	if err != nil {
		return nil, err
	}
	return dom.Parse(html)
}

// Goto navigates the attached tab.
func (s *Session) Goto(url string) error {
	page, err := s.alive()
	if err != nil {
		return err
	}
	if _, err := page.Goto(url); err != nil {
		return s.fail(err)
	}
	return nil
}

// evaluate runs a JS function on the page.
func (s *Session) evaluate(script string, arg any) (any, error) {
	page, err := s.alive()
	if err != nil {
		return nil, err
	}
	var res any
	if arg != nil {
		res, err = page.Evaluate(script, arg)
	} else {
		res, err = page.Evaluate(script)
	}
	if err != nil {
		return nil, s.fail(err)
	}
	return res, nil
}

// expose registers a page-global function backed by a Go callback.
func (s *Session) expose(name string, fn func(args []any)) error {
	page, err := s.alive()
	if err != nil {
		return err
	}
	return page.ExposeFunction(name, func(args ...any) any {
		fn(args)
		return nil
	})
}

// Close disconnects from the browser without closing the user's windows.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	// ConnectOverCDP sessions: Close drops the connection, not the browser
	return s.browser.Close()
}
