package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/bep/debounce"
	"github.com/spf13/cobra"

	"github.com/salespulse/bridge/internal/browser"
	"github.com/salespulse/bridge/internal/config"
	"github.com/salespulse/bridge/internal/crm"
	"github.com/salespulse/bridge/internal/daemon"
	"github.com/salespulse/bridge/internal/dom"
	"github.com/salespulse/bridge/internal/form"
	"github.com/salespulse/bridge/internal/inject"
	"github.com/salespulse/bridge/internal/notify"
	"github.com/salespulse/bridge/internal/profile"
	"github.com/salespulse/bridge/internal/server"
	"github.com/salespulse/bridge/internal/updater"
	"github.com/salespulse/bridge/internal/version"
)

const defaultCDPPort = 9222

// updateInterval is how often the CRM is polled for a newer bridge build.
const updateInterval = 6 * time.Hour

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Attach to the browser and start the lead bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge()
		},
	}
}

// bridge ties the session, the injection controller and the form flow
// together for one run.
type bridge struct {
	cfg     *config.Settings
	coord   *daemon.Coordinator
	session *browser.Session
	inj     *inject.Controller
	profile *profile.Service

	mu           sync.Mutex
	api          *crm.Client
	forms        *form.Service
	user         string
	active       *form.Form
	disconnected bool
}

func runBridge() error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := daemon.OpenStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer store.Close()
	coord := daemon.NewCoordinator(store, log, notify.Send)

	b := &bridge{
		cfg:     cfg,
		coord:   coord,
		inj:     inject.NewController(nil, inject.Config{}, log),
		profile: profile.NewService(),
	}
	b.applySettings(cfg)

	// Browser: attach to a running instance, or launch our own
	cdpURL := cfg.CDPURL
	if cdpURL == "" || !browser.IsReachable(cdpURL, 2*time.Second) {
		launched, err := browser.Launch(browser.LaunchOptions{
			ExecutablePath: cfg.BrowserPath,
			UserDataDir:    cfg.ProfileDir(),
			CDPPort:        cdpPort(cdpURL),
			Headless:       cfg.Headless,
			StartURL:       browser.MessagesURL,
		})
		if err != nil {
			return err
		}
		defer launched.Stop(5 * time.Second)
		cdpURL = launched.CDPURL()
	}

	session, err := browser.Connect(ctx, cdpURL, log)
	if err != nil {
		return err
	}
	defer session.Close()
	b.session = session
	log.Info("attached to browser", "cdp_url", cdpURL, "page", session.URL())

	// Page bindings
	trigger := make(chan struct{}, 1)
	kick := func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	}
	deb := debounce.New(200 * time.Millisecond)
	if err := session.EnsureStyles(ctx); err != nil {
		return err
	}
	if err := session.ExposeClickHandler(func(id string) { go b.onFragmentClick(ctx, id) }); err != nil {
		return err
	}
	if err := session.ExposeModalHandler(func(action string) { go b.onModalAction(ctx, action, kick) }); err != nil {
		return err
	}
	if err := session.InstallMutationObserver(func() { deb(kick) }); err != nil {
		return err
	}

	// Status surface
	srv := server.New(cfg.StatusPort, coord, b, log)
	if err := srv.Start(); err != nil {
		return err
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	// Update polling
	if api := b.client(); api != nil {
		checker := updater.NewBackgroundChecker(api, version.Version, updateInterval, coord.OnUpdate)
		go checker.Run(ctx)
	}

	// Settings reloads swap the API live
	go func() {
		err := config.Watch(ctx, configPath(), func(fresh *config.Settings) {
			log.Info("settings reloaded")
			b.applySettings(fresh)
			kick()
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("config watch stopped", "error", err)
		}
	}()

	// Observer loop
	ticker := time.NewTicker(time.Duration(cfg.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	log.Info("bridge running", "poll_ms", cfg.PollIntervalMS, "status_port", cfg.StatusPort)
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down")
			return nil
		case <-ticker.C:
		case <-trigger:
		}

		if err := b.pass(ctx); err != nil {
			if errors.Is(err, browser.ErrDisconnected) {
				b.setDisconnected()
				log.Error("browser connection lost; run 'salespulse run' again to reconnect")
				return err
			}
			log.Warn("reconcile pass failed", "error", err)
		}
	}
}

// pass runs one snapshot → reconcile → apply cycle.
func (b *bridge) pass(ctx context.Context) error {
	html, err := b.session.Content(ctx)
	if err != nil {
		return err
	}
	doc, err := dom.Parse(html)
	if err != nil {
		return err
	}
	// SPA route swaps can rebuild <head>; cheap no-op when present
	if err := b.session.EnsureStyles(ctx); err != nil {
		return err
	}
	plan := b.inj.Reconcile(doc, b.session.URL())
	return b.session.Apply(ctx, plan)
}

// applySettings wires (or unwires) the CRM client from fresh settings.
func (b *bridge) applySettings(cfg *config.Settings) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg = cfg

	if !cfg.Configured() {
		b.api = nil
		b.forms = form.NewService(nil, b.profile, log)
		b.user = ""
		b.inj.SetAPI(nil)
		return
	}

	api := crm.NewClient(cfg.APIURL(), cfg.Token)
	b.api = api
	b.forms = form.NewService(api, b.profile, log)
	b.inj.SetAPI(api)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		u, err := api.Verify(ctx)
		if err != nil {
			log.Warn("token verification failed", "error", err)
			return
		}
		b.mu.Lock()
		b.user = u.Name
		b.mu.Unlock()
		log.Info("verified CRM account", "user", u.Name)
	}()
}

func (b *bridge) client() *crm.Client {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.api
}

func (b *bridge) formService() *form.Service {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forms
}

func (b *bridge) setDisconnected() {
	b.mu.Lock()
	b.disconnected = true
	b.mu.Unlock()
}

// ----------------------------------------------------------------------
// server.StatusSource
// ----------------------------------------------------------------------

func (b *bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session != nil && !b.disconnected
}

func (b *bridge) Configured() bool {
	return b.client() != nil
}

func (b *bridge) User() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.user
}

func (b *bridge) PageURL() string {
	return b.inj.PageURL()
}

// ----------------------------------------------------------------------
// Click and form flow
// ----------------------------------------------------------------------

func (b *bridge) onFragmentClick(ctx context.Context, fragmentID string) {
	a := b.inj.AnchorByFragment(fragmentID)
	if a == nil {
		return
	}
	edit := a.State == inject.StateEdit
	pctx := a.Context

	// Unconfigured: park the capture for a local consumer instead
	if b.client() == nil {
		if err := b.coord.SetPending(&daemon.PendingCapture{
			CustomerName: pctx.CustomerName,
			Username:     pctx.Username,
			ProfileURL:   pctx.ProfileURL,
			ProjectTitle: pctx.ProjectTitle,
			ProjectURL:   pctx.ProjectURL,
			ChatURL:      pctx.ChatURL,
		}); err != nil {
			log.Warn("failed to park capture", "error", err)
		}
		log.Info("no CRM configured; capture parked", "username", pctx.Username)
		return
	}

	// Widgets may need the thread URL resolved through the detail panel
	if a.Kind == inject.KindWidget && !edit {
		if u := b.inj.ResolveChatURL(ctx, b.session, a.Key); u != "" {
			pctx.ChatURL = u
		}
	}

	f, err := b.formService().Open(ctx, form.Request{
		Key:     a.Key,
		Edit:    edit,
		Lead:    a.Lead,
		Context: pctx,
	})
	if err != nil {
		log.Warn("failed to open lead form", "key", a.Key, "error", err)
		b.inj.FinishPanel(ctx, b.session, a.Key)
		return
	}

	b.mu.Lock()
	b.active = f
	b.mu.Unlock()

	if err := b.session.ShowModal(ctx, form.RenderModal(f)); err != nil {
		log.Warn("failed to show lead form", "error", err)
	}
}

func (b *bridge) onModalAction(ctx context.Context, action string, kick func()) {
	b.mu.Lock()
	f := b.active
	b.mu.Unlock()
	if f == nil {
		return
	}

	if action != "submit" {
		_ = b.session.CloseModal(ctx)
		b.mu.Lock()
		b.active = nil
		b.mu.Unlock()
		b.inj.FinishPanel(ctx, b.session, f.Key)
		return
	}

	values, err := b.session.ModalValues(ctx)
	if err != nil {
		log.Warn("failed to read form values", "error", err)
		return
	}
	// Editable inputs override the prefill; hidden context fields stay
	f.Fields.CustomerName = values.CustomerName
	f.Fields.Title = values.Title
	f.Fields.Amount = values.Amount
	f.Fields.Currency = values.Currency
	f.Fields.StageID = values.StageID
	f.Fields.Description = values.Description

	lead, err := b.formService().Submit(ctx, f)
	if err != nil {
		msg := err.Error()
		var apiErr *crm.APIError
		if errors.As(err, &apiErr) {
			msg = apiErr.Message
		}
		_ = b.session.SetModalError(ctx, msg)
		return
	}

	_ = b.session.CloseModal(ctx)
	b.mu.Lock()
	b.active = nil
	b.mu.Unlock()

	b.inj.MarkSaved(f.Key, lead)
	b.inj.FinishPanel(ctx, b.session, f.Key)
	kick()
}

// cdpPort extracts the port from a CDP URL, falling back to the default.
func cdpPort(cdpURL string) int {
	if cdpURL == "" {
		return defaultCDPPort
	}
	u, err := url.Parse(cdpURL)
	if err != nil {
		return defaultCDPPort
	}
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			return n
		}
	}
	return defaultCDPPort
}
