package inject

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bep/debounce"
	"github.com/google/uuid"

	"github.com/salespulse/bridge/internal/crm"
	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/dom"
)

// API is the slice of the CRM client the controller needs for existence
// checks. Nil means the bridge is unconfigured: anchors settle to StateSave
// without any request.
type API interface {
	CheckLead(ctx context.Context, chatURL string) (*crm.LeadCheck, error)
	CheckCustomer(ctx context.Context, username string) (*crm.CustomerCheck, error)
	BatchCheckLeads(ctx context.Context, usernames []string) (map[string]crm.BatchEntry, error)
}

// Config tunes controller timing. Zero values pick the defaults.
type Config struct {
	// PanelPollAttempts bounds the detail-panel link poll (default 20).
	PanelPollAttempts int
	// PanelPollInterval is the gap between poll attempts (default 100ms).
	PanelPollInterval time.Duration
	// BadgeDebounce coalesces batch-check triggers (default 300ms).
	BadgeDebounce time.Duration
}

func (c Config) withDefaults() Config {
	if c.PanelPollAttempts <= 0 {
		c.PanelPollAttempts = 20
	}
	if c.PanelPollInterval <= 0 {
		c.PanelPollInterval = 100 * time.Millisecond
	}
	if c.BadgeDebounce <= 0 {
		c.BadgeDebounce = 300 * time.Millisecond
	}
	return c
}

// Controller reconciles page snapshots against its anchor state and emits
// mutation plans.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	api API

	pageURL string
	gen     uint64

	sidebar *Anchor
	widgets map[string]*Anchor

	badges        map[string]*badgeEntry
	badgePending  map[string]struct{}
	badgeBusy     bool
	badgeDebounce func(func())

	// pendingPanel remembers widgets whose detail panel was opened during
	// create-flow chat-URL capture, so the form close can navigate back.
	pendingPanel map[string]bool
}

// NewController creates a controller. api may be nil (unconfigured).
func NewController(api API, cfg Config, log *slog.Logger) *Controller {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		cfg:           cfg,
		log:           log.With("component", "inject"),
		api:           api,
		widgets:       make(map[string]*Anchor),
		badges:        make(map[string]*badgeEntry),
		badgePending:  make(map[string]struct{}),
		badgeDebounce: debounce.New(cfg.BadgeDebounce),
		pendingPanel:  make(map[string]bool),
	}
}

// SetAPI swaps the CRM client, e.g. after a settings reload.
func (c *Controller) SetAPI(api API) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.api = api
}

// Reset drops all anchor state. Called on page URL changes; in-flight check
// results for the old page are discarded by generation.
func (c *Controller) Reset(pageURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(pageURL)
}

func (c *Controller) resetLocked(pageURL string) {
	devlog.Printf("[Inject] reset for %s", pageURL)
	c.pageURL = pageURL
	c.gen++
	c.sidebar = nil
	c.widgets = make(map[string]*Anchor)
	c.badges = make(map[string]*badgeEntry)
	c.badgePending = make(map[string]struct{})
	c.badgeBusy = false
	c.pendingPanel = make(map[string]bool)
}

// Reconcile inspects a snapshot and returns the mutations that bring the
// page in line with controller state. It is deterministic and convergent:
// once a snapshot reflects all prior plans and no checks are in flight,
// the plan is empty.
func (c *Controller) Reconcile(doc *dom.Document, pageURL string) *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pageURL != c.pageURL {
		c.resetLocked(pageURL)
	}

	plan := &Plan{}
	if !strings.Contains(pagePath(pageURL), "/messages") {
		c.sweepUnknown(doc, plan)
		return plan
	}

	c.reconcileSidebar(doc, plan)
	c.reconcileWidgets(doc, plan)
	c.reconcileListBadges(doc, plan)
	c.sweepUnknown(doc, plan)

	if !plan.Empty() {
		devlog.Printf("[Inject] plan: %d op(s)", len(plan.Ops))
	}
	return plan
}

func pagePath(pageURL string) string {
	if i := strings.Index(pageURL, "://"); i >= 0 {
		rest := pageURL[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			return rest[j:]
		}
		return "/"
	}
	return pageURL
}

// ----------------------------------------------------------------------
// Sidebar
// ----------------------------------------------------------------------

func (c *Controller) reconcileSidebar(doc *dom.Document, plan *Plan) {
	cta := doc.Find("app-messaging-chat-details-redesign .ChatContext-cta-container").First()
	if cta.Length() == 0 {
		// Sidebar gone; if we had an anchor and its fragment also vanished
		// the view has changed, drop it.
		if c.sidebar != nil && doc.Find(fragSel(c.sidebar.FragmentID)).Length() == 0 {
			c.sidebar = nil
		}
		return
	}

	if c.sidebar == nil {
		a := &Anchor{
			Key:        "sidebar",
			Kind:       KindSidebar,
			State:      StateLoading,
			FragmentID: uuid.NewString(),
			Context:    sidebarContext(doc, c.pageURL),
		}
		c.sidebar = a
		a.planned = true
		plan.insert("app-messaging-chat-details-redesign .ChatContext-cta-container", 0, PositionAfter, renderSidebar(a))
		c.startSidebarCheck(a, c.pageURL)
		return
	}

	c.syncFragment(doc, plan, c.sidebar, renderSidebar,
		"app-messaging-chat-details-redesign .ChatContext-cta-container", 0, PositionAfter)
}

// startSidebarCheck resolves the sidebar button state from the lead lookup
// for the open thread. Fire-and-forget; staleness is handled by generation.
func (c *Controller) startSidebarCheck(a *Anchor, chatURL string) {
	if c.api == nil {
		a.State = StateSave
		return
	}
	api, gen := c.api, c.gen

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		state, lead, owner := StateSave, (*crm.Lead)(nil), ""
		res, err := api.CheckLead(ctx, chatURL)
		if err != nil {
			c.log.Warn("lead check failed", "chat_url", chatURL, "error", err)
		} else if res.Exists && res.Lead != nil {
			lead = res.Lead
			if res.Lead.IsOwnedByCurrentUser {
				state = StateEdit
			} else {
				state = StateOtherOwner
				owner = res.Lead.OwnerFirstName
			}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		// Check the page hasn't moved on while we were waiting
		if gen != c.gen || c.sidebar == nil || c.sidebar != a {
			return
		}
		a.State, a.Lead, a.OwnerName = state, lead, owner
	}()
}

// ----------------------------------------------------------------------
// Chat widgets
// ----------------------------------------------------------------------

func (c *Controller) reconcileWidgets(doc *dom.Document, plan *Plan) {
	seen := make(map[string]bool)

	doc.Find("app-messaging-context-box .ContextBox-topContextButtons").Each(func(i int, box *goquery.Selection) {
		contextBox := box.Closest("app-messaging-context-box")
		if contextBox.Length() == 0 {
			return
		}
		widget := chatWidgetFor(contextBox)
		if widget == nil {
			return
		}
		username := widgetUsername(widget)
		if username == "" {
			return
		}
		seen[username] = true

		a, ok := c.widgets[username]
		if !ok {
			a = &Anchor{
				Key:        username,
				Kind:       KindWidget,
				State:      StateLoading,
				FragmentID: uuid.NewString(),
				Context:    extractWidgetContext(widget, username),
			}
			c.widgets[username] = a
			a.planned = true
			plan.insert("app-messaging-context-box .ContextBox-topContextButtons", i, PositionPrepend, renderWidget(a))
			c.startWidgetCheck(a, username)
			return
		}

		c.syncFragment(doc, plan, a, renderWidget,
			"app-messaging-context-box .ContextBox-topContextButtons", i, PositionPrepend)
	})

	// Drop anchors whose widget left the page entirely
	for username, a := range c.widgets {
		if !seen[username] && doc.Find(fragSel(a.FragmentID)).Length() == 0 {
			delete(c.widgets, username)
			delete(c.pendingPanel, username)
		}
	}
}

// startWidgetCheck resolves a widget button state from the customer lookup.
// The first lead on the customer decides ownership, matching how the CRM
// presents it.
func (c *Controller) startWidgetCheck(a *Anchor, username string) {
	if c.api == nil {
		a.State = StateSave
		return
	}
	api, gen := c.api, c.gen

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		state, lead, owner := StateSave, (*crm.Lead)(nil), ""
		res, err := api.CheckCustomer(ctx, username)
		if err != nil {
			c.log.Warn("customer check failed", "username", username, "error", err)
		} else if res.Exists && res.Customer != nil && len(res.Customer.Leads) > 0 {
			first := res.Customer.Leads[0]
			lead = &first
			if first.IsOwnedByCurrentUser {
				state = StateEdit
			} else {
				state = StateOtherOwner
				owner = first.OwnerFirstName
			}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			return
		}
		if cur, ok := c.widgets[username]; !ok || cur != a {
			return
		}
		a.State, a.Lead, a.OwnerName = state, lead, owner
	}()
}

// ----------------------------------------------------------------------
// Thread-list badges
// ----------------------------------------------------------------------

func (c *Controller) reconcileListBadges(doc *dom.Document, plan *Plan) {
	seen := make(map[string]bool)

	doc.Find(`fl-list-item[fltrackinglabel="MessagingThreadListItem"]`).Each(func(i int, row *goquery.Selection) {
		username := listRowUsername(row)
		if username == "" {
			return
		}
		seen[username] = true

		// Badges land in the row's subtitle container
		if row.Find(".Container.Subtitle").Length() == 0 {
			return
		}

		e, ok := c.badges[username]
		if !ok {
			e = &badgeEntry{status: badgePending, fragmentID: uuid.NewString(), planned: true}
			c.badges[username] = e
			c.badgePending[username] = struct{}{}
			plan.insert(`fl-list-item[fltrackinglabel="MessagingThreadListItem"] .Container.Subtitle`, c.subtitleIndex(doc, row), PositionPrepend, renderListBadge(username, e))
			return
		}

		frag := row.Find(fragSel(e.fragmentID)).First()
		if frag.Length() == 0 {
			if e.everSeen || !e.planned {
				e.planned = true
				e.everSeen = false
				plan.insert(`fl-list-item[fltrackinglabel="MessagingThreadListItem"] .Container.Subtitle`, c.subtitleIndex(doc, row), PositionPrepend, renderListBadge(username, e))
			}
			return
		}
		e.everSeen = true
		if dom.Attr(frag, "data-sp-state") != e.desiredState().attr() {
			plan.replace(fragSel(e.fragmentID), renderListBadge(username, e))
		}
	})

	// Rows gone from the list: forget their entries once the fragment is
	// gone too, so a returning row re-checks.
	for username, e := range c.badges {
		if !seen[username] && doc.Find(fragSel(e.fragmentID)).Length() == 0 {
			delete(c.badges, username)
			delete(c.badgePending, username)
		}
	}

	if len(c.badgePending) > 0 {
		c.scheduleBatchCheck()
	}
}

// subtitleIndex finds the position of row's subtitle container among all
// subtitle containers, for insert addressing.
func (c *Controller) subtitleIndex(doc *dom.Document, row *goquery.Selection) int {
	target := row.Find(".Container.Subtitle").First()
	if target.Length() == 0 {
		return 0
	}
	idx := 0
	doc.Find(`fl-list-item[fltrackinglabel="MessagingThreadListItem"] .Container.Subtitle`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if s.Nodes[0] == target.Nodes[0] {
			idx = i
			return false
		}
		return true
	})
	return idx
}

// scheduleBatchCheck debounces and fires one batch request for every
// username still pending. The busy flag keeps batches from overlapping.
func (c *Controller) scheduleBatchCheck() {
	if c.api == nil {
		// Unconfigured: nothing to ask; rows settle as fresh
		for username := range c.badgePending {
			if e, ok := c.badges[username]; ok {
				e.status = badgeDone
			}
			delete(c.badgePending, username)
		}
		return
	}
	if c.badgeBusy {
		return
	}
	c.badgeBusy = true
	gen := c.gen
	c.badgeDebounce(func() { c.runBatchCheck(gen) })
}

func (c *Controller) runBatchCheck(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.badgeBusy = false
		c.mu.Unlock()
		return
	}
	usernames := make([]string, 0, len(c.badgePending))
	for u := range c.badgePending {
		usernames = append(usernames, u)
	}
	api := c.api
	c.mu.Unlock()

	if len(usernames) == 0 || api == nil {
		c.mu.Lock()
		c.badgeBusy = false
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	results, err := api.BatchCheckLeads(ctx, usernames)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.badgeBusy = false
	if gen != c.gen {
		return
	}

	if err != nil {
		// Loading badges must not spin forever: forget these rows so the
		// next pass clears them (and a later pass may retry).
		c.log.Warn("batch lead check failed", "count", len(usernames), "error", err)
		for _, u := range usernames {
			delete(c.badges, u)
			delete(c.badgePending, u)
		}
		return
	}

	devlog.Printf("[Inject] batch check answered for %d row(s)", len(usernames))
	for _, u := range usernames {
		delete(c.badgePending, u)
		e, ok := c.badges[u]
		if !ok {
			continue
		}
		e.status = badgeDone
		e.result = results[u]
	}
}

// ----------------------------------------------------------------------
// Shared fragment sync
// ----------------------------------------------------------------------

// syncFragment emits the op (if any) that brings an anchor's fragment in
// line with its state: re-insert when wiped, replace on state change.
func (c *Controller) syncFragment(doc *dom.Document, plan *Plan, a *Anchor, render func(*Anchor) string, anchorSel string, index int, pos Position) {
	frag := doc.Find(fragSel(a.FragmentID)).First()
	if frag.Length() == 0 {
		if a.everSeen || !a.planned {
			a.planned = true
			a.everSeen = false
			plan.insert(anchorSel, index, pos, render(a))
		}
		return
	}
	a.everSeen = true
	if dom.Attr(frag, "data-sp-state") != a.State.attr() {
		plan.replace(fragSel(a.FragmentID), render(a))
	}
}

// sweepUnknown removes fragments whose marker id the controller does not
// know, e.g. leftovers surviving an SPA route change.
func (c *Controller) sweepUnknown(doc *dom.Document, plan *Plan) {
	known := make(map[string]bool)
	if c.sidebar != nil {
		known[c.sidebar.FragmentID] = true
	}
	for _, a := range c.widgets {
		known[a.FragmentID] = true
	}
	for _, e := range c.badges {
		known[e.fragmentID] = true
	}

	doc.Find("[data-sp-id]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("data-sp-id")
		if id != "" && !known[id] {
			plan.remove(fragSel(id))
		}
	})
}

func fragSel(fragmentID string) string {
	return fmt.Sprintf(`[data-sp-id=%q]`, fragmentID)
}

// ----------------------------------------------------------------------
// Click routing and save refresh
// ----------------------------------------------------------------------

// AnchorByFragment resolves a clicked fragment id to its anchor. Returns
// nil for badges and unknown ids; badges are not clickable.
func (c *Controller) AnchorByFragment(fragmentID string) *Anchor {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sidebar != nil && c.sidebar.FragmentID == fragmentID {
		return c.sidebar
	}
	for _, a := range c.widgets {
		if a.FragmentID == fragmentID {
			return a
		}
	}
	return nil
}

// MarkSaved re-stamps an anchor after a successful save, without a network
// round trip, and clears the row badge so the list re-checks.
func (c *Controller) MarkSaved(key string, lead *crm.Lead) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sidebar != nil && key == c.sidebar.Key {
		c.sidebar.State = StateEdit
		c.sidebar.Lead = lead
		c.sidebar.OwnerName = ""
	}
	if a, ok := c.widgets[key]; ok {
		a.State = StateEdit
		a.Lead = lead
		a.OwnerName = ""
	}

	username := key
	if lead != nil && lead.Customer != nil && lead.Customer.FreelancerUsername != "" {
		username = lead.Customer.FreelancerUsername
	}
	delete(c.badges, username)
	delete(c.badgePending, username)
}

// SetChatURL records an actively resolved chat URL on a widget anchor.
// This is the one sanctioned context overwrite.
func (c *Controller) SetChatURL(key, chatURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a, ok := c.widgets[key]; ok && chatURL != "" {
		a.Context.ChatURL = chatURL
	}
}

// PageURL returns the URL of the last reconciled page.
func (c *Controller) PageURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageURL
}
