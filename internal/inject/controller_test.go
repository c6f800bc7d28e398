package inject

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salespulse/bridge/internal/crm"
	"github.com/salespulse/bridge/internal/dom"
)

const inboxURL = "https://www.freelancer.com/messages/thread/12345"

const inboxPage = `<html><body>
<app-messaging-header>
  <div class="Header-details-name">Alice Smith</div>
  <a href="/projects/logo-design-98765">Logo design project</a>
</app-messaging-header>
<app-messaging-chat-details-redesign>
  <a href="/u/alicesmith">@alicesmith</a>
  <div class="ChatContext-cta-container"><button>Create quote</button></div>
</app-messaging-chat-details-redesign>
</body></html>`

func widgetPage(usernames ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, u := range usernames {
		fmt.Fprintf(&b, `
<app-messaging-chat-contents>
  <app-messaging-header>
    <div class="Header-details-name">Name of %s</div>
    <a href="/u/%s">@%s</a>
    <a href="/projects/some-project-1">Some project</a>
  </app-messaging-header>
  <app-messaging-context-box>
    <div class="ContextBox-topContextButtons"></div>
  </app-messaging-context-box>
</app-messaging-chat-contents>`, u, u, u)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func listPage(usernames ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, u := range usernames {
		fmt.Fprintf(&b, `
<fl-list-item fltrackinglabel="MessagingThreadListItem">
  <app-messaging-thread-list-item-name><p class="Name">Someone</p><p>@%s</p></app-messaging-thread-list-item-name>
  <div class="Container Subtitle"><span>last message</span></div>
</fl-list-item>`, u)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// fakeAPI answers checks synchronously from canned data and records calls.
type fakeAPI struct {
	mu sync.Mutex

	leadByChatURL  map[string]*crm.Lead
	customerByName map[string]*crm.Customer
	batchResults   map[string]crm.BatchEntry
	batchErr       error
	batchCalls     int
	batchUsernames [][]string
	leadCheckCalls int
	customerCalls  int
}

func (f *fakeAPI) CheckLead(_ context.Context, chatURL string) (*crm.LeadCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leadCheckCalls++
	if lead, ok := f.leadByChatURL[chatURL]; ok {
		return &crm.LeadCheck{Success: true, Exists: true, Lead: lead}, nil
	}
	return &crm.LeadCheck{Success: true}, nil
}

func (f *fakeAPI) CheckCustomer(_ context.Context, username string) (*crm.CustomerCheck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerCalls++
	if cust, ok := f.customerByName[username]; ok {
		return &crm.CustomerCheck{Success: true, Exists: true, Customer: cust}, nil
	}
	return &crm.CustomerCheck{Success: true}, nil
}

func (f *fakeAPI) BatchCheckLeads(_ context.Context, usernames []string) (map[string]crm.BatchEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	f.batchUsernames = append(f.batchUsernames, append([]string(nil), usernames...))
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make(map[string]crm.BatchEntry)
	for _, u := range usernames {
		if e, ok := f.batchResults[u]; ok {
			out[u] = e
		}
	}
	return out, nil
}

func testConfig() Config {
	return Config{
		PanelPollAttempts: 5,
		PanelPollInterval: time.Millisecond,
		BadgeDebounce:     time.Millisecond,
	}
}

func mustParse(t *testing.T, html string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(html)
	require.NoError(t, err)
	return doc
}

// applyPlan mirrors the browser layer's plan semantics against a snapshot
// string so tests can feed the controller its own output.
func applyPlan(t *testing.T, html string, plan *Plan) string {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	for _, op := range plan.Ops {
		switch op.Action {
		case ActionInsert:
			target := doc.Find(op.Selector).Eq(op.Index)
			require.Positive(t, target.Length(), "insert anchor not found: %s [%d]", op.Selector, op.Index)
			if op.Position == PositionPrepend {
				target.PrependHtml(op.HTML)
			} else {
				target.AfterHtml(op.HTML)
			}
		case ActionReplace:
			doc.Find(op.Selector).ReplaceWithHtml(op.HTML)
		case ActionRemove:
			doc.Find(op.Selector).Remove()
		}
	}

	out, err := doc.Html()
	require.NoError(t, err)
	return out
}

func sidebarState(c *Controller) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sidebar == nil {
		return StateLoading
	}
	return c.sidebar.State
}

func widgetState(c *Controller, username string) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.widgets[username]
	if !ok {
		return StateLoading, false
	}
	return a.State, true
}

// ----------------------------------------------------------------------
// Sidebar
// ----------------------------------------------------------------------

func TestSidebarInsertsLoadingThenSettles(t *testing.T) {
	api := &fakeAPI{leadByChatURL: map[string]*crm.Lead{
		inboxURL: {ID: 7, IsOwnedByCurrentUser: true, Stage: &crm.Stage{ID: 7, Name: "Negotiation", Color: "#f59e0b"}},
	}}
	c := NewController(api, testConfig(), nil)

	plan := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	require.Len(t, plan.Ops, 1)
	assert.Equal(t, ActionInsert, plan.Ops[0].Action)
	assert.Contains(t, plan.Ops[0].HTML, "Checking...")
	assert.Contains(t, plan.Ops[0].HTML, `data-sp-state="loading"`)

	applied := applyPlan(t, inboxPage, plan)

	require.Eventually(t, func() bool { return sidebarState(c) == StateEdit }, 2*time.Second, 5*time.Millisecond)

	plan2 := c.Reconcile(mustParse(t, applied), inboxURL)
	require.Len(t, plan2.Ops, 1)
	assert.Equal(t, ActionReplace, plan2.Ops[0].Action)
	assert.Contains(t, plan2.Ops[0].HTML, "Edit Lead")
	assert.Contains(t, plan2.Ops[0].HTML, "Negotiation")
	assert.Contains(t, plan2.Ops[0].HTML, "#f59e0b")

	// Converged: snapshot reflecting the edit fragment yields no ops
	final := applyPlan(t, applied, plan2)
	assert.True(t, c.Reconcile(mustParse(t, final), inboxURL).Empty())
}

func TestSidebarReconcileIdempotentOnUnchangedSnapshot(t *testing.T) {
	c := NewController(nil, testConfig(), nil)

	plan := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	require.False(t, plan.Empty())

	// Same snapshot again: the insert is already planned, nothing new
	plan2 := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	assert.True(t, plan2.Empty())
}

func TestSidebarOtherOwnerDisabled(t *testing.T) {
	api := &fakeAPI{leadByChatURL: map[string]*crm.Lead{
		inboxURL: {ID: 9, IsOwnedByCurrentUser: false, OwnerFirstName: "Dana", Stage: &crm.Stage{Name: "Contacted", Color: "#3b82f6"}},
	}}
	c := NewController(api, testConfig(), nil)

	plan := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	applied := applyPlan(t, inboxPage, plan)

	require.Eventually(t, func() bool { return sidebarState(c) == StateOtherOwner }, 2*time.Second, 5*time.Millisecond)

	plan2 := c.Reconcile(mustParse(t, applied), inboxURL)
	require.Len(t, plan2.Ops, 1)
	assert.Contains(t, plan2.Ops[0].HTML, "Dana")
	assert.Contains(t, plan2.Ops[0].HTML, "disabled")
	assert.Contains(t, plan2.Ops[0].HTML, `data-sp-state="owner"`)
}

func TestSidebarUnconfiguredSettlesToSaveWithoutRequests(t *testing.T) {
	c := NewController(nil, testConfig(), nil)

	plan := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	require.Len(t, plan.Ops, 1)

	// No API: state resolves synchronously to save
	assert.Equal(t, StateSave, sidebarState(c))

	applied := applyPlan(t, inboxPage, plan)
	plan2 := c.Reconcile(mustParse(t, applied), inboxURL)
	require.Len(t, plan2.Ops, 1)
	assert.Contains(t, plan2.Ops[0].HTML, "Save Lead")
}

func TestURLChangeResetsState(t *testing.T) {
	api := &fakeAPI{}
	c := NewController(api, testConfig(), nil)

	plan := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	require.False(t, plan.Empty())
	applied := applyPlan(t, inboxPage, plan)

	// Navigation: stale fragment from the old thread is swept, state rebuilt
	otherURL := "https://www.freelancer.com/messages/thread/99999"
	plan2 := c.Reconcile(mustParse(t, applied), otherURL)

	var hasRemove, hasInsert bool
	for _, op := range plan2.Ops {
		if op.Action == ActionRemove {
			hasRemove = true
		}
		if op.Action == ActionInsert {
			hasInsert = true
		}
	}
	assert.True(t, hasRemove, "stale fragment should be removed")
	assert.True(t, hasInsert, "fresh anchor should be inserted")
}

// ----------------------------------------------------------------------
// Widgets
// ----------------------------------------------------------------------

func TestWidgetButtonsPerConversation(t *testing.T) {
	api := &fakeAPI{customerByName: map[string]*crm.Customer{
		"alice": {ID: 1, Name: "Alice", Leads: []crm.Lead{{ID: 3, IsOwnedByCurrentUser: true, Stage: &crm.Stage{Name: "New", Color: "#6b7280"}}}},
	}}
	c := NewController(api, testConfig(), nil)

	page := widgetPage("alice", "bob")
	plan := c.Reconcile(mustParse(t, page), inboxURL)

	var inserts int
	for _, op := range plan.Ops {
		if op.Action == ActionInsert && strings.Contains(op.HTML, "salespulse-widget-btn-container") {
			inserts++
		}
	}
	assert.Equal(t, 2, inserts)

	require.Eventually(t, func() bool {
		sa, ok1 := widgetState(c, "alice")
		sb, ok2 := widgetState(c, "bob")
		return ok1 && ok2 && sa == StateEdit && sb == StateSave
	}, 2*time.Second, 5*time.Millisecond)

	applied := applyPlan(t, page, plan)
	plan2 := c.Reconcile(mustParse(t, applied), inboxURL)

	var aliceHTML, bobHTML string
	for _, op := range plan2.Ops {
		if strings.Contains(op.HTML, `data-sp-username="alice"`) {
			aliceHTML = op.HTML
		}
		if strings.Contains(op.HTML, `data-sp-username="bob"`) {
			bobHTML = op.HTML
		}
	}
	assert.Contains(t, aliceHTML, "Edit Lead")
	assert.Contains(t, bobHTML, "Save Lead")
}

func TestWidgetContextCapturedAtInjection(t *testing.T) {
	c := NewController(nil, testConfig(), nil)

	c.Reconcile(mustParse(t, widgetPage("alice")), inboxURL)

	c.mu.Lock()
	a := c.widgets["alice"]
	c.mu.Unlock()
	require.NotNil(t, a)

	assert.Equal(t, "Name of alice", a.Context.CustomerName)
	assert.Equal(t, "alice", a.Context.Username)
	assert.Equal(t, "Some project", a.Context.ProjectTitle)
	assert.Equal(t, "https://www.freelancer.com/projects/some-project-1", a.Context.ProjectURL)
	assert.Equal(t, "https://www.freelancer.com/u/alice", a.Context.ProfileURL)
}

func TestMarkSavedTransitionsWidgetToEdit(t *testing.T) {
	c := NewController(nil, testConfig(), nil)

	page := widgetPage("alice")
	plan := c.Reconcile(mustParse(t, page), inboxURL)
	applied := applyPlan(t, page, plan)

	lead := &crm.Lead{ID: 12, IsOwnedByCurrentUser: true, Stage: &crm.Stage{Name: "New", Color: "#6b7280"}}
	c.MarkSaved("alice", lead)

	state, ok := widgetState(c, "alice")
	require.True(t, ok)
	assert.Equal(t, StateEdit, state)

	plan2 := c.Reconcile(mustParse(t, applied), inboxURL)
	require.Len(t, plan2.Ops, 1)
	assert.Equal(t, ActionReplace, plan2.Ops[0].Action)
	assert.Contains(t, plan2.Ops[0].HTML, "Edit Lead")
}

// ----------------------------------------------------------------------
// Thread-list badges
// ----------------------------------------------------------------------

func TestListBadgesSingleBatchRequest(t *testing.T) {
	api := &fakeAPI{batchResults: map[string]crm.BatchEntry{
		"alice": {Exists: true, IsOwned: true, Stage: &crm.Stage{Name: "Negotiation", Color: "#f59e0b"}},
		"bob":   {Exists: true, OwnerFirstName: "Dana"},
	}}
	c := NewController(api, testConfig(), nil)

	page := listPage("alice", "bob", "carol")
	plan := c.Reconcile(mustParse(t, page), "https://www.freelancer.com/messages")

	var loading int
	for _, op := range plan.Ops {
		if op.Action == ActionInsert {
			assert.Contains(t, op.HTML, "salespulse-list-loading-badge")
			loading++
		}
	}
	assert.Equal(t, 3, loading)

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.batchCalls == 1
	}, 2*time.Second, 5*time.Millisecond)

	api.mu.Lock()
	require.Len(t, api.batchUsernames, 1)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, api.batchUsernames[0])
	api.mu.Unlock()

	applied := applyPlan(t, page, plan)
	plan2 := c.Reconcile(mustParse(t, applied), "https://www.freelancer.com/messages")
	require.Len(t, plan2.Ops, 3)

	byUser := map[string]string{}
	for _, op := range plan2.Ops {
		assert.Equal(t, ActionReplace, op.Action)
		for _, u := range []string{"alice", "bob", "carol"} {
			if strings.Contains(op.HTML, fmt.Sprintf(`data-sp-username="%s"`, u)) {
				byUser[u] = op.HTML
			}
		}
	}
	assert.Contains(t, byUser["alice"], "Negotiation")
	assert.Contains(t, byUser["alice"], "#f59e0b")
	assert.Contains(t, byUser["bob"], "Dana")
	assert.Contains(t, byUser["carol"], "Fresh")

	// No further batch requests for already-decorated rows
	final := applyPlan(t, applied, plan2)
	assert.True(t, c.Reconcile(mustParse(t, final), "https://www.freelancer.com/messages").Empty())
	api.mu.Lock()
	assert.Equal(t, 1, api.batchCalls)
	api.mu.Unlock()
}

func TestListBadgesBatchFailureClearsSpinners(t *testing.T) {
	api := &fakeAPI{batchErr: fmt.Errorf("boom")}
	c := NewController(api, testConfig(), nil)

	page := listPage("alice")
	plan := c.Reconcile(mustParse(t, page), "https://www.freelancer.com/messages")
	applied := applyPlan(t, page, plan)

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.batchCalls >= 1
	}, 2*time.Second, 5*time.Millisecond)

	// The entry was forgotten; the pass removes the orphaned spinner and
	// schedules a retry for the now-undecorated row
	plan2 := c.Reconcile(mustParse(t, applied), "https://www.freelancer.com/messages")
	var removed bool
	for _, op := range plan2.Ops {
		if op.Action == ActionRemove {
			removed = true
		}
	}
	assert.True(t, removed, "loading badge must not be left spinning")
}

func TestMarkSavedClearsListBadge(t *testing.T) {
	api := &fakeAPI{batchResults: map[string]crm.BatchEntry{}}
	c := NewController(api, testConfig(), nil)

	page := listPage("alice")
	plan := c.Reconcile(mustParse(t, page), "https://www.freelancer.com/messages")
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.batchCalls == 1
	}, 2*time.Second, 5*time.Millisecond)

	applied := applyPlan(t, page, plan)
	plan2 := c.Reconcile(mustParse(t, applied), "https://www.freelancer.com/messages")
	applied = applyPlan(t, applied, plan2)

	// Save happened elsewhere: badge state for the row is dropped
	c.MarkSaved("alice", &crm.Lead{ID: 1, Customer: &crm.Customer{FreelancerUsername: "alice"}})

	plan3 := c.Reconcile(mustParse(t, applied), "https://www.freelancer.com/messages")
	var hasRemove bool
	for _, op := range plan3.Ops {
		if op.Action == ActionRemove {
			hasRemove = true
		}
	}
	assert.True(t, hasRemove, "stale badge should be cleared for redraw")
}

// ----------------------------------------------------------------------
// Active chat-URL resolution
// ----------------------------------------------------------------------

type fakePanel struct {
	mu        sync.Mutex
	opened    int
	backs     int
	snapshots int
	linkAfter int // snapshot count after which the link appears
}

func (p *fakePanel) OpenDetailPanel(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened++
	return true, nil
}

func (p *fakePanel) NavigateBack(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backs++
	return nil
}

func (p *fakePanel) Snapshot(context.Context) (*dom.Document, error) {
	p.mu.Lock()
	p.snapshots++
	ready := p.snapshots >= p.linkAfter
	p.mu.Unlock()

	if !ready {
		return dom.Parse("<html><body></body></html>")
	}
	return dom.Parse(`<html><body><app-messaging-chat-details>
		<div class="OpenChatInInbox"><fl-link fltrackinglabel="OpenChatInInbox-link"><a href="/messages/thread/777888">Open in full screen</a></fl-link></div>
	</app-messaging-chat-details></body></html>`)
}

func TestResolveChatURLPollsDetailPanel(t *testing.T) {
	c := NewController(nil, testConfig(), nil)
	c.Reconcile(mustParse(t, widgetPage("alice")), inboxURL)

	panel := &fakePanel{linkAfter: 3}
	url := c.ResolveChatURL(context.Background(), panel, "alice")

	assert.Equal(t, "https://www.freelancer.com/messages/thread/777888", url)
	assert.Equal(t, 1, panel.opened)
	assert.GreaterOrEqual(t, panel.snapshots, 3)

	// The resolved URL sticks to the anchor context
	c.mu.Lock()
	assert.Equal(t, url, c.widgets["alice"].Context.ChatURL)
	c.mu.Unlock()

	// Closing the form navigates the widget back
	c.FinishPanel(context.Background(), panel, "alice")
	assert.Equal(t, 1, panel.backs)
}

func TestResolveChatURLGivesUpAfterBoundedAttempts(t *testing.T) {
	c := NewController(nil, testConfig(), nil)
	c.Reconcile(mustParse(t, widgetPage("alice")), inboxURL)

	panel := &fakePanel{linkAfter: 100}
	url := c.ResolveChatURL(context.Background(), panel, "alice")

	assert.Equal(t, "", url)
	assert.Equal(t, testConfig().PanelPollAttempts, panel.snapshots)
}

func TestResolveChatURLSkippedOnEditFlow(t *testing.T) {
	c := NewController(nil, testConfig(), nil)
	c.Reconcile(mustParse(t, widgetPage("alice")), inboxURL)
	c.MarkSaved("alice", &crm.Lead{ID: 5, IsOwnedByCurrentUser: true})

	panel := &fakePanel{linkAfter: 1}
	url := c.ResolveChatURL(context.Background(), panel, "alice")

	assert.Equal(t, "", url)
	assert.Equal(t, 0, panel.opened)
}

// ----------------------------------------------------------------------
// Click routing
// ----------------------------------------------------------------------

func TestAnchorByFragment(t *testing.T) {
	c := NewController(nil, testConfig(), nil)
	plan := c.Reconcile(mustParse(t, inboxPage), inboxURL)
	require.False(t, plan.Empty())

	c.mu.Lock()
	id := c.sidebar.FragmentID
	c.mu.Unlock()

	a := c.AnchorByFragment(id)
	require.NotNil(t, a)
	assert.Equal(t, KindSidebar, a.Kind)

	assert.Nil(t, c.AnchorByFragment("nope"))
}
