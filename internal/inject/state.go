// Package inject decides what CRM UI belongs on the messaging page.
//
// The controller is pure with respect to the live page: it reads parsed
// page-HTML snapshots and produces mutation plans. Applying plans, routing
// clicks, and observing DOM churn belong to the browser layer. All anchor
// state lives in memory here; injected fragments carry only marker
// attributes.
package inject

import (
	"github.com/salespulse/bridge/internal/crm"
)

// Kind tells which page surface an anchor decorates.
type Kind int

const (
	// KindSidebar is the single lead button in the inbox detail sidebar.
	KindSidebar Kind = iota
	// KindWidget is a per-conversation button in a floating chat widget.
	KindWidget
	// KindListBadge is a status badge on a thread-list row.
	KindListBadge
)

// State is an anchor's lifecycle state. Every anchor starts in StateLoading
// and settles once its existence check answers (or is skipped).
type State int

const (
	// StateLoading shows a disabled spinner while the check is in flight.
	StateLoading State = iota
	// StateSave offers lead capture; also the safe default on check failure
	// and the resting state when the bridge is unconfigured.
	StateSave
	// StateEdit means the current user owns a lead here.
	StateEdit
	// StateOtherOwner means another agent owns the lead; the control is
	// disabled and shows their name. Only a page reset leaves this state.
	StateOtherOwner
	// StateFresh marks a thread-list row with no lead yet.
	StateFresh
)

// attr returns the data-sp-state marker value for a state.
func (s State) attr() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSave:
		return "save"
	case StateEdit:
		return "edit"
	case StateOtherOwner:
		return "owner"
	case StateFresh:
		return "fresh"
	}
	return "loading"
}

// Context is what could be read off the page around an anchor at injection
// time. It seeds the lead form; empty fields stay empty.
type Context struct {
	CustomerName string
	Username     string
	ProfileURL   string
	ProjectTitle string
	ProjectURL   string
	ChatURL      string
}

// Anchor is the in-memory record for one injected fragment.
type Anchor struct {
	Key        string // "sidebar", or the username for widgets
	Kind       Kind
	State      State
	FragmentID string

	// Lead holds the CRM record backing StateEdit / StateOtherOwner.
	Lead      *crm.Lead
	OwnerName string

	// Context is the page context captured when the anchor was created.
	// It is never silently overwritten; only an explicit successful
	// re-extraction (e.g. active chat-URL resolution) updates it.
	Context Context

	// planned is set once an insert op for this anchor has been emitted.
	planned bool
	// everSeen is set once the fragment has shown up in a snapshot. A
	// fragment that was seen and later vanishes was wiped by the SPA and
	// gets re-inserted.
	everSeen bool
}

// badgeStatus tracks one thread-list row through the batch check.
type badgeStatus int

const (
	badgePending badgeStatus = iota
	badgeDone
)

type badgeEntry struct {
	status     badgeStatus
	fragmentID string
	result     crm.BatchEntry
	planned    bool
	everSeen   bool
}

// desiredState returns the badge state the row should display.
func (b *badgeEntry) desiredState() State {
	if b.status == badgePending {
		return StateLoading
	}
	switch {
	case !b.result.Exists:
		return StateFresh
	case b.result.IsOwned:
		return StateEdit
	default:
		return StateOtherOwner
	}
}
