package inject

import (
	"fmt"
	"html"

	"github.com/salespulse/bridge/internal/crm"
)

// defaultStageColor backs stage badges whose stage has no color set.
const defaultStageColor = "#6b7280"

// Inline SVG icons for the lead buttons.
const (
	iconSave = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M22 12h-4l-3 9L9 3l-3 9H2"/></svg>`
	iconEdit = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M11 4H4a2 2 0 00-2 2v14a2 2 0 002 2h14a2 2 0 002-2v-7"/><path d="M18.5 2.5a2.121 2.121 0 013 3L12 15l-4 1 1-4 9.5-9.5z"/></svg>`
	iconUser = `<svg width="16" height="16" viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="2"><path d="M20 21v-2a4 4 0 0 0-4-4H8a4 4 0 0 0-4 4v2"/><circle cx="12" cy="7" r="4"/></svg>`

	spinner = `<div class="salespulse-btn-spinner"></div>`
)

// renderSidebar builds the inbox sidebar button container.
func renderSidebar(a *Anchor) string {
	var btn, badge string

	switch a.State {
	case StateLoading:
		btn = fmt.Sprintf(`<button id="salespulse-save-lead-btn" class="salespulse-save-btn salespulse-loading-btn" disabled>%sChecking...</button>`, spinner)
	case StateEdit:
		btn = fmt.Sprintf(`<button id="salespulse-save-lead-btn" class="salespulse-save-btn salespulse-edit-btn">%sEdit Lead</button>`, iconEdit)
		badge = renderInboxStageBadge(a.Lead)
	case StateOtherOwner:
		owner := a.OwnerName
		if owner == "" {
			owner = "Other"
		}
		btn = fmt.Sprintf(`<button id="salespulse-save-lead-btn" class="salespulse-save-btn salespulse-owner-btn" disabled title="This lead is assigned to %s">%s%s</button>`,
			html.EscapeString(owner), iconUser, html.EscapeString(owner))
		badge = renderInboxStageBadge(a.Lead)
	default:
		btn = fmt.Sprintf(`<button id="salespulse-save-lead-btn" class="salespulse-save-btn">%sSave Lead</button>`, iconSave)
	}

	return fmt.Sprintf(`<div id="salespulse-btn-container" class="salespulse-cta-container" data-sp-id=%q data-sp-state=%q>%s%s</div>`,
		a.FragmentID, a.State.attr(), btn, badge)
}

// renderInboxStageBadge builds the stage pill shown under the sidebar
// button when the lead carries stage info.
func renderInboxStageBadge(lead *crm.Lead) string {
	if lead == nil || lead.Stage == nil {
		return ""
	}
	color := lead.Stage.Color
	if color == "" {
		color = defaultStageColor
	}
	return fmt.Sprintf(`<div class="salespulse-inbox-stage-badge"><span class="salespulse-stage-badge" style="background-color: %s">%s</span></div>`,
		html.EscapeString(color), html.EscapeString(lead.Stage.Name))
}

// renderWidget builds a chat-widget button container.
func renderWidget(a *Anchor) string {
	username := html.EscapeString(a.Key)
	var btn, badge string

	switch a.State {
	case StateLoading:
		btn = fmt.Sprintf(`<button class="salespulse-widget-btn salespulse-loading-btn" data-username=%q disabled>%sChecking...</button>`, username, spinner)
	case StateEdit:
		btn = fmt.Sprintf(`<button class="salespulse-widget-btn salespulse-edit-btn" data-username=%q>%sEdit Lead</button>`, username, iconEdit)
		badge = renderWidgetStageBadge(a.Lead)
	case StateOtherOwner:
		owner := a.OwnerName
		if owner == "" {
			owner = "Other"
		}
		btn = fmt.Sprintf(`<button class="salespulse-widget-btn salespulse-owner-btn" data-username=%q disabled title="This lead is assigned to %s">%s%s</button>`,
			username, html.EscapeString(owner), iconUser, html.EscapeString(owner))
		badge = renderWidgetStageBadge(a.Lead)
	default:
		btn = fmt.Sprintf(`<button class="salespulse-widget-btn" data-username=%q>%sSave Lead</button>`, username, iconSave)
	}

	return fmt.Sprintf(`<div class="salespulse-widget-btn-container ContextBox-topContextButton" data-sp-id=%q data-sp-username=%q data-sp-state=%q>%s%s</div>`,
		a.FragmentID, username, a.State.attr(), btn, badge)
}

func renderWidgetStageBadge(lead *crm.Lead) string {
	if lead == nil || lead.Stage == nil {
		return ""
	}
	color := lead.Stage.Color
	if color == "" {
		color = defaultStageColor
	}
	return fmt.Sprintf(`<span class="salespulse-stage-badge" style="background-color: %s" title="Lead Stage: %s">%s</span>`,
		html.EscapeString(color), html.EscapeString(lead.Stage.Name), html.EscapeString(lead.Stage.Name))
}

// renderListBadge builds a thread-list row badge container.
func renderListBadge(username string, e *badgeEntry) string {
	u := html.EscapeString(username)
	var inner string

	switch e.desiredState() {
	case StateLoading:
		inner = `<span class="salespulse-list-loading-badge"><span class="salespulse-list-spinner"></span></span>`
	case StateFresh:
		inner = `<span class="salespulse-list-fresh-badge" title="New lead - not yet saved to CRM">Fresh</span>`
	case StateOtherOwner:
		owner := e.result.OwnerFirstName
		if owner == "" {
			owner = "Other"
		}
		inner = fmt.Sprintf(`<span class="salespulse-list-owner-badge" title="Assigned to %s">%s%s</span>`,
			html.EscapeString(owner), iconUser, html.EscapeString(owner))
	default:
		// Owned lead: stage pill
		stage := e.result.Stage
		name, color := "Lead", defaultStageColor
		if stage != nil {
			if stage.Name != "" {
				name = stage.Name
			}
			if stage.Color != "" {
				color = stage.Color
			}
		}
		inner = fmt.Sprintf(`<span class="salespulse-list-stage-badge" style="background-color: %s" title="Lead Stage: %s">%s</span>`,
			html.EscapeString(color), html.EscapeString(name), html.EscapeString(name))
	}

	return fmt.Sprintf(`<div class="salespulse-list-badge-container" data-sp-id=%q data-sp-username=%q data-sp-state=%q>%s</div>`,
		e.fragmentID, u, e.desiredState().attr(), inner)
}
