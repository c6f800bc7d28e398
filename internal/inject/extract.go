package inject

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/salespulse/bridge/internal/dom"
)

// marketplaceBase absolutizes relative hrefs scraped from the page.
const marketplaceBase = "https://www.freelancer.com"

var usernameRe = regexp.MustCompile(`/u/([^/?&]+)`)

// usernameFromHref pulls the profile username out of a /u/ link.
func usernameFromHref(href string) string {
	m := usernameRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

// absoluteURL prefixes marketplace-relative hrefs with the site root.
func absoluteURL(href string) string {
	if href == "" || strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if !strings.HasPrefix(href, "/") {
		return href
	}
	return marketplaceBase + href
}

// nameStrategy is one attempt at reading the display name out of a chat
// widget. Strategies run in order; the first non-empty result wins. The
// list ends in a username fallback so extraction never fails outright.
type nameStrategy struct {
	name string
	fn   func(widget, header *goquery.Selection, username string) string
}

// displayNameSelectors are element classes the SPA has used for the
// header display name across redesigns. Page variants get appended here.
var displayNameSelectors = []string{
	".Header-details-name",
	".Header-name",
	".ChatHeader-name",
	`[class*="displayName"]`,
	`[class*="DisplayName"]`,
	`fl-text[class*="name"]`,
	".NameContainer .font-bold",
}

var nameStrategies = []nameStrategy{
	{"header-display-name", func(_, header *goquery.Selection, username string) string {
		if header == nil {
			return ""
		}
		for _, sel := range displayNameSelectors {
			if text := cleanName(dom.Text(header.Find(sel)), username); text != "" {
				return text
			}
		}
		return ""
	}},
	{"display-name-link", func(widget, _ *goquery.Selection, username string) string {
		link := widget.Find(`fl-link[fltrackinglabel="MessagingHeaderDisplayNameLink"]`)
		return cleanName(dom.Text(link), username)
	}},
	{"header-profile-link", func(_, header *goquery.Selection, username string) string {
		if header == nil {
			return ""
		}
		var found string
		header.Find("fl-link a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if !strings.Contains(href, "/u/") {
				return true
			}
			if text := cleanName(dom.Text(a), username); text != "" {
				found = text
				return false
			}
			return true
		})
		return found
	}},
	{"header-username-link", func(widget, _ *goquery.Selection, _ string) string {
		return stripAt(dom.Text(widget.Find(`app-messaging-header a[href*="/u/"]`)))
	}},
	{"header-username-text", func(_, header *goquery.Selection, _ string) string {
		if header == nil {
			return ""
		}
		return stripAt(dom.Text(header.Find(`.Header-details-username, .Header-username, [class*="username"]`)))
	}},
	{"any-profile-link", func(widget, _ *goquery.Selection, _ string) string {
		var found string
		widget.Find(`a[href*="/u/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if text := stripAt(dom.Text(a)); text != "" && len(text) > 1 {
				found = text
				return false
			}
			return true
		})
		return found
	}},
}

// cleanName rejects candidates that are just the @username or noise.
func cleanName(text, username string) string {
	text = strings.TrimSpace(text)
	if text == "" || text == "@" || len(text) <= 1 {
		return ""
	}
	if strings.HasPrefix(text, "@") {
		return ""
	}
	if text == username {
		return ""
	}
	return text
}

func stripAt(text string) string {
	text = strings.TrimSpace(text)
	if text == "" || text == "@" {
		return ""
	}
	return strings.TrimPrefix(text, "@")
}

// extractDisplayName runs the name strategies over a chat widget.
func extractDisplayName(widget *goquery.Selection, username string) string {
	header := widget.Find("app-messaging-header").First()
	var headerSel *goquery.Selection
	if header.Length() > 0 {
		headerSel = header
	}
	for _, s := range nameStrategies {
		if name := s.fn(widget, headerSel, username); name != "" {
			return name
		}
	}
	return username
}

// extractProject finds the project link in a chat widget header.
func extractProject(widget *goquery.Selection) (title, url string) {
	header := widget.Find("app-messaging-header").First()

	link := header.Find(`a[href*="/projects/"]`).First()
	if link.Length() == 0 {
		link = header.Find(`fl-link[fltrackinglabel="ChatboxHeaderSecondaryTitle"] a`).First()
	}
	if link.Length() == 0 {
		link = widget.Find(`a[href*="/projects/"]`).First()
	}
	if link.Length() == 0 {
		return "", ""
	}
	href, _ := link.Attr("href")
	return dom.Text(link), absoluteURL(href)
}

// extractChatURLPassive scans the widget for the full-screen thread link
// without touching the live page. Minimized widgets usually don't carry it;
// the active detail-panel flow covers those during lead capture.
func extractChatURLPassive(widget *goquery.Selection) string {
	candidates := []string{
		`.OpenChatInInbox a[href*="/messages/thread/"]`,
		`fl-link[fltrackinglabel="OpenChatInInbox-link"] a`,
		`app-messaging-chat-details .OpenChatInInbox a`,
	}
	for _, sel := range candidates {
		link := widget.Find(sel).First()
		if link.Length() == 0 {
			continue
		}
		href, _ := link.Attr("href")
		if strings.Contains(href, "/messages/thread/") {
			return absoluteURL(href)
		}
	}
	return ""
}

// extractWidgetContext captures everything readable around a chat widget at
// injection time.
func extractWidgetContext(widget *goquery.Selection, username string) Context {
	ctx := Context{
		Username:     username,
		CustomerName: extractDisplayName(widget, username),
		ProfileURL:   marketplaceBase + "/u/" + username,
		ChatURL:      extractChatURLPassive(widget),
	}
	ctx.ProjectTitle, ctx.ProjectURL = extractProject(widget)
	return ctx
}

// chatWidgetFor climbs from a context box to its enclosing chat widget.
// app-messaging-chat-contents comes first: minimized chats lack the
// app-messaging-chat wrapper but both variants have chat-contents.
func chatWidgetFor(contextBox *goquery.Selection) *goquery.Selection {
	return dom.ClosestAny(contextBox,
		"app-messaging-chat-contents",
		"app-messaging-chat-box",
		".ChatBox",
		"app-messaging-chat",
	)
}

// widgetUsername finds the conversation partner's username for a chat
// widget, preferring the header link.
func widgetUsername(widget *goquery.Selection) string {
	link := widget.Find(`app-messaging-header a[href*="/u/"]`).First()
	if link.Length() == 0 {
		link = widget.Find(`a[href*="/u/"]`).First()
	}
	if link.Length() == 0 {
		return ""
	}
	href, _ := link.Attr("href")
	return usernameFromHref(href)
}

// listRowUsername reads the @username element off a thread-list row.
func listRowUsername(row *goquery.Selection) string {
	el := row.Find("app-messaging-thread-list-item-name p:not(.Name)").First()
	text := dom.Text(el)
	if text == "" {
		return ""
	}
	return strings.TrimPrefix(text, "@")
}

// sidebarContext captures form context from the single-thread inbox view.
func sidebarContext(doc *dom.Document, pageURL string) Context {
	ctx := Context{ChatURL: pageURL}

	sidebar := doc.Find("app-messaging-chat-details-redesign").First()
	if sidebar.Length() == 0 {
		return ctx
	}

	link := sidebar.Find(`a[href*="/u/"]`).First()
	if link.Length() > 0 {
		href, _ := link.Attr("href")
		ctx.Username = usernameFromHref(href)
		if ctx.Username != "" {
			ctx.ProfileURL = marketplaceBase + "/u/" + ctx.Username
		}
	}

	ctx.CustomerName = extractDisplayName(sidebar, ctx.Username)
	if ctx.CustomerName == "" {
		ctx.CustomerName = ctx.Username
	}
	ctx.ProjectTitle, ctx.ProjectURL = extractProject(sidebar)
	if ctx.ProjectTitle == "" {
		// Header outside the sidebar on the inbox view
		header := doc.Find("app-messaging-header").First()
		if header.Length() > 0 {
			pl := header.Find(`a[href*="/projects/"]`).First()
			if pl.Length() > 0 {
				href, _ := pl.Attr("href")
				ctx.ProjectTitle, ctx.ProjectURL = dom.Text(pl), absoluteURL(href)
			}
		}
	}
	return ctx
}
