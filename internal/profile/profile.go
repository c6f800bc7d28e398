// Package profile enriches captured leads with marketplace profile data:
// country, registration date and avatar. The users API is tried first, then
// the public profile page is scraped for whatever is still missing.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the marketplace root.
const DefaultBaseURL = "https://www.freelancer.com"

// Data is what enrichment can recover for a username. Any field may be
// empty when neither source had it.
type Data struct {
	Country       string
	JoinedDate    string // display form, e.g. "March 5, 2019"
	JoinedDateISO string // "2019-03-05"
	AvatarURL     string
}

// Service fetches and caches profile data. The cache is per-process and
// never evicted; only lookups that recovered at least one field are cached.
type Service struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	cache map[string]*Data
}

// NewService creates a profile service against the marketplace.
func NewService() *Service {
	return NewServiceWithBase(DefaultBaseURL)
}

// NewServiceWithBase creates a profile service against a specific host.
func NewServiceWithBase(baseURL string) *Service {
	return &Service{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		cache:   make(map[string]*Data),
	}
}

// Fetch returns profile data for a username, from cache when possible.
func (s *Service) Fetch(ctx context.Context, username string) (*Data, error) {
	s.mu.Lock()
	if d, ok := s.cache[username]; ok {
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	d := &Data{}
	apiErr := s.fromUsersAPI(ctx, username, d)

	if d.Country == "" || d.JoinedDate == "" || d.AvatarURL == "" {
		scrapeErr := s.fromProfileHTML(ctx, username, d)
		if apiErr != nil && scrapeErr != nil && d.empty() {
			return nil, fmt.Errorf("profile lookup for %s: %w", username, scrapeErr)
		}
	}

	if !d.empty() {
		s.mu.Lock()
		s.cache[username] = d
		s.mu.Unlock()
	}
	return d, nil
}

func (d *Data) empty() bool {
	return d.Country == "" && d.JoinedDate == "" && d.AvatarURL == ""
}

// ----------------------------------------------------------------------
// Users API
// ----------------------------------------------------------------------

type apiUser struct {
	RegistrationDate int64  `json:"registration_date"`
	AvatarLargeCDN   string `json:"avatar_large_cdn"`
	AvatarCDN        string `json:"avatar_cdn"`
	AvatarLarge      string `json:"avatar_large"`
	Avatar           string `json:"avatar"`
	ProfileLogoURL   string `json:"profile_logo_url"`
	Location         struct {
		Country struct {
			Code string `json:"code"`
			Name string `json:"name"`
		} `json:"country"`
	} `json:"location"`
}

type usersAPIResponse struct {
	Status string `json:"status"`
	Result struct {
		Users map[string]apiUser `json:"users"`
	} `json:"result"`
}

// fromUsersAPI fills d from the marketplace users API.
// avatar=true is required; the compact form excludes avatar fields.
func (s *Service) fromUsersAPI(ctx context.Context, username string, d *Data) error {
	u := s.baseURL + "/api/users/0.1/users?usernames[]=" + url.QueryEscape(username) + "&avatar=true"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("users API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("users API returned %d", resp.StatusCode)
	}

	var body usersAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("users API decode: %w", err)
	}
	if body.Status != "success" || len(body.Result.Users) == 0 {
		return fmt.Errorf("users API: no user for %s", username)
	}

	var user apiUser
	for _, u := range body.Result.Users {
		user = u
		break
	}

	if c := user.Location.Country; c.Code != "" || c.Name != "" {
		d.Country = CountryName(strings.ToLower(c.Code))
		if d.Country == "" {
			d.Country = c.Name
		}
		if d.Country == "" {
			d.Country = c.Code
		}
	}

	if user.RegistrationDate > 0 {
		reg := time.Unix(user.RegistrationDate, 0).UTC()
		d.JoinedDate = reg.Format("January 2, 2006")
		d.JoinedDateISO = reg.Format("2006-01-02")
	}

	// Avatar field priority mirrors what the marketplace actually populates
	for _, candidate := range []string{
		user.AvatarLargeCDN, user.AvatarCDN, user.AvatarLarge, user.Avatar, user.ProfileLogoURL,
	} {
		if candidate != "" {
			d.AvatarURL = normalizeAvatarURL(candidate)
			break
		}
	}
	return nil
}

// normalizeAvatarURL upgrades protocol-relative avatar URLs.
func normalizeAvatarURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// ----------------------------------------------------------------------
// Profile page scrape fallback
// ----------------------------------------------------------------------

var (
	flagRe   = regexp.MustCompile(`(?i)/flags/([a-z]{2})\.png`)
	joinedRe = regexp.MustCompile(`(?i)Joined\s+(?:on\s+)?([A-Za-z]+\s+\d{1,2},?\s+\d{4})`)

	avatarRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)https://cdn\d*\.freelancer\.com/[^"'\s]+(?:avatar|profile)[^"'\s]*\.(?:jpg|jpeg|png|gif|webp)`),
		regexp.MustCompile(`(?i)<img[^>]+class="[^"]*(?:profile|avatar|user)[^"]*"[^>]+src="([^"]+)"`),
		regexp.MustCompile(`(?i)(https://cdn\d*\.freelancer\.com/u/\d+/[^"'\s]+\.(?:jpg|jpeg|png|gif|webp))`),
	}
)

// fromProfileHTML scrapes the public profile page for fields still missing
// in d.
func (s *Service) fromProfileHTML(ctx context.Context, username string, d *Data) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/u/"+url.PathEscape(username), nil)
	if err != nil {
		return err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("profile page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile page returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return fmt.Errorf("profile page read: %w", err)
	}
	html := string(raw)

	if d.Country == "" {
		if m := flagRe.FindStringSubmatch(html); m != nil {
			code := strings.ToLower(m[1])
			d.Country = CountryName(code)
			if d.Country == "" {
				d.Country = strings.ToUpper(code)
			}
		}
	}

	if d.JoinedDate == "" {
		if m := joinedRe.FindStringSubmatch(html); m != nil {
			d.JoinedDate = strings.TrimSpace(m[1])
			if t, err := time.Parse("January 2, 2006", d.JoinedDate); err == nil {
				d.JoinedDateISO = t.Format("2006-01-02")
			} else if t, err := time.Parse("January 2 2006", d.JoinedDate); err == nil {
				d.JoinedDateISO = t.Format("2006-01-02")
			}
		}
	}

	if d.AvatarURL == "" {
		for _, re := range avatarRes {
			m := re.FindStringSubmatch(html)
			if m == nil {
				continue
			}
			u := m[0]
			if len(m) > 1 && m[1] != "" {
				u = m[1]
			}
			if !strings.HasPrefix(u, "http") {
				u = s.baseURL + u
			}
			d.AvatarURL = u
			break
		}
	}
	return nil
}
