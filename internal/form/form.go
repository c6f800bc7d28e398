// Package form drives the lead capture dialog: prefill, validation and
// submission. Like the inject controller it is pure with respect to the
// page; the browser layer renders the markup and reports field values back.
package form

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/salespulse/bridge/internal/crm"
	"github.com/salespulse/bridge/internal/devlog"
	"github.com/salespulse/bridge/internal/inject"
	"github.com/salespulse/bridge/internal/profile"
)

// ErrCustomerName rejects submissions without a customer name, the one
// mandatory field.
var ErrCustomerName = errors.New("customer name is required")

// API is the slice of the CRM client the form needs.
type API interface {
	CheckLead(ctx context.Context, chatURL string) (*crm.LeadCheck, error)
	CreateLead(ctx context.Context, payload *crm.LeadPayload) (*crm.SaveResult, error)
	UpdateLead(ctx context.Context, id int64, payload *crm.LeadPayload) (*crm.SaveResult, error)
	ListStages(ctx context.Context) ([]crm.Stage, error)
	ListCurrencies(ctx context.Context) ([]crm.Currency, string, error)
}

// Enricher supplies marketplace profile data for the capture context.
type Enricher interface {
	Fetch(ctx context.Context, username string) (*profile.Data, error)
}

// Mode says whether the dialog creates a lead or edits an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// Fields holds the editable dialog values. Amount stays a string until
// submit so the raw input survives round trips.
type Fields struct {
	CustomerName string
	Username     string
	ProfileURL   string
	Title        string
	Amount       string
	Currency     string
	StageID      int
	ChatURL      string
	ProjectURL   string
	Description  string
}

// Form is one open capture dialog.
type Form struct {
	Key    string
	Mode   Mode
	LeadID int64

	Fields     Fields
	Enrichment profile.Data

	Stages       []crm.Stage
	Currencies   []crm.Currency
	BaseCurrency string
}

// Request describes the anchor a dialog opens for.
type Request struct {
	// Key routes the post-save state update ("sidebar" or a username).
	Key string
	// Edit selects ModeEdit; Lead is then the cached record.
	Edit bool
	Lead *crm.Lead
	// Context is the page context captured at injection time.
	Context inject.Context
}

// Service opens and submits capture dialogs.
type Service struct {
	api    API
	enrich Enricher
	log    *slog.Logger

	mu           sync.Mutex
	stages       []crm.Stage
	currencies   []crm.Currency
	baseCurrency string
}

// NewService creates a form service. enrich may be nil to skip profile
// enrichment.
func NewService(api API, enrich Enricher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{api: api, enrich: enrich, log: log.With("component", "form")}
}

// Open builds the dialog model for an anchor. Edit mode re-fetches the
// authoritative lead; the cached record backs it up when the fetch fails.
// Option lists and enrichment are best effort and never block the dialog.
func (s *Service) Open(ctx context.Context, req Request) (*Form, error) {
	if s.api == nil {
		return nil, crm.ErrNotConfigured
	}

	f := &Form{Key: req.Key}
	s.loadOptions(ctx, f)

	lead := req.Lead
	if req.Edit {
		f.Mode = ModeEdit
		if fresh := s.refreshLead(ctx, req); fresh != nil {
			lead = fresh
		}
		if lead == nil {
			// Nothing to edit after all; fall back to capture
			f.Mode = ModeCreate
		}
	}

	s.prefill(f, lead, req.Context)

	if s.enrich != nil && req.Context.Username != "" {
		if d, err := s.enrich.Fetch(ctx, req.Context.Username); err == nil && d != nil {
			f.Enrichment = *d
		} else if err != nil {
			devlog.Printf("[Form] enrichment for %s failed: %v", req.Context.Username, err)
		}
	}

	return f, nil
}

// refreshLead pulls the current server copy of the lead being edited.
func (s *Service) refreshLead(ctx context.Context, req Request) *crm.Lead {
	chatURL := req.Context.ChatURL
	if chatURL == "" && req.Lead != nil {
		chatURL = req.Lead.FreelancerChatURL
	}
	if chatURL == "" {
		return nil
	}
	res, err := s.api.CheckLead(ctx, chatURL)
	if err != nil {
		s.log.Warn("lead refresh failed, using cached copy", "chat_url", chatURL, "error", err)
		return nil
	}
	if !res.Exists || res.Lead == nil {
		return nil
	}
	return res.Lead
}

// loadOptions fills stage and currency lists, caching them after the first
// successful fetch.
func (s *Service) loadOptions(ctx context.Context, f *Form) {
	s.mu.Lock()
	if s.stages != nil {
		f.Stages, f.Currencies, f.BaseCurrency = s.stages, s.currencies, s.baseCurrency
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	stages, err := s.api.ListStages(ctx)
	if err != nil {
		s.log.Warn("stage list unavailable", "error", err)
		return
	}
	currencies, base, err := s.api.ListCurrencies(ctx)
	if err != nil {
		s.log.Warn("currency list unavailable", "error", err)
	}

	s.mu.Lock()
	s.stages, s.currencies, s.baseCurrency = stages, currencies, base
	s.mu.Unlock()
	f.Stages, f.Currencies, f.BaseCurrency = stages, currencies, base
}

// prefill merges sources into the dialog fields: lead values win, page
// context fills the gaps.
func (s *Service) prefill(f *Form, lead *crm.Lead, pctx inject.Context) {
	f.Fields = Fields{
		CustomerName: pctx.CustomerName,
		Username:     pctx.Username,
		ProfileURL:   pctx.ProfileURL,
		Title:        pctx.ProjectTitle,
		ChatURL:      pctx.ChatURL,
		ProjectURL:   pctx.ProjectURL,
		Currency:     f.BaseCurrency,
	}

	if lead == nil {
		return
	}
	f.LeadID = lead.ID
	if lead.Customer != nil && lead.Customer.Name != "" {
		f.Fields.CustomerName = lead.Customer.Name
	}
	if lead.Customer != nil && lead.Customer.FreelancerUsername != "" {
		f.Fields.Username = lead.Customer.FreelancerUsername
	}
	if lead.Title != "" {
		f.Fields.Title = lead.Title
	}
	if lead.Amount != nil {
		f.Fields.Amount = strconv.FormatFloat(*lead.Amount, 'f', -1, 64)
	}
	if lead.Currency != "" {
		f.Fields.Currency = lead.Currency
	}
	if lead.StageID != 0 {
		f.Fields.StageID = lead.StageID
	} else if lead.Stage != nil {
		f.Fields.StageID = lead.Stage.ID
	}
	if lead.FreelancerChatURL != "" {
		f.Fields.ChatURL = lead.FreelancerChatURL
	}
	if lead.ProjectURL != "" {
		f.Fields.ProjectURL = lead.ProjectURL
	}
	if lead.Description != "" {
		f.Fields.Description = lead.Description
	}
}

// Validate checks the dialog values without touching the network.
func (s *Service) Validate(f *Form) error {
	if strings.TrimSpace(f.Fields.CustomerName) == "" {
		return ErrCustomerName
	}
	if a := strings.TrimSpace(f.Fields.Amount); a != "" {
		if _, err := strconv.ParseFloat(a, 64); err != nil {
			return errors.New("amount must be a number")
		}
	}
	return nil
}

// Submit validates and saves the dialog, returning the stored lead. API
// errors come back as *crm.APIError so the dialog can show the server's
// message inline.
func (s *Service) Submit(ctx context.Context, f *Form) (*crm.Lead, error) {
	if s.api == nil {
		return nil, crm.ErrNotConfigured
	}
	if err := s.Validate(f); err != nil {
		return nil, err
	}

	payload := s.payload(f)

	var res *crm.SaveResult
	var err error
	if f.Mode == ModeEdit && f.LeadID != 0 {
		res, err = s.api.UpdateLead(ctx, f.LeadID, payload)
	} else {
		res, err = s.api.CreateLead(ctx, payload)
	}
	if err != nil {
		return nil, err
	}

	lead := res.Lead
	if lead == nil {
		lead = &crm.Lead{ID: f.LeadID, IsOwnedByCurrentUser: true}
	}
	if lead.Customer == nil {
		lead.Customer = res.Customer
	}
	devlog.Printf("[Form] saved lead %d for %s", lead.ID, f.Key)
	return lead, nil
}

// payload builds the save request. Absent optional fields stay nil and
// serialize as null.
func (s *Service) payload(f *Form) *crm.LeadPayload {
	p := &crm.LeadPayload{
		CustomerName:         strings.TrimSpace(f.Fields.CustomerName),
		FreelancerUsername:   optStr(f.Fields.Username),
		FreelancerProfileURL: optStr(f.Fields.ProfileURL),
		LeadTitle:            optStr(f.Fields.Title),
		LeadCurrency:         optStr(f.Fields.Currency),
		FreelancerChatURL:    optStr(f.Fields.ChatURL),
		ProjectURL:           optStr(f.Fields.ProjectURL),
		Description:          optStr(f.Fields.Description),
		AvatarURL:            optStr(f.Enrichment.AvatarURL),
		Country:              optStr(f.Enrichment.Country),
		FreelancerJoinDate:   optStr(f.Enrichment.JoinedDateISO),
	}
	if a := strings.TrimSpace(f.Fields.Amount); a != "" {
		if v, err := strconv.ParseFloat(a, 64); err == nil {
			p.LeadAmount = &v
		}
	}
	if f.Fields.StageID != 0 {
		p.LeadStageID = &f.Fields.StageID
	}
	return p
}

func optStr(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
