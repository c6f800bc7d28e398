package crm

// Stage is a pipeline stage a lead can sit in.
type Stage struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Currency is a currency the CRM accepts for lead amounts.
type Currency struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Symbol string `json:"symbol,omitempty"`
}

// Customer is a CRM customer record, optionally with its leads inline.
type Customer struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	FreelancerUsername string `json:"freelancer_username,omitempty"`
	Country            string `json:"country,omitempty"`
	AvatarURL          string `json:"avatar_url,omitempty"`
	FreelancerJoinDate string `json:"freelancer_join_date,omitempty"`
	Leads              []Lead `json:"leads,omitempty"`
}

// Lead is a CRM lead record.
type Lead struct {
	ID                   int64     `json:"id"`
	Title                string    `json:"lead_title"`
	Amount               *float64  `json:"lead_amount,omitempty"`
	Currency             string    `json:"lead_currency,omitempty"`
	StageID              int       `json:"lead_stage_id,omitempty"`
	Stage                *Stage    `json:"stage,omitempty"`
	Description          string    `json:"description,omitempty"`
	FreelancerChatURL    string    `json:"freelancer_chat_url,omitempty"`
	ProjectURL           string    `json:"project_url,omitempty"`
	OwnerFirstName       string    `json:"owner_first_name,omitempty"`
	IsOwnedByCurrentUser bool      `json:"is_owned_by_current_user"`
	UpdatedAt            string    `json:"updated_at,omitempty"`
	Customer             *Customer `json:"customer,omitempty"`
}

// LeadPayload is the request body for creating or updating a lead. Pointer
// fields serialize as null when absent, which the server treats as "no
// value" rather than empty string.
type LeadPayload struct {
	CustomerName          string   `json:"customer_name"`
	FreelancerUsername    *string  `json:"freelancer_username"`
	FreelancerProfileURL  *string  `json:"freelancer_profile_url"`
	AvatarURL             *string  `json:"avatar_url"`
	Country               *string  `json:"country"`
	FreelancerJoinDate    *string  `json:"freelancer_join_date"`
	LeadTitle             *string  `json:"lead_title"`
	LeadAmount            *float64 `json:"lead_amount"`
	LeadCurrency          *string  `json:"lead_currency"`
	LeadStageID           *int     `json:"lead_stage_id"`
	FreelancerChatURL     *string  `json:"freelancer_chat_url"`
	ProjectURL            *string  `json:"project_url"`
	Description           *string  `json:"description"`
}

// LeadCheck is the response of GET /leads/check.
type LeadCheck struct {
	Success bool  `json:"success"`
	Exists  bool  `json:"exists"`
	Lead    *Lead `json:"lead,omitempty"`
}

// CustomerCheck is the response of GET /customers/check.
type CustomerCheck struct {
	Success  bool      `json:"success"`
	Exists   bool      `json:"exists"`
	Customer *Customer `json:"customer,omitempty"`
}

// BatchEntry is one username's result in a batch check.
type BatchEntry struct {
	Exists         bool   `json:"exists"`
	LeadID         int64  `json:"lead_id,omitempty"`
	Stage          *Stage `json:"stage,omitempty"`
	OwnerFirstName string `json:"owner_first_name,omitempty"`
	IsOwned        bool   `json:"is_owned_by_current_user,omitempty"`
}

// SaveResult is the response of POST /leads and PUT /leads/{id}.
type SaveResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	Lead     *Lead     `json:"lead,omitempty"`
	Customer *Customer `json:"customer,omitempty"`
}

// User identifies the CRM account the token belongs to.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// VersionInfo is the extension object inside the GET /version response.
type VersionInfo struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url,omitempty"`
}

type stagesResponse struct {
	Success bool    `json:"success"`
	Stages  []Stage `json:"stages"`
}

type currenciesResponse struct {
	Success      bool       `json:"success"`
	Currencies   []Currency `json:"currencies"`
	BaseCurrency string     `json:"base_currency"`
}

type batchCheckResponse struct {
	Success bool                  `json:"success"`
	Results map[string]BatchEntry `json:"results"`
}

type verifyResponse struct {
	Success bool  `json:"success"`
	User    *User `json:"user"`
}

type versionResponse struct {
	Success   bool         `json:"success"`
	Extension *VersionInfo `json:"extension"`
}
