// Package crm provides a typed REST client for the SalesPulse CRM
// extension API.
//
// Every call carries the bearer token from settings. Failures are surfaced
// as-is: there are no retries, and a non-2xx status becomes an *APIError
// carrying the server's message so callers can show it inline.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotConfigured is returned by operations that need a CRM connection
// when no base URL or token has been configured.
var ErrNotConfigured = errors.New("crm: base URL or token not configured")

// APIError is a non-2xx response from the CRM.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("CRM returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("CRM returned %d", e.Status)
}

// NotFound reports whether err is an APIError with status 404.
func NotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// Client communicates with the CRM extension API.
type Client struct {
	apiURL string
	token  string
	http   *http.Client
}

// NewClient creates a CRM client. Callers are expected to check
// Settings.Configured first; the client does not validate credentials.
func NewClient(apiURL, token string) *Client {
	return &Client{
		apiURL: apiURL,
		token:  token,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

// doJSON sends a request and decodes the JSON response into dest.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody any, dest any) error {
	var body io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFrom(resp)
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// apiErrorFrom extracts the server message from an error body. The CRM puts
// it under "message" or "error".
func apiErrorFrom(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}

// ----------------------------------------------------------------------
// Leads
// ----------------------------------------------------------------------

// CheckLead looks up a lead by its chat thread URL.
func (c *Client) CheckLead(ctx context.Context, chatURL string) (*LeadCheck, error) {
	params := url.Values{}
	params.Set("chat_url", chatURL)

	var resp LeadCheck
	if err := c.doJSON(ctx, http.MethodGet, "/leads/check?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchCheckLeads looks up lead existence for many usernames in one call.
// The result maps username to its entry; usernames missing from the map
// have no lead.
func (c *Client) BatchCheckLeads(ctx context.Context, usernames []string) (map[string]BatchEntry, error) {
	params := url.Values{}
	for _, u := range usernames {
		params.Add("usernames[]", u)
	}

	var resp batchCheckResponse
	if err := c.doJSON(ctx, http.MethodGet, "/leads/batch-check?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = map[string]BatchEntry{}
	}
	return resp.Results, nil
}

// CreateLead creates a lead (and its customer when new).
func (c *Client) CreateLead(ctx context.Context, payload *LeadPayload) (*SaveResult, error) {
	var resp SaveResult
	if err := c.doJSON(ctx, http.MethodPost, "/leads", payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateLead updates an existing lead.
func (c *Client) UpdateLead(ctx context.Context, id int64, payload *LeadPayload) (*SaveResult, error) {
	var resp SaveResult
	if err := c.doJSON(ctx, http.MethodPut, "/leads/"+strconv.FormatInt(id, 10), payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ----------------------------------------------------------------------
// Customers
// ----------------------------------------------------------------------

// CheckCustomer looks up a customer (with leads inline) by marketplace
// username.
func (c *Client) CheckCustomer(ctx context.Context, username string) (*CustomerCheck, error) {
	params := url.Values{}
	params.Set("freelancer_username", username)

	var resp CustomerCheck
	if err := c.doJSON(ctx, http.MethodGet, "/customers/check?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ----------------------------------------------------------------------
// Reference data
// ----------------------------------------------------------------------

// ListStages fetches the pipeline stages.
func (c *Client) ListStages(ctx context.Context) ([]Stage, error) {
	var resp stagesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/stages", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Stages, nil
}

// ListCurrencies fetches the accepted currencies and the CRM base currency.
func (c *Client) ListCurrencies(ctx context.Context) ([]Currency, string, error) {
	var resp currenciesResponse
	if err := c.doJSON(ctx, http.MethodGet, "/currencies", nil, &resp); err != nil {
		return nil, "", err
	}
	return resp.Currencies, resp.BaseCurrency, nil
}

// ----------------------------------------------------------------------
// Account
// ----------------------------------------------------------------------

// Verify checks the token and returns the account it belongs to.
func (c *Client) Verify(ctx context.Context) (*User, error) {
	var resp verifyResponse
	if err := c.doJSON(ctx, http.MethodPost, "/verify", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, fmt.Errorf("verify: no user in response")
	}
	return resp.User, nil
}

// Version fetches the latest published bridge version from the extension
// object of the /version response.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	var resp versionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/version", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Extension == nil {
		return nil, fmt.Errorf("version: no extension info in response")
	}
	return resp.Extension, nil
}
