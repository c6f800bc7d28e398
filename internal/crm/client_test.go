package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "test-token")
}

func TestCheckLeadSendsChatURLAndBearer(t *testing.T) {
	var gotAuth, gotChatURL string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotChatURL = r.URL.Query().Get("chat_url")
		json.NewEncoder(w).Encode(LeadCheck{Success: true, Exists: true, Lead: &Lead{
			ID:                   7,
			IsOwnedByCurrentUser: true,
			Stage:                &Stage{ID: 7, Name: "Negotiation", Color: "#f59e0b"},
		}})
	})

	res, err := c.CheckLead(context.Background(), "https://www.freelancer.com/messages/thread/12345")
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "https://www.freelancer.com/messages/thread/12345", gotChatURL)
	require.True(t, res.Exists)
	assert.Equal(t, "Negotiation", res.Lead.Stage.Name)
	assert.Equal(t, "#f59e0b", res.Lead.Stage.Color)
}

func TestBatchCheckLeadsSingleRequest(t *testing.T) {
	var requests int
	var gotUsernames []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		gotUsernames = r.URL.Query()["usernames[]"]
		// The per-username map comes back under "results"
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"results": map[string]BatchEntry{
				"alice": {Exists: true, Stage: &Stage{ID: 2, Name: "Contacted", Color: "#3b82f6"}, IsOwned: true},
				"bob":   {Exists: true, OwnerFirstName: "Dana"},
			},
		})
	})

	res, err := c.BatchCheckLeads(context.Background(), []string{"alice", "bob", "carol"})
	require.NoError(t, err)

	assert.Equal(t, 1, requests)
	assert.Equal(t, []string{"alice", "bob", "carol"}, gotUsernames)
	assert.True(t, res["alice"].IsOwned)
	assert.Equal(t, "Dana", res["bob"].OwnerFirstName)
	_, ok := res["carol"]
	assert.False(t, ok)
}

func TestCreateLeadPostsPayloadWithNulls(t *testing.T) {
	var body map[string]json.RawMessage
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/leads", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(SaveResult{Success: true, Lead: &Lead{ID: 42}})
	})

	title := "Logo design"
	res, err := c.CreateLead(context.Background(), &LeadPayload{
		CustomerName: "Alice Smith",
		LeadTitle:    &title,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, res.Lead.ID)

	assert.Equal(t, `"Alice Smith"`, string(body["customer_name"]))
	assert.Equal(t, `"Logo design"`, string(body["lead_title"]))
	// Absent optional fields serialize as null, not ""
	assert.Equal(t, "null", string(body["lead_amount"]))
	assert.Equal(t, "null", string(body["freelancer_username"]))
}

func TestUpdateLeadUsesPut(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/leads/7", r.URL.Path)
		json.NewEncoder(w).Encode(SaveResult{Success: true})
	})

	_, err := c.UpdateLead(context.Background(), 7, &LeadPayload{CustomerName: "Alice"})
	require.NoError(t, err)
}

func TestAPIErrorCarriesServerMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"message": "The customer name field is required."})
	})

	_, err := c.CreateLead(context.Background(), &LeadPayload{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 422, apiErr.Status)
	assert.Equal(t, "The customer name field is required.", apiErr.Message)
}

func TestAPIErrorFallsBackToErrorKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Invalid token"})
	})

	_, err := c.Verify(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid token", apiErr.Message)
}

func TestNotFound(t *testing.T) {
	assert.True(t, NotFound(&APIError{Status: 404}))
	assert.False(t, NotFound(&APIError{Status: 500}))
	assert.False(t, NotFound(context.Canceled))
}

func TestVerifyReturnsUser(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/verify", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"user":    User{ID: 1, Name: "Jane Doe"},
		})
	})

	user, err := c.Verify(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", user.Name)
}

func TestVersionReadsExtensionObject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/version", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"extension": VersionInfo{Version: "1.4.0", DownloadURL: "https://crm.example.com/bridge"},
		})
	})

	v, err := c.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.4.0", v.Version)
	assert.Equal(t, "https://crm.example.com/bridge", v.DownloadURL)
}

func TestListStages(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"stages": []Stage{
				{ID: 1, Name: "New", Color: "#6b7280"},
				{ID: 7, Name: "Negotiation", Color: "#f59e0b"},
			},
		})
	})

	stages, err := c.ListStages(context.Background())
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "Negotiation", stages[1].Name)
}

func TestListCurrencies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"currencies":    []Currency{{Code: "USD"}, {Code: "EUR"}},
			"base_currency": "USD",
		})
	})

	currencies, base, err := c.ListCurrencies(context.Background())
	require.NoError(t, err)
	assert.Len(t, currencies, 2)
	assert.Equal(t, "USD", base)
}
