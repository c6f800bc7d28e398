package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salespulse/bridge/internal/daemon"
)

type fakeStatus struct {
	connected  bool
	configured bool
	user       string
	pageURL    string
}

func (f *fakeStatus) Connected() bool  { return f.connected }
func (f *fakeStatus) Configured() bool { return f.configured }
func (f *fakeStatus) User() string     { return f.user }
func (f *fakeStatus) PageURL() string  { return f.pageURL }

func testServer(t *testing.T, status StatusSource) (*Server, *daemon.Coordinator) {
	t.Helper()
	store, err := daemon.OpenStore(filepath.Join(t.TempDir(), "bridge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	coord := daemon.NewCoordinator(store, nil, nil)
	return New(0, coord, status, nil), coord
}

func TestStatusEndpoint(t *testing.T) {
	srv, coord := testServer(t, &fakeStatus{
		connected:  true,
		configured: true,
		user:       "Jane Doe",
		pageURL:    "https://www.freelancer.com/messages",
	})
	require.NoError(t, coord.SetPending(&daemon.PendingCapture{Username: "alicesmith"}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Connected)
	assert.True(t, resp.Configured)
	assert.Equal(t, "Jane Doe", resp.User)
	assert.Equal(t, daemon.BadgeCapture, resp.Badge)
}

func TestPendingLifecycle(t *testing.T) {
	srv, coord := testServer(t, &fakeStatus{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, coord.SetPending(&daemon.PendingCapture{
		CustomerName: "Alice Smith",
		Username:     "alicesmith",
	}))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var p daemon.PendingCapture
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "alicesmith", p.Username)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/pending", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, daemon.BadgeNone, coord.Badge())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pending", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVersionEndpoint(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["version"])
}
