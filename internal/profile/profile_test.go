package profile

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchFromUsersAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/0.1/users" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "alice", r.URL.Query()["usernames[]"][0])
		assert.Equal(t, "true", r.URL.Query().Get("avatar"))
		fmt.Fprint(w, `{
			"status": "success",
			"result": {"users": {"123": {
				"registration_date": 1551744000,
				"avatar_cdn": "//cdn6.f-cdn.com/ppic/123/alice.jpg",
				"location": {"country": {"code": "DE", "name": "Germany"}}
			}}}
		}`)
	}))
	defer srv.Close()

	s := NewServiceWithBase(srv.URL)
	d, err := s.Fetch(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, "Germany", d.Country)
	assert.Equal(t, "March 5, 2019", d.JoinedDate)
	assert.Equal(t, "2019-03-05", d.JoinedDateISO)
	assert.Equal(t, "https://cdn6.f-cdn.com/ppic/123/alice.jpg", d.AvatarURL)
}

func TestFetchScrapeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/0.1/users":
			w.WriteHeader(http.StatusForbidden)
		case "/u/bob":
			fmt.Fprint(w, `<html>
				<img src="/static/flags/pk.png">
				<span>Joined on March 12, 2021</span>
				<img class="ProfileAvatar" src="https://cdn2.freelancer.com/u/99/photo-avatar-big.jpg">
			</html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewServiceWithBase(srv.URL)
	d, err := s.Fetch(context.Background(), "bob")
	require.NoError(t, err)

	assert.Equal(t, "Pakistan", d.Country)
	assert.Equal(t, "March 12, 2021", d.JoinedDate)
	assert.Equal(t, "2021-03-12", d.JoinedDateISO)
	assert.Contains(t, d.AvatarURL, "cdn2.freelancer.com")
}

func TestFetchCachesPopulatedResults(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/users/0.1/users" {
			calls++
			fmt.Fprint(w, `{"status":"success","result":{"users":{"1":{
				"location":{"country":{"code":"US"}},
				"registration_date": 1600000000,
				"avatar": "https://cdn.freelancer.com/a.jpg"
			}}}}`)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	s := NewServiceWithBase(srv.URL)
	_, err := s.Fetch(context.Background(), "carol")
	require.NoError(t, err)
	_, err = s.Fetch(context.Background(), "carol")
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "United States", CountryName("us"))
	assert.Equal(t, "", CountryName("xx"))
}
