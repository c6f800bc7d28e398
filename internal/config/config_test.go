package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestMain(m *testing.M) {
	keyring.MockInit()
	os.Exit(m.Run())
}

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.PollIntervalMS)
	assert.Equal(t, 8743, cfg.StatusPort)
	assert.False(t, cfg.Configured())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.BaseURL = "https://crm.example.com/"
	cfg.Token = "tok-123"
	require.NoError(t, cfg.SaveTo(path))

	got, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "https://crm.example.com", got.BaseURL)
	assert.Equal(t, "tok-123", got.Token)
	assert.True(t, got.Configured())
}

func TestTokenNotWrittenToFileWhenKeyringAvailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.BaseURL = "https://crm.example.com"
	cfg.Token = "secret-token"
	require.NoError(t, cfg.SaveTo(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-token")
}

func TestAPIURL(t *testing.T) {
	cfg := &Settings{BaseURL: "https://crm.example.com"}
	assert.Equal(t, "https://crm.example.com/api/v1/extensions/crm", cfg.APIURL())

	cfg.BaseURL = ""
	assert.Equal(t, "", cfg.APIURL())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("CRM_HOST", "crm.internal")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://${CRM_HOST}/\n"), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://crm.internal", cfg.BaseURL)
}
