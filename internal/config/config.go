// Package config holds the bridge settings: the CRM server URL and API
// token, plus local bridge options. Settings live in a YAML file under the
// user config dir; the token is kept in the OS keyring when available, with
// the file as fallback.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// apiPrefix is the CRM extension API mount point, appended to the base URL
// for every request.
const apiPrefix = "/api/v1/extensions/crm"

// keyring service/user identifiers for the stored API token.
const (
	keyringService = "salespulse-bridge"
	keyringUser    = "api-token"
)

// Settings is the persisted bridge configuration.
type Settings struct {
	// BaseURL is the CRM server root, e.g. "https://crm.example.com".
	// Trailing slashes are trimmed on load.
	BaseURL string `yaml:"base_url"`

	// Token is the CRM API bearer token. Persisted to the OS keyring when
	// possible; only written to the file when the keyring is unavailable.
	Token string `yaml:"token,omitempty"`

	// CDPURL is the DevTools endpoint of the browser to attach to.
	// Empty means launch a managed browser.
	CDPURL string `yaml:"cdp_url,omitempty"`

	// BrowserPath overrides browser executable discovery.
	BrowserPath string `yaml:"browser_path,omitempty"`

	// Headless launches the managed browser without a window.
	Headless bool `yaml:"headless,omitempty"`

	// PollIntervalMS is the observer cadence in milliseconds (default 500).
	PollIntervalMS int `yaml:"poll_interval_ms,omitempty"`

	// StatusPort is the loopback status server port (default 8743).
	StatusPort int `yaml:"status_port,omitempty"`

	// DataDir holds the bridge database and launched-browser profile.
	DataDir string `yaml:"data_dir,omitempty"`
}

// Default returns settings with defaults filled in.
func Default() *Settings {
	return &Settings{
		PollIntervalMS: 500,
		StatusPort:     8743,
		DataDir:        DefaultDataDir(),
	}
}

// DefaultDataDir returns the default data directory (~/.salespulse).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".salespulse"
	}
	return filepath.Join(home, ".salespulse")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load reads settings from the default path. A missing file yields defaults.
func Load() (*Settings, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads settings from a specific path. Env vars in base_url and
// token are expanded. The keyring token wins over a token in the file.
func LoadFrom(path string) (*Settings, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.loadKeyringToken()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(os.ExpandEnv(cfg.BaseURL), "/")
	cfg.Token = os.ExpandEnv(cfg.Token)
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = 500
	}
	if cfg.StatusPort == 0 {
		cfg.StatusPort = 8743
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}

	cfg.loadKeyringToken()
	return cfg, nil
}

// Save writes settings to the default path. The token goes to the keyring
// when available and is then omitted from the file.
func (s *Settings) Save() error {
	return s.SaveTo(DefaultPath())
}

// SaveTo writes settings to a specific path.
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out := *s
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")

	if out.Token != "" {
		if err := keyring.Set(keyringService, keyringUser, out.Token); err == nil {
			out.Token = ""
		}
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// loadKeyringToken pulls the token from the OS keyring if present there.
func (s *Settings) loadKeyringToken() {
	if tok, err := keyring.Get(keyringService, keyringUser); err == nil && tok != "" {
		s.Token = tok
	}
}

// APIURL returns the full CRM extension API root, or "" when no base URL is
// set.
func (s *Settings) APIURL() string {
	if s.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(s.BaseURL, "/") + apiPrefix
}

// Configured reports whether both the base URL and token are present.
func (s *Settings) Configured() bool {
	return s.BaseURL != "" && s.Token != ""
}

// DBPath returns the path of the bridge SQLite database.
func (s *Settings) DBPath() string {
	return filepath.Join(s.DataDir, "bridge.db")
}

// ProfileDir returns the user-data dir for a bridge-launched browser.
func (s *Settings) ProfileDir() string {
	return filepath.Join(s.DataDir, "browser-profile")
}
