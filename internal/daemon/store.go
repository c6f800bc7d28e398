package daemon

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// PendingCapture is lead data captured from the page and parked until a
// local consumer picks it up.
type PendingCapture struct {
	CustomerName string    `json:"customer_name,omitempty"`
	Username     string    `json:"username,omitempty"`
	ProfileURL   string    `json:"profile_url,omitempty"`
	ProjectTitle string    `json:"project_title,omitempty"`
	ProjectURL   string    `json:"project_url,omitempty"`
	ChatURL      string    `json:"chat_url,omitempty"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Store persists the daemon's small transient state in sqlite: the pending
// capture, the latest version seen, and the dismissed-version marker.
type Store struct {
	db *sql.DB
}

// Keys in the kv table.
const (
	keyPending          = "pending_capture"
	keyLatestVersion    = "latest_version"
	keyDismissedVersion = "dismissed_version"
)

// OpenStore opens (and creates if needed) the store at dbPath.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (s *Store) set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	return err
}

func (s *Store) delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

// SetPending stores captured lead data, replacing any previous capture.
func (s *Store) SetPending(p *PendingCapture) error {
	if p.CapturedAt.IsZero() {
		p.CapturedAt = time.Now()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.set(keyPending, string(raw))
}

// Pending returns the current capture, or nil when none is parked.
func (s *Store) Pending() (*PendingCapture, error) {
	raw, err := s.get(keyPending)
	if err != nil || raw == "" {
		return nil, err
	}
	var p PendingCapture
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("corrupt pending capture: %w", err)
	}
	return &p, nil
}

// ClearPending drops the parked capture.
func (s *Store) ClearPending() error {
	return s.delete(keyPending)
}

// SetLatestVersion records the newest bridge version the CRM has announced.
func (s *Store) SetLatestVersion(v string) error {
	return s.set(keyLatestVersion, v)
}

// LatestVersion returns the recorded newest version, "" when none.
func (s *Store) LatestVersion() (string, error) {
	return s.get(keyLatestVersion)
}

// DismissVersion marks a version update as seen so it stops badging.
func (s *Store) DismissVersion(v string) error {
	return s.set(keyDismissedVersion, v)
}

// DismissedVersion returns the dismissed marker, "" when none.
func (s *Store) DismissedVersion() (string, error) {
	return s.get(keyDismissedVersion)
}
