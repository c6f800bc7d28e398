// Package server exposes the bridge's loopback status surface. It is the
// read side only; settings mutate through the CLI.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/salespulse/bridge/internal/daemon"
	"github.com/salespulse/bridge/internal/version"
)

// StatusSource answers the /status fields the run loop owns.
type StatusSource interface {
	// Connected reports whether the browser session is alive.
	Connected() bool
	// Configured reports whether CRM credentials are present.
	Configured() bool
	// User is the verified CRM account name, "" when unverified.
	User() string
	// PageURL is the last reconciled page URL.
	PageURL() string
}

// Server is the loopback HTTP status server.
type Server struct {
	coord  *daemon.Coordinator
	status StatusSource
	log    *slog.Logger
	http   *http.Server
}

// New builds a status server on 127.0.0.1:port.
func New(port int, coord *daemon.Coordinator, status StatusSource, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		coord:  coord,
		status: status,
		log:    log.With("component", "server"),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/status", s.handleStatus)
	r.Get("/pending", s.handlePending)
	r.Delete("/pending", s.handleClearPending)
	r.Get("/version", s.handleVersion)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving. It returns once the listener is bound; serving
// continues until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("status server listen: %w", err)
	}
	s.log.Info("status server listening", "addr", s.http.Addr)
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("status server failed", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

type statusResponse struct {
	Connected  bool         `json:"connected"`
	Configured bool         `json:"configured"`
	User       string       `json:"user,omitempty"`
	PageURL    string       `json:"page_url,omitempty"`
	Badge      daemon.Badge `json:"badge"`
	Version    string       `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Badge:   s.coord.Badge(),
		Version: version.Version,
	}
	if s.status != nil {
		resp.Connected = s.status.Connected()
		resp.Configured = s.status.Configured()
		resp.User = s.status.User()
		resp.PageURL = s.status.PageURL()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	p, err := s.coord.Pending()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no pending capture"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleClearPending(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.ClearPending(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
