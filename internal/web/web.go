// Package web exposes the scheduler controller over HTTP.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"schedcal/internal/config"
	"schedcal/internal/ics"
	appLog "schedcal/internal/log"
	"schedcal/internal/model"
	"schedcal/internal/scheduler"
)

// Server serves the event API and the ICS export.
//
// Every HTTP interaction is a complete controller round trip (select, edit,
// save) performed under ctrlMu, so requests never see each other's
// half-finished selections.
type Server struct {
	cfg *config.Config
	loc *time.Location
	mux *http.ServeMux

	ctrlMu   sync.Mutex
	ctrl     *scheduler.Controller
	onChange func(specs []model.EventSpec)
}

// Option configures a Server.
type Option func(*Server)

// WithOnChange registers fn to receive all event specs after every
// successful mutation. fn runs with the controller lock held.
func WithOnChange(fn func(specs []model.EventSpec)) Option {
	return func(s *Server) { s.onChange = fn }
}

// NewServer constructs a new Server around ctrl.
func NewServer(cfg *config.Config, ctrl *scheduler.Controller, opts ...Option) *Server {
	s := &Server{
		cfg:  cfg,
		loc:  ResolveLocation(cfg.Timezone),
		mux:  http.NewServeMux(),
		ctrl: ctrl,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Do runs fn with exclusive access to the controller. Background jobs use it
// to share the lock with HTTP handlers.
func (s *Server) Do(fn func(c *scheduler.Controller)) {
	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	fn(s.ctrl)
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schedcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/occurrences", s.handleOccurrences)
	s.mux.HandleFunc("POST /api/occurrences/drag", s.handleDrag)
	s.mux.HandleFunc("POST /api/occurrences/resize", s.handleResize)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("POST /api/cells", s.handleCreateAtCell)
	s.mux.HandleFunc("GET /api/events/{name}", s.handleGetEvent)
	s.mux.HandleFunc("PUT /api/events/{name}", s.handleSaveEvent)
	s.mux.HandleFunc("DELETE /api/events/{name}", s.handleDeleteEvent)
	// Occurrence keys contain slashes.
	s.mux.HandleFunc("PUT /api/events/{name}/occurrences/{key...}", s.handleSaveOccurrence)

	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// changed reports the new collection to the OnChange hook. Callers hold
// ctrlMu.
func (s *Server) changed() {
	if s.onChange != nil {
		s.onChange(s.ctrl.Events())
	}
}

// readOnly reports whether the named event is an ICS import, which is
// rebuilt from its feed and cannot be edited here.
func (s *Server) readOnly(name string) bool {
	spec, ok := s.ctrl.Event(name)
	return ok && ics.IsImported(&spec)
}

// ResolveLocation loads the named zone, falling back to time.Local.
func ResolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
