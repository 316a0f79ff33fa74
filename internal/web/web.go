package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"trackmyevents/internal/agenda"
	"trackmyevents/internal/config"
	appLog "trackmyevents/internal/log"
	"trackmyevents/internal/recurrence"
	"trackmyevents/internal/source"
)

// Loader loads the event document. *source.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, location string) (*source.Document, error)
}

// Server provides the HTTP API over the most recently loaded event document.
type Server struct {
	cfg    *config.Config
	loader Loader
	mux    *http.ServeMux
	now    func() time.Time

	expander *agenda.Expander

	docMu    sync.RWMutex
	doc      *source.Document
	loadedAt time.Time

	// In-memory cache for /api/events responses, keyed by query string.
	// Dropped whenever the document is reloaded.
	eventsMu    sync.RWMutex
	eventsCache map[string]*eventsCache
}

const eventsCacheTTL = 30 * time.Second

// NewServer constructs a new Server. The document is not loaded until
// Refresh is called.
func NewServer(cfg *config.Config, loader Loader) *Server {
	s := &Server{
		cfg:         cfg,
		loader:      loader,
		mux:         http.NewServeMux(),
		now:         time.Now,
		expander:    agenda.NewExpander(agenda.DefaultMemoConfig),
		eventsCache: make(map[string]*eventsCache),
	}
	s.registerRoutes()
	return s
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

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
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
			w.Header().Set("WWW-Authenticate", `Basic realm="trackmyevents", charset="UTF-8"`)
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
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/day", s.handleDay)
	s.mux.HandleFunc("/api/expand", s.handleExpand)
	s.mux.HandleFunc("/calendar.ics", s.handleCalendar)
}

// Refresh reloads the event document from cfg.Source. On failure the
// previously loaded document stays in service.
func (s *Server) Refresh(ctx context.Context) error {
	start := s.now()
	doc, err := s.loader.Load(ctx, s.cfg.Source)
	if err != nil {
		appLog.Error("refresh failed; keeping previous document", err, "source", s.cfg.Source)
		return err
	}

	memo := s.expander.Memo.Stats()
	s.SetDocument(doc)

	appLog.Debug("expansion memo before reset", "entries", memo.Entries, "hits", memo.Hits, "misses", memo.Misses)
	appLog.Info("refresh complete",
		"events", len(doc.Events),
		"reminders", len(doc.Reminders),
		"elapsed", s.now().Sub(start).String(),
	)
	return nil
}

// SetDocument installs doc directly, bypassing the loader.
func (s *Server) SetDocument(doc *source.Document) {
	s.docMu.Lock()
	s.doc = doc
	s.loadedAt = s.now()
	s.docMu.Unlock()

	s.expander.Memo.Reset()
	s.eventsMu.Lock()
	s.eventsCache = make(map[string]*eventsCache)
	s.eventsMu.Unlock()
}

func (s *Server) document() (*source.Document, time.Time) {
	s.docMu.RLock()
	defer s.docMu.RUnlock()
	return s.doc, s.loadedAt
}

// location is the document's timezone preference, else cfg.Timezone.
func (s *Server) location(doc *source.Document) *time.Location {
	name := s.cfg.Timezone
	if doc != nil && doc.Preferences.Timezone != "" {
		name = doc.Preferences.Timezone
	}
	loc, err := recurrence.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", name)
		return time.UTC
	}
	return loc
}

// StartScheduler runs Refresh on cfg.RefreshCron until ctx is done.
func (s *Server) StartScheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(s.location(nil)))
	_, err := c.AddFunc(s.cfg.RefreshCron, func() {
		rctx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		_ = s.Refresh(rctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", s.cfg.RefreshCron)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return c, nil
}

// Run loads the document, starts the refresh scheduler and serves HTTP on
// cfg.Listen until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		// Keep serving; the scheduler retries and handlers answer 503 until
		// a document is available.
		appLog.Warn("initial load failed", "source", s.cfg.Source)
	}
	if _, err := s.StartScheduler(ctx); err != nil {
		return err
	}

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
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
