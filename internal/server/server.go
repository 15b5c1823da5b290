// Package server exposes a running watcher over HTTP: status, lifecycle
// control, the event journal and a websocket event feed.
//
// Route layout:
//
//	GET  /healthz          liveness check
//	GET  /api/v1/status    watcher state, root, mask and counters
//	POST /api/v1/pause     pause delivery
//	POST /api/v1/resume    resume delivery
//	POST /api/v1/stop      stop the watcher (terminal)
//	GET  /api/v1/events    recent journal entries (?limit=N)
//	GET  /ws               live events as JSON text frames
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/twiced-technology-gmbh/dirwatch/internal/clierr"
	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
	"github.com/twiced-technology-gmbh/dirwatch/internal/output"
	"github.com/twiced-technology-gmbh/dirwatch/internal/watcher"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Controller is the part of a watcher the server drives.
type Controller interface {
	Pause()
	Resume()
	Stop()
	State() watcher.State
	Root() string
	Mask() fsevent.CreateFlags
	Metrics() watcher.Metrics
	Err() error
}

// Status is the body of GET /api/v1/status and the lifecycle endpoints.
type Status struct {
	State      string          `json:"state"`
	Root       string          `json:"root"`
	Mask       []string        `json:"mask"`
	Error      string          `json:"error,omitempty"`
	Metrics    watcher.Metrics `json:"metrics"`
	Registered int             `json:"registered"`
	Clients    int             `json:"clients"`
	Uptime     string          `json:"uptime"`
}

// Server holds the dependencies needed by the handlers.
type Server struct {
	ctl     Controller
	store   journal.Store
	bc      *Broadcaster
	logger  *slog.Logger
	started time.Time
}

// New creates a Server. store may be nil when no journal is configured.
func New(ctl Controller, store journal.Store, bc *Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if bc == nil {
		bc = NewBroadcaster(logger, 0)
	}
	return &Server{
		ctl:     ctl,
		store:   store,
		bc:      bc,
		logger:  logger,
		started: time.Now(),
	}
}

// Broadcaster returns the websocket fan-out the watcher callback publishes to.
func (s *Server) Broadcaster() *Broadcaster { return s.bc }

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.handleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/pause", s.lifecycle(s.ctl.Pause))
		r.Post("/resume", s.lifecycle(s.ctl.Resume))
		r.Post("/stop", s.lifecycle(s.ctl.Stop))
		r.Get("/events", s.handleEvents)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status() Status {
	st := Status{
		State:      s.ctl.State().String(),
		Root:       s.ctl.Root(),
		Mask:       s.ctl.Mask().Names(),
		Metrics:    s.ctl.Metrics(),
		Registered: watcher.Registered(),
		Clients:    s.bc.ClientCount(),
		Uptime:     output.FormatDuration(time.Since(s.started)),
	}
	if err := s.ctl.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) lifecycle(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		s.logger.Info("server: lifecycle request",
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("state", s.ctl.State().String()),
		)
		writeJSON(w, http.StatusOK, s.status())
	}
}

// handleEvents responds to GET /api/v1/events. limit defaults to 100 and is
// capped at 1000.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, clierr.JournalDisabled, "no journal configured")
		return
	}

	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, clierr.InvalidInput, "'limit' must be a positive integer")
			return
		}
		limit = min(n, maxLimit)
	}

	entries, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("server: journal query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, clierr.JournalError, "journal query failed")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, output.ErrorResponse{Error: msg, Code: code})
}
