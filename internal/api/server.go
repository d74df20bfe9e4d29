// Package api provides the status HTTP API for the meeting agent.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quantumlife/meetingagent/internal/agent"
	"github.com/quantumlife/meetingagent/internal/core"
	"github.com/quantumlife/meetingagent/internal/ledger"
	"github.com/quantumlife/meetingagent/internal/logging"
	"github.com/quantumlife/meetingagent/internal/storage"
)

// Server is the HTTP API server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server

	ledger  *ledger.Store
	runs    *storage.RunStore
	trigger *agent.Serialized
	feed    *RunFeed
	logger  *logging.Logger

	// parent of manually triggered cycles; outlives the request
	baseCtx context.Context
}

// Config for the server
type Config struct {
	Addr    string
	Ledger  *ledger.Store
	Runs    *storage.RunStore
	Trigger *agent.Serialized // nil disables POST /run
	Feed    *RunFeed          // nil creates one
	Logger  *logging.Logger
	Context context.Context
}

// New creates a new API server
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	feed := cfg.Feed
	if feed == nil {
		feed = NewRunFeed(logger)
	}
	baseCtx := cfg.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}

	s := &Server{
		ledger:  cfg.Ledger,
		runs:    cfg.Runs,
		trigger: cfg.Trigger,
		feed:    feed,
		logger:  logger.WithField("component", "api"),
		baseCtx: baseCtx,
	}

	s.setupRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Feed returns the live run feed; register it as a run observer
func (s *Server) Feed() *RunFeed {
	return s.feed
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRouter configures all routes
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  requestLog{s.logger},
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		// Websocket stays outside the request timeout
		r.Get("/runs/feed", s.feed.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/stats", s.handleGetStats)
			r.Get("/runs", s.handleListRuns)
			r.Post("/run", s.handleTriggerRun)

			if s.ledger != nil {
				NewLedgerAPI(s.ledger).RegisterRoutes(r)
			}
		})
	})

	s.router = r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("API server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and closes feed connections
func (s *Server) Stop(ctx context.Context) error {
	s.feed.Close()
	return s.httpServer.Shutdown(ctx)
}

// --- Response helpers ---

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// requestLog adapts the agent logger to chi's request logger
type requestLog struct {
	logger *logging.Logger
}

func (l requestLog) Print(v ...interface{}) {
	l.logger.Debug("%s", fmt.Sprint(v...))
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{}

	if s.ledger != nil {
		stats, err := s.ledger.Stats(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		response["total_processed"] = stats.TotalProcessed
		response["meetings_created"] = stats.MeetingsCreated
		response["rejected"] = stats.Rejected()
	}

	if s.trigger != nil {
		response["running"] = s.trigger.Running()
		if last, ok := s.trigger.Last(); ok {
			response["last_run"] = last
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// GET /api/v1/runs?limit=
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondJSON(w, http.StatusOK, []core.RunStatistics{})
		return
	}

	runs, err := s.runs.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []core.RunStatistics{}
	}
	respondJSON(w, http.StatusOK, runs)
}

// POST /api/v1/run starts a cycle in the background; results arrive on the feed
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		respondError(w, http.StatusNotImplemented, "manual runs are not enabled")
		return
	}

	if err := s.trigger.TryStart(s.baseCtx); err != nil {
		if errors.Is(err, core.ErrRunInProgress) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}
