// Package api exposes the monitor over a small HTTP control plane: status,
// counters, start/stop, recent events, log export, health and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/ransomradar/internal/adapters/output"
	"github.com/xoelrdgz/ransomradar/internal/app"
	"github.com/xoelrdgz/ransomradar/internal/domain"
)

const DefaultAddr = "127.0.0.1:9090"

// Controller is satisfied by *app.Monitor.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	ClearLogs()
	Status() app.MonitorStatus
}

// EventSource is satisfied by *output.MemoryAlerter.
type EventSource interface {
	Latest(n int) []*domain.Event
	ByChannel(channel domain.Channel, n int) []*domain.Event
}

// EventStore is satisfied by *output.EventArchive.
type EventStore interface {
	List(q output.ArchiveQuery) ([]*domain.Event, error)
}

type Config struct {
	Addr    string
	Monitor Controller
	Events  EventSource
	Archive EventStore   // Optional; export falls back to Events
	Metrics http.Handler // Optional
	Health  http.Handler // Optional
	// RunContext bounds sessions started over HTTP. Request contexts end
	// with the request, so they cannot be used for the monitor loop.
	RunContext context.Context
}

type Server struct {
	config Config
	router chi.Router
	server *http.Server
	mu     sync.Mutex
}

func NewServer(config Config) *Server {
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.RunContext == nil {
		config.RunContext = context.Background()
	}
	s := &Server{config: config}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger)
	r.Use(chimiddleware.Recoverer)

	if s.config.Health != nil {
		r.Method(http.MethodGet, "/healthz", s.config.Health)
	} else {
		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	}
	if s.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.config.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.getStatus)
		r.Get("/counters", s.getCounters)
		r.Post("/monitor/start", s.postStart)
		r.Post("/monitor/stop", s.postStop)
		r.Delete("/logs", s.deleteLogs)
		r.Get("/logs/export", s.getExport)
		r.Get("/events", s.getEvents)
	})
	return r
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.server = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.server

	go func() {
		log.Info().Str("addr", s.config.Addr).Msg("Starting control API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Control API error")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}
