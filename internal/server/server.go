// Package server exposes the engine over HTTP: the tick endpoint the broker
// adapter polls, the control/settings surface for the dashboard, and a
// websocket stream mirroring every state change.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/elastic_grid/internal/engine"
	"github.com/eddiefleurent/elastic_grid/internal/journal"
	"github.com/eddiefleurent/elastic_grid/internal/monitoring"
)

// Version is reported by the root and health endpoints. It tracks the wire
// contract with the broker adapter, not the build.
const Version = "3.4.2"

// exportLimit caps how many journal rows one xlsx download carries.
const exportLimit = 500

type Server struct {
	router  *chi.Mux
	server  *http.Server
	engine  *engine.Engine
	journal journal.Journal
	hub     *Hub
	logger  *logrus.Logger
	listen  string
}

type Config struct {
	Listen         string
	RequestTimeout time.Duration
}

func NewServer(cfg Config, eng *engine.Engine, jrnl journal.Journal, hub *Hub, logger *logrus.Logger) *Server {
	if jrnl == nil {
		jrnl = journal.Nop{}
	}
	s := &Server{
		router:  chi.NewRouter(),
		engine:  eng,
		journal: jrnl,
		hub:     hub,
		logger:  logger,
		listen:  cfg.Listen,
	}

	s.setupRoutes(cfg.RequestTimeout)
	return s
}

func (s *Server) setupRoutes(requestTimeout time.Duration) {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Get("/", s.handleRoot)
	s.router.Get("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", monitoring.NewMetricsHandler())

	// The websocket upgrade must not inherit a request deadline, so the
	// timeout wraps only the REST surface.
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Post("/api/tick", s.handleTick)
		r.Post("/api/control", s.handleControl)
		r.Post("/api/update-settings", s.handleUpdateSettings)
		r.Get("/api/ui-data", s.handleUIData)
		r.Get("/api/health", s.handleHealth)
		r.Get("/api/export", s.handleExport)
	})
}

// corsMiddleware allows any origin. The dashboard is served off arbitrary
// hosts on a trusted network.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting engine server on %s", s.listen)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
