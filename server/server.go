// Package server implements the Pacer HTTP server: REST API, auth, metrics and SSE events.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/config"
	"github.com/GoCodeAlone/pacer/metrics"
	"github.com/GoCodeAlone/pacer/server/api"
	"github.com/GoCodeAlone/pacer/server/sse"
)

// Server is the Pacer HTTP server.
type Server struct {
	cfg     *config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	svc        api.Service
	bus        comms.Bus
	hub        *sse.Hub
	detach     func()
	detachOnce sync.Once

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
}

// New creates a Server and registers its routes. bus may be nil, in which
// case the event stream only sends the connected greeting.
func New(cfg *config.Config, svc api.Service, bus comms.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		svc:       svc,
		bus:       bus,
		hub:       sse.NewHub(bus, logger),
		startTime: time.Now(),
	}
	s.registerRoutes()
	s.detach = s.hub.Attach()

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":9090"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       seconds(cfg.Server.ReadTimeoutSeconds),
		// No WriteTimeout: /events streams stay open. API routes get a
		// TimeoutHandler instead.
	}
	return s
}

// Handler returns the root handler with CORS and request metrics applied.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	if origins := s.cfg.Server.CORSOrigins; len(origins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return metrics.Middleware(h)
}

// Start begins listening. It blocks until the server stops; a graceful
// Stop returns nil.
func (s *Server) Start() error {
	s.logger.Info("server listening", slog.String("addr", s.httpSrv.Addr), slog.Bool("auth", !s.cfg.Auth.Disabled))
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.detachOnce.Do(s.detach)
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	h := &api.Handlers{
		Planner: s.svc,
		Bus:     s.bus,
		Logger:  s.logger,
		StartAt: s.startTime,
	}

	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", h.StatusHandler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// SSE: auth handled inline because EventSource can't set headers
	s.mux.HandleFunc("GET /events", s.handleSSE)

	// Protected API, wrapped in auth middleware
	apiMux := http.NewServeMux()
	h.RegisterRoutes(apiMux)
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	var protected http.Handler = apiMux
	if timeout := seconds(s.cfg.Server.WriteTimeoutSeconds); timeout > 0 {
		protected = http.TimeoutHandler(protected, timeout, `{"error":"request timed out"}`)
	}
	s.mux.Handle("/api/", s.authMiddleware(protected))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSSE verifies the token query parameter and hands the connection to the hub.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Auth.Disabled {
		if _, err := s.verifyToken(r.URL.Query().Get("token")); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
	}
	s.hub.ServeSSE(w, r)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
