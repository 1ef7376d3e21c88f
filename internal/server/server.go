// Package server hosts a tool executor over HTTP: controllers connect to
// the websocket endpoint, and health endpoints report whether the
// executor accepts work.
//
// Shutdown is graceful: readiness fails first, then the listener closes
// and in-flight HTTP requests drain up to ShutdownTimeout.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/hdlplay/internal/log"
	"github.com/felixgeelhaar/hdlplay/internal/worker"
)

// WorkerPath is where controllers open executor channels.
const WorkerPath = "/worker"

// CachePath reports (GET) and drops (DELETE) the prepared dependencies.
const CachePath = "/cache"

// Status values reported by the health endpoints.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Server serves one executor to any number of controllers.
type Server struct {
	httpServer      *http.Server
	exec            *worker.Executor
	logger          *log.Logger
	version         string
	started         time.Time
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration
}

// Config holds server configuration.
type Config struct {
	// Version is reported by the health endpoints.
	Version string

	// ShutdownTimeout is the maximum time to wait for connections to drain during shutdown.
	// Defaults to 30 seconds if not specified.
	ShutdownTimeout time.Duration

	// ReadHeaderTimeout bounds reading request headers.
	// Defaults to 10 seconds if not specified.
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request.
	// Defaults to 60 seconds if not specified.
	IdleTimeout time.Duration
}

// HealthResponse is the body of every health endpoint.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Tools   []string     `json:"tools,omitempty"`
	Uptime  string       `json:"uptime"`
	Message string       `json:"message,omitempty"`
	Cache   *CacheStatus `json:"cache,omitempty"`
}

// CacheStatus describes the dependency-preparation cache.
type CacheStatus struct {
	Hits     int    `json:"hits"`
	Misses   int    `json:"misses"`
	Bypassed int    `json:"bypassed"`
	Manifest string `json:"manifest,omitempty"`
}

// NewServer creates a server for exec. Whole-request read and write
// timeouts are not set: executor channels are long-lived.
func NewServer(exec *worker.Executor, cfg Config, logger *log.Logger) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	s := &Server{
		exec:            exec,
		logger:          log.OrDefault(logger).WithComponent("server"),
		version:         cfg.Version,
		started:         time.Now(),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	mux := http.NewServeMux()
	mux.Handle(WorkerPath, worker.Handler(exec, logger))
	mux.HandleFunc("/health/live", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/healthz", s.handleReadiness)
	mux.HandleFunc(CachePath, s.handleCache)

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve accepts connections on ln until Shutdown. It returns
// http.ErrServerClosed after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown performs graceful shutdown of the HTTP server.
//
// It:
//  1. Marks the server as shutting down (readiness checks will fail)
//  2. Disables HTTP keep-alives to stop accepting new requests
//  3. Waits for existing connections to drain (up to ShutdownTimeout)
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

func (s *Server) writeResponse(w http.ResponseWriter, result HealthResponse, unhealthyStatus int) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status == StatusUnhealthy {
		w.WriteHeader(unhealthyStatus)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if err := json.NewEncoder(w).Encode(result); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}

func (s *Server) base(status string) HealthResponse {
	return HealthResponse{
		Status:  status,
		Version: s.version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
	}
}

// handleLiveness answers GET /health/live. It succeeds while the process
// runs, including during shutdown.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeResponse(w, s.base(StatusHealthy), http.StatusOK)
}

// handleReadiness answers GET /health/ready and /healthz. It fails with
// 503 during shutdown or when no tool is registered.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result := s.base(StatusHealthy)
	result.Tools = s.exec.Tools()
	result.Cache = s.cacheStatus()
	switch {
	case s.IsShuttingDown():
		result.Status = StatusUnhealthy
		result.Message = "shutting down"
	case len(result.Tools) == 0:
		result.Status = StatusUnhealthy
		result.Message = "no tools registered"
	}
	s.writeResponse(w, result, http.StatusServiceUnavailable)
}

// handleCache answers GET and DELETE on CachePath. DELETE forces the next
// swim prepare to run even for an unchanged manifest.
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.cacheStatus()); err != nil {
			http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
		}
	case http.MethodDelete:
		s.exec.Cache().Reset()
		s.logger.Info("dependency cache cleared", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) cacheStatus() *CacheStatus {
	cache := s.exec.Cache()
	stats := cache.Stats()
	manifest, _ := cache.Manifest()
	return &CacheStatus{
		Hits:     stats.Hits,
		Misses:   stats.Misses,
		Bypassed: stats.Bypassed,
		Manifest: manifest,
	}
}
