// Package server exposes the inspection HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"patrol/internal/api"
	"patrol/internal/config"
	"patrol/internal/dispatch"
	"patrol/internal/logging"
	"patrol/internal/notify"
	"patrol/internal/store"
)

// Server hosts the inspection API over HTTP.
type Server struct {
	bind       string
	logger     *slog.Logger
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	notifier   notify.Service
	validate   *validator.Validate
	purgeAge   time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New wires the HTTP server. It does not start listening.
func New(cfg *config.Config, st *store.Store, dispatcher *dispatch.Dispatcher, notifier notify.Service, logger *slog.Logger) *Server {
	srv := &Server{
		bind:       strings.TrimSpace(cfg.Paths.APIBind),
		logger:     logging.WithComponent(logger, "api"),
		store:      st,
		dispatcher: dispatcher,
		notifier:   notifier,
		validate:   validator.New(),
		purgeAge:   time.Duration(cfg.Dispatch.QueuePurgeHours) * time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/process", srv.handleProcess)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/tasks", srv.handleTasks)
	mux.HandleFunc("/api/tasks/add", srv.handleTaskAdd)
	mux.HandleFunc("/api/tasks/clear", srv.handleTaskClear)
	mux.HandleFunc("/api/tasks/", srv.handleTaskItem)
	mux.HandleFunc("/api/history", srv.handleHistory)
	mux.HandleFunc("/api/latest", srv.handleLatest)
	mux.HandleFunc("/api/statistics", srv.handleStatistics)
	mux.HandleFunc("/api/cart/status", srv.handleCartStatus)
	mux.HandleFunc("/api/alerts", srv.handleAlerts)
	mux.HandleFunc("/api/alerts/", srv.handleAlertItem)
	mux.Handle("/metrics", promhttp.Handler())

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Start begins serving. The server shuts down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop gracefully shuts the server down. Safe to call more than once and
// from concurrent goroutines.
func (s *Server) Stop() {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if listener != nil {
		_ = listener.Close()
	}
}

// Addr returns the bound address, useful when the bind port is 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Handler exposes the mux for handler-level tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload api.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("response encode failed", logging.Error(err))
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, api.Success(data))
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, api.Failure(code, message))
}

func (s *Server) methodNotAllowed(w http.ResponseWriter) {
	s.writeError(w, http.StatusMethodNotAllowed, api.CodeMethodNotAllowed, "method not allowed")
}
