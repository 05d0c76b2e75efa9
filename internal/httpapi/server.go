// Package httpapi serves the launcher's control surface on the secondary
// control port: status and port queries for the UI, the live event stream,
// session history, and Prometheus metrics. It binds loopback only.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"mnesis-launcher/internal/metrics"
	"mnesis-launcher/internal/status"
	"mnesis-launcher/internal/storage"
)

const (
	requestTimeout   = 30 * time.Second
	shutdownTimeout  = 3 * time.Second
	sseHeartbeat     = 30 * time.Second
	defaultListLimit = 50
)

// History is the subset of the storage layer the API reads. Nil-able so the
// API degrades to 503 on history routes when persistence is disabled.
type History interface {
	ListSessions(limit int) ([]*storage.SessionRecord, error)
	ListCrashes(sessionID string, limit int) ([]*storage.CrashRecord, error)
}

// Server is the control-port HTTP API.
type Server struct {
	broadcaster *status.Broadcaster
	history     History
	logger      *zap.Logger
	router      *chi.Mux
}

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// NewServer builds the router. history may be nil.
func NewServer(broadcaster *status.Broadcaster, history History, logger *zap.Logger) *Server {
	s := &Server{
		broadcaster: broadcaster,
		history:     history,
		logger:      logger,
		router:      chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)

	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/status", s.handleGetStatus)
		r.Get("/ports", s.handleGetPorts)
		r.Get("/events", s.handleSSEEvents)
		r.Post("/conflicts", s.handleSetConflicts)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{id}/crashes", s.handleListCrashes)
	})
}

// Serve listens on 127.0.0.1:port until ctx is cancelled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) Serve(ctx context.Context, port uint16) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind control port %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Control API shutdown incomplete", zap.Error(err))
		}
	}()

	s.logger.Info("Control API listening", zap.String("addr", addr))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) writeSuccess(w http.ResponseWriter, data any) {
	s.writeJSON(w, http.StatusOK, successResponse{Success: true, Data: data})
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, errorResponse{Success: false, Error: message})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeSuccess(w, s.broadcaster.Current())
}

func (s *Server) handleGetPorts(w http.ResponseWriter, _ *http.Request) {
	pair := s.broadcaster.Ports()
	if pair.Primary == 0 {
		s.writeError(w, http.StatusServiceUnavailable, "ports not yet allocated")
		return
	}
	s.writeSuccess(w, pair)
}

// handleSetConflicts receives the UI's pending-conflict count; the count
// only changes the derived status while the backend is ready.
func (s *Server) handleSetConflicts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Pending int `json:"pending"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Pending < 0 {
		s.writeError(w, http.StatusBadRequest, "pending must be non-negative")
		return
	}
	s.broadcaster.SetPendingConflicts(req.Pending)
	s.writeSuccess(w, s.broadcaster.Current())
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history persistence disabled")
		return
	}
	sessions, err := s.history.ListSessions(limitParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w, map[string]any{"sessions": sessions, "total": len(sessions)})
}

func (s *Server) handleListCrashes(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history persistence disabled")
		return
	}
	sessionID := chi.URLParam(r, "id")
	crashes, err := s.history.ListCrashes(sessionID, limitParam(r))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSuccess(w, map[string]any{"crashes": crashes, "total": len(crashes)})
}

// handleSSEEvents streams status snapshots to the UI. The current snapshot
// is sent immediately so a reconnecting client never waits for a change.
func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.logger.Warn("ResponseWriter does not support flushing, SSE may not work properly")
	}

	fmt.Fprintf(w, ": connected\nretry: 5000\n\n")
	if canFlush {
		flusher.Flush()
	}

	snapshots, cancel := s.broadcaster.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if err := s.writeSSEEvent(w, flusher, canFlush, "ping", map[string]any{"timestamp": time.Now().Unix()}); err != nil {
				return
			}
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			if err := s.writeSSEEvent(w, flusher, canFlush, "status", snap); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, canFlush bool, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	if canFlush {
		flusher.Flush()
	}
	return nil
}

func limitParam(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}
