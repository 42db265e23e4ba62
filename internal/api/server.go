// Package api exposes the HTTP interface for the scrape service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Dev-pucci/webscraping-app/internal/dispatcher"
	"github.com/Dev-pucci/webscraping-app/internal/scrape"
	"github.com/Dev-pucci/webscraping-app/internal/taskstore"
)

// TaskReader is the slice of the task store the handlers need.
type TaskReader interface {
	Get(id string) (scrape.Task, error)
	Stop(ctx context.Context, id string) error
	ListRecent(limit int) []scrape.TaskSummary
	Stats() scrape.Stats
}

// Submitter accepts new scrape submissions.
type Submitter interface {
	Submit(ctx context.Context, req dispatcher.SubmitRequest) (string, error)
}

// Server wires HTTP handlers to the dispatcher and the task store.
type Server struct {
	router     chi.Router
	store      TaskReader
	dispatcher Submitter
	logger     *zap.Logger
}

// NewServer constructs a Server with middleware and routes. The gatherer
// backs /metrics; pass prometheus.DefaultGatherer unless tests need
// isolation.
func NewServer(store TaskReader, dispatcher Submitter, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", s.submitScrape)
		r.Get("/tasks", s.listTasks)
		r.Route("/tasks/{task_id}", func(r chi.Router) {
			r.Get("/", s.getTask)
			r.Post("/stop", s.stopTask)
		})
		r.Get("/stats", s.getStats)
		r.Get("/health", s.health)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type scrapeRequest struct {
	Kind        string `json:"kind"`
	Search      string `json:"search"`
	CategoryURL string `json:"categoryUrl"`
	Pages       int    `json:"pages"`
}

func (s *Server) submitScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	taskID, err := s.dispatcher.Submit(r.Context(), dispatcher.SubmitRequest{
		Kind:        req.Kind,
		Query:       req.Search,
		CategoryURL: req.CategoryURL,
		Pages:       req.Pages,
	})
	if err != nil {
		switch {
		case errors.Is(err, dispatcher.ErrInvalidRequest), errors.Is(err, taskstore.ErrInvalidParams):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, dispatcher.ErrShuttingDown):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"task_id": taskID,
	})
}

// taskResponse is the polling payload: the task snapshot plus the wall time
// once the task is terminal.
type taskResponse struct {
	scrape.Task
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.store.Get(taskID)
	if err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	resp := taskResponse{Task: task}
	if task.CompletedAt != nil {
		dur := task.CompletedAt.Sub(task.StartedAt).Seconds()
		resp.DurationSeconds = &dur
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) stopTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if err := s.store.Stop(r.Context(), taskID); err != nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"task_id": taskID,
	})
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	tasks := s.store.ListRecent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": tasks,
		"count": len(tasks),
	})
}

func (s *Server) getStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"active_tasks": stats.ActiveTasks,
		"total_tasks":  stats.TotalTasks,
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
