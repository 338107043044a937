// Package api exposes the HTTP interface for the discovery service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/discovery"
	"github.com/ddoubleg123/carrot-discovery/internal/enrich"
	"github.com/ddoubleg123/carrot-discovery/internal/metrics"
)

// Server wires HTTP handlers to the intake service and stores.
type Server struct {
	router  chi.Router
	intake  *enrich.Service
	content discovery.ContentStore
	heroes  discovery.HeroStore
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(intake *enrich.Service, content discovery.ContentStore, heroes discovery.HeroStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		intake:  intake,
		content: content,
		heroes:  heroes,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/discover", s.discover)
		r.Get("/contents/{content_id}", s.getContent)
		r.Get("/heroes/{content_id}", s.getHero)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) discover(w http.ResponseWriter, r *http.Request) {
	var req enrich.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" || req.Topic == "" {
		writeError(w, http.StatusBadRequest, "url and topic are required")
		return
	}
	res, err := s.intake.Submit(r.Context(), req)
	if err != nil {
		writeError(w, submitStatus(err), err.Error())
		return
	}
	status := http.StatusAccepted
	if res.Status == discovery.ContentRejected {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// submitStatus maps an intake failure to an HTTP status. Upstream fetch
// failures surface as 502 so callers can distinguish them from bad input.
func submitStatus(err error) int {
	var stageErr *discovery.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Code {
		case discovery.CodeTimeout:
			return http.StatusGatewayTimeout
		case discovery.CodePaywallOrBlock, discovery.CodeHTTP4xx, discovery.CodeHTTP5xx:
			return http.StatusBadGateway
		case discovery.CodeParseFailure:
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func (s *Server) getContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "content_id")
	record, found, err := s.content.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read content record")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "content not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) getHero(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "content_id")
	hero, found, err := s.heroes.GetByContentID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read hero")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "hero not found")
		return
	}
	writeJSON(w, http.StatusOK, hero)
}

type requestIDKey struct{}

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
					logger.Error("panic recovered", zap.Any("panic", rec))
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
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("hijacking not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
