// Package opsserver exposes the operator HTTP surface: health, Prometheus
// metrics, direct task submission and cache invalidation.
package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/cache"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/internal/domain"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/handler"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// Invalidator drops cache entries.
type Invalidator interface {
	Invalidate(ctx context.Context, key cache.Key) error
}

// Server serves the operator endpoints.
type Server struct {
	cfg        config.HTTPConfig
	dispatcher handler.Dispatcher
	cache      Invalidator
	logger     types.Logger
	metrics    types.Metrics

	// metricsHandler defaults to promhttp.Handler().
	metricsHandler http.Handler

	mu      sync.Mutex
	baseCtx context.Context
	tasks   sync.WaitGroup
}

// New creates a Server. cache may be nil, in which case DELETE /cache
// answers 501.
func New(cfg config.HTTPConfig, d handler.Dispatcher, c Invalidator, logger types.Logger, metrics types.Metrics) *Server {
	return &Server{
		cfg:            cfg,
		dispatcher:     d,
		cache:          c,
		logger:         logger,
		metrics:        metrics,
		metricsHandler: promhttp.Handler(),
		baseCtx:        context.Background(),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.track)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metricsHandler)
	r.Post("/tasks", s.handleSubmit)
	r.Delete("/cache", s.handleInvalidate)
	return r
}

// Run serves until ctx is cancelled, then shuts the listener down and waits
// for tasks submitted without ?wait. Those tasks see ctx cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting ops HTTP server", types.Fields{"address": s.cfg.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info(ctx, "Shutting down ops HTTP server", nil)
	err := srv.Shutdown(shutdownCtx)
	s.tasks.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.dispatcher.Health(r.Context()); err != nil {
		s.logger.Warn(r.Context(), "Health check failed", types.Fields{"error": err.Error()})
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmit accepts a download request body. With ?wait=1 it blocks
// until the task finishes and returns the handler response; otherwise it
// answers 202 with the request id.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var probe domain.DownloadRequest
	if err := json.Unmarshal(body, &probe); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	req := handler.Request{
		ID:        uuid.NewString(),
		Source:    "http",
		Type:      handler.TypeDownload,
		Payload:   json.RawMessage(body),
		Metadata:  map[string]string{"http_remote_addr": r.RemoteAddr},
		Timestamp: time.Now().UTC(),
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		req.Metadata["http_user_agent"] = ua
	}
	if traceID := r.Header.Get("X-Trace-Id"); traceID != "" {
		req.Metadata["trace_id"] = traceID
	}

	if r.URL.Query().Get("wait") == "1" {
		resp, err := s.dispatcher.Handle(r.Context(), req)
		if err != nil {
			s.logger.Error(r.Context(), "Task failed", err, types.Fields{"request_id": req.ID})
			respondError(w, http.StatusInternalServerError, "task failed")
			return
		}
		respondJSON(w, statusFor(resp), resp)
		return
	}

	s.mu.Lock()
	base := s.baseCtx
	s.mu.Unlock()

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		resp, err := s.dispatcher.Handle(base, req)
		if err != nil {
			s.logger.Error(base, "Task failed", err, types.Fields{"request_id": req.ID})
			return
		}
		s.logger.Info(base, "Task finished", types.Fields{"request_id": req.ID, "success": resp.Success})
	}()

	respondJSON(w, http.StatusAccepted, map[string]string{"id": req.ID})
}

// handleInvalidate drops the entry for ?url=&quality=. playlist=1 targets
// the playlist record instead of the single item.
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		respondError(w, http.StatusNotImplemented, "cache is disabled")
		return
	}

	q := r.URL.Query()
	rawURL := q.Get("url")
	quality := q.Get("quality")
	if quality == "" {
		quality = domain.QualityBest
	}
	if rawURL == "" {
		respondError(w, http.StatusBadRequest, "url is required")
		return
	}
	if !domain.ValidQuality(quality) {
		respondError(w, http.StatusBadRequest, domain.ErrInvalidQuality.Message)
		return
	}

	key := cache.NewKey(rawURL, quality)
	if q.Get("playlist") == "1" {
		key = cache.NewPlaylistKey(rawURL, quality)
	}

	if err := s.cache.Invalidate(r.Context(), key); err != nil {
		s.logger.Error(r.Context(), "Cache invalidation failed", err, types.Fields{"key": string(key)})
		respondError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	s.logger.Info(r.Context(), "Cache entry invalidated", types.Fields{"key": string(key)})
	w.WriteHeader(http.StatusNoContent)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// track records a duration and an outcome per route.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		op := "http" + route
		s.metrics.RecordDuration(op, time.Since(start).Seconds())
		if rec.status >= http.StatusInternalServerError {
			s.metrics.RecordError(op, http.StatusText(rec.status))
		} else {
			s.metrics.RecordSuccess(op)
		}
	})
}

func statusFor(resp handler.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusUnprocessableEntity
	}
	switch resp.Error.Code {
	case handler.CodeValidation:
		return http.StatusBadRequest
	case handler.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case handler.CodeUnavailable, handler.CodeCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
