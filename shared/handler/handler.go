package handler

import (
	"context"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/logger"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

type contextKey string

const workerKey contextKey = "worker"

// Middleware wraps a HandlerFunc with a cross-cutting concern.
type Middleware func(next HandlerFunc) HandlerFunc

// HandlerFunc processes one request.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Dispatcher is what an intake needs from a Handler.
type Dispatcher interface {
	Handle(ctx context.Context, req Request) (Response, error)
	Health(ctx context.Context) error
}

// Handler runs a Worker behind a middleware chain.
type Handler struct {
	worker      Worker
	provider    types.Provider
	middlewares []Middleware
	config      *Config
}

var _ Dispatcher = (*Handler)(nil)

// NewHandler creates a Handler without middleware. Most callers use a
// Factory instead.
func NewHandler(worker Worker, provider types.Provider, config *Config) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	return &Handler{
		worker:   worker,
		provider: provider,
		config:   config,
	}
}

// Use appends middleware. The first added is the outermost.
func (h *Handler) Use(middleware Middleware) {
	h.middlewares = append(h.middlewares, middleware)
}

// Handle runs req through the chain and the worker.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	ctx = context.WithValue(ctx, logger.RequestIDKey, req.ID)
	ctx = context.WithValue(ctx, workerKey, h.worker.Name())

	return h.chain()(ctx, req)
}

// Health delegates to the worker.
func (h *Handler) Health(ctx context.Context) error {
	return h.worker.Health(ctx)
}

// Config returns the handler options.
func (h *Handler) Config() *Config {
	return h.config
}

// Worker returns the wrapped worker.
func (h *Handler) Worker() Worker {
	return h.worker
}

func (h *Handler) chain() HandlerFunc {
	next := h.worker.Process
	for i := len(h.middlewares) - 1; i >= 0; i-- {
		next = h.middlewares[i](next)
	}
	return next
}

// WorkerName returns the name of the worker handling ctx's request.
func WorkerName(ctx context.Context) string {
	name, _ := ctx.Value(workerKey).(string)
	return name
}
