package handler

import "github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"

// Factory builds Handlers with the standard middleware stack.
type Factory struct {
	worker   Worker
	provider types.Provider
	config   *Config
}

// NewFactory creates a Factory with DefaultConfig.
func NewFactory(worker Worker, provider types.Provider) *Factory {
	return &Factory{
		worker:   worker,
		provider: provider,
		config:   DefaultConfig(),
	}
}

// WithConfig replaces the handler options.
func (f *Factory) WithConfig(config *Config) *Factory {
	f.config = config
	return f
}

// Create returns a Handler wrapped, from the outside in, in recovery,
// tracing, metrics, logging and validation.
func (f *Factory) Create() *Handler {
	h := NewHandler(f.worker, f.provider, f.config)

	h.Use(RecoveryMiddleware(f.provider))
	if f.config.EnableTracing {
		h.Use(TracingMiddleware())
	}
	if f.config.EnableMetrics {
		h.Use(MetricsMiddleware(f.provider))
	}
	h.Use(LoggingMiddleware(f.provider))
	h.Use(ValidationMiddleware(f.config.MaxPayloadSize))

	return h
}
