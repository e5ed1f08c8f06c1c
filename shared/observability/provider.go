package observability

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/logger"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/metrics"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

type (
	Logger   = types.Logger
	Metrics  = types.Metrics
	Fields   = types.Fields
	Config   = types.Config
	Provider = types.Provider
)

// DefaultProvider creates loggers and Prometheus collectors lazily, one per
// component, and hands out the same instance on every later call.
type DefaultProvider struct {
	config  *Config
	loggers map[string]Logger
	metrics map[string]Metrics
	mu      sync.RWMutex
}

// NewProvider returns a Provider for config. LogOutput defaults to os.Stdout.
//
//	provider := observability.NewProvider(&observability.Config{
//		ServiceName: "mediabot",
//		Environment: "production",
//		LogLevel:    "info",
//	})
//	log := provider.Logger("orchestrator")
func NewProvider(config *Config) Provider {
	if config.LogOutput == nil {
		config.LogOutput = os.Stdout
	}

	return &DefaultProvider{
		config:  config,
		loggers: make(map[string]Logger),
		metrics: make(map[string]Metrics),
	}
}

// Logger returns the logger for component. Entries carry a "component" field
// and the service name "{ServiceName}.{component}".
func (p *DefaultProvider) Logger(component string) Logger {
	return cached(&p.mu, p.loggers, component, func() Logger {
		fields := make(Fields, len(p.config.AdditionalFields)+1)
		for k, v := range p.config.AdditionalFields {
			fields[k] = v
		}
		fields["component"] = component

		return logger.New(logger.Options{
			Service:     fmt.Sprintf("%s.%s", p.config.ServiceName, component),
			Environment: p.config.Environment,
			Level:       p.config.LogLevel,
			Output:      p.config.LogOutput,
			Fields:      fields,
			Secrets:     p.config.Secrets,
		})
	})
}

// Metrics returns the metrics collector for component. Metric names are
// prefixed with "{ServiceName}_{component}". Registering the same component
// twice would panic in Prometheus, so the collector is built once.
func (p *DefaultProvider) Metrics(component string) Metrics {
	return cached(&p.mu, p.metrics, component, func() Metrics {
		namespace := component
		if p.config.ServiceName != "" {
			namespace = p.config.ServiceName + "_" + component
		}
		return metrics.New(namespace)
	})
}

// cached returns m[key], building and storing it under the write lock on
// first use.
func cached[V any](mu *sync.RWMutex, m map[string]V, key string, build func() V) V {
	mu.RLock()
	v, ok := m[key]
	mu.RUnlock()
	if ok {
		return v
	}

	mu.Lock()
	defer mu.Unlock()
	if v, ok := m[key]; ok {
		return v
	}
	v = build()
	m[key] = v
	return v
}

// Close closes LogOutput when it is a closer other than stdout or stderr.
func (p *DefaultProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if closer, ok := p.config.LogOutput.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}

	return nil
}
