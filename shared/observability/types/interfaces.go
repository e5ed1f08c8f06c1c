// Package types holds the observability contracts shared by every component of
// the media bot: the orchestrator, the cache, the egress selector, the transport
// guard and the intake workers all log and measure through these interfaces.
package types

import (
	"context"
	"io"
)

// Logger defines the contract for structured logging.
// Implementations emit one JSON object per line so Loki can index the fields.
// All methods take a context so task and trace identifiers are attached
// automatically.
type Logger interface {
	// Info logs normal operational events (task started, cache hit, part sent).
	Info(ctx context.Context, msg string, fields Fields)

	// Error logs a failure together with the error that caused it.
	// Operator logs keep the full, unredacted error text.
	Error(ctx context.Context, msg string, err error, fields Fields)

	// Warn logs recoverable problems such as a retried credential or a
	// retired status message.
	Warn(ctx context.Context, msg string, fields Fields)

	// Debug logs verbose diagnostics that are filtered out unless the level
	// is "debug".
	Debug(ctx context.Context, msg string, fields Fields)

	// WithFields returns a logger that adds fields to every entry.
	WithFields(fields Fields) Logger
}

// Metrics defines the contract for recording Prometheus metrics.
type Metrics interface {
	// RecordSuccess counts a successful operation ("extract", "deliver", ...).
	RecordSuccess(operationType string)

	// RecordError counts a failed operation with its failure category.
	RecordError(operationType string, errorType string)

	// RecordDuration observes an operation duration in seconds.
	RecordDuration(operation string, duration float64)

	// RecordFileSize observes the size of a delivered artifact in bytes.
	RecordFileSize(mediaType string, bytes int64)

	// RecordCacheLookup counts cache lookups by outcome.
	RecordCacheLookup(hit bool)

	// RecordRetry counts retries by failure kind ("credential", "geo", ...).
	RecordRetry(kind string)

	// StartOperation increments the in-progress gauge for an operation.
	StartOperation(operation string)

	// EndOperation decrements the in-progress gauge for an operation.
	EndOperation(operation string)
}

// Fields represents structured logging fields as key-value pairs.
// Values must be JSON-serializable.
//
// Example:
//
//	fields := Fields{
//		"task_id": "b4d1...",
//		"index":   3,
//		"quality": "720p",
//	}
type Fields map[string]interface{}

// Config holds observability configuration for the provider.
type Config struct {
	// ServiceName identifies the service in logs and metrics.
	ServiceName string

	// Environment is the deployment environment ("local", "staging", "production").
	Environment string

	// LogLevel is the minimum level written: "debug", "info", "warn" or "error".
	LogLevel string

	// LogOutput is where log lines are written. Defaults to os.Stdout.
	LogOutput io.Writer

	// AdditionalFields are added to every log entry (version, region, ...).
	AdditionalFields Fields

	// Secrets are masked wherever they appear in a log line: the bot token,
	// database and AWS credentials, proxy passwords.
	Secrets []string
}

// Provider hands out per-component loggers and metrics collectors.
// Repeated calls with the same component name return the same instance.
type Provider interface {
	// Logger returns the logger for a component ("orchestrator", "cache", ...).
	Logger(component string) Logger

	// Metrics returns the metrics collector for a component.
	Metrics(component string) Metrics

	// Close releases the log output if it is closable.
	Close() error
}
