// Package logger writes structured JSON log lines in the shape Loki expects.
// Every entry carries the service, environment and host plus any task
// correlation identifiers found on the context. Configured secrets are masked
// in messages, error text and string field values before a line is written.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

// LogLevel is the severity of a log entry.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Mask replaces every configured secret.
const Mask = "[REDACTED]"

// ContextKey is the type of the context keys the logger reads.
type ContextKey string

// Context keys copied into every entry when present.
const (
	TraceIDKey   ContextKey = "trace_id"
	RequestIDKey ContextKey = "request_id"
	TaskIDKey    ContextKey = "task_id"
	UserIDKey    ContextKey = "user_id"
)

var contextKeys = []ContextKey{TraceIDKey, RequestIDKey, TaskIDKey, UserIDKey}

var levelNames = map[LogLevel]string{
	DebugLevel: "debug",
	InfoLevel:  "info",
	WarnLevel:  "warn",
	ErrorLevel: "error",
}

// ParseLevel converts a level name to a LogLevel. Unknown names map to info.
func ParseLevel(level string) LogLevel {
	for l, name := range levelNames {
		if strings.EqualFold(level, name) {
			return l
		}
	}
	return InfoLevel
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// Options configure a LokiLogger.
type Options struct {
	Service     string
	Environment string
	Level       string
	// Output defaults to os.Stdout.
	Output io.Writer
	Fields types.Fields
	// Secrets are literal values (bot token, passwords) masked in every line.
	Secrets []string
}

// sink is shared by a logger and all of its children so lines written
// through any of them never interleave.
type sink struct {
	mu      sync.Mutex
	out     io.Writer
	secrets *strings.Replacer
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Write(append(line, '\n'))
}

func (s *sink) mask(v string) string {
	if s.secrets == nil {
		return v
	}
	return s.secrets.Replace(v)
}

// LokiLogger implements types.Logger with JSON lines.
type LokiLogger struct {
	sink     *sink
	base     types.Fields
	minLevel LogLevel
	fields   types.Fields
}

// New creates a logger from opts.
func New(opts Options) *LokiLogger {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	s := &sink{out: out}
	var pairs []string
	for _, secret := range opts.Secrets {
		// very short values would mask ordinary text
		if len(secret) >= 4 {
			pairs = append(pairs, secret, Mask)
		}
	}
	if len(pairs) > 0 {
		s.secrets = strings.NewReplacer(pairs...)
	}

	return &LokiLogger{
		sink: s,
		base: types.Fields{
			"service":  opts.Service,
			"env":      opts.Environment,
			"hostname": hostname,
		},
		minLevel: ParseLevel(opts.Level),
		fields:   opts.Fields,
	}
}

// WithTask returns a context carrying the task and user identifiers.
func WithTask(ctx context.Context, taskID string, userID int64) context.Context {
	ctx = context.WithValue(ctx, TaskIDKey, taskID)
	return context.WithValue(ctx, UserIDKey, userID)
}

func (l *LokiLogger) Info(ctx context.Context, msg string, fields types.Fields) {
	l.log(ctx, InfoLevel, msg, nil, fields)
}

func (l *LokiLogger) Error(ctx context.Context, msg string, err error, fields types.Fields) {
	l.log(ctx, ErrorLevel, msg, err, fields)
}

func (l *LokiLogger) Warn(ctx context.Context, msg string, fields types.Fields) {
	l.log(ctx, WarnLevel, msg, nil, fields)
}

func (l *LokiLogger) Debug(ctx context.Context, msg string, fields types.Fields) {
	l.log(ctx, DebugLevel, msg, nil, fields)
}

// WithFields returns a child logger writing to the same sink.
func (l *LokiLogger) WithFields(fields types.Fields) types.Logger {
	merged := make(types.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &LokiLogger{sink: l.sink, base: l.base, minLevel: l.minLevel, fields: merged}
}

func (l *LokiLogger) log(ctx context.Context, level LogLevel, msg string, err error, fields types.Fields) {
	if level < l.minLevel {
		return
	}

	entry := make(types.Fields, len(l.base)+len(l.fields)+len(fields)+8)
	for k, v := range l.base {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = l.sink.mask(msg)

	if ctx != nil {
		for _, key := range contextKeys {
			if v := ctx.Value(key); v != nil {
				entry[string(key)] = v
			}
		}
	}

	if err != nil {
		entry["error"] = l.sink.mask(err.Error())
		entry["error_type"] = fmt.Sprintf("%T", err)
	}

	for _, set := range []types.Fields{l.fields, fields} {
		for k, v := range set {
			if s, ok := v.(string); ok {
				v = l.sink.mask(s)
			}
			entry[k] = v
		}
	}

	line, mErr := json.Marshal(entry)
	if mErr != nil {
		line, _ = json.Marshal(types.Fields{
			"timestamp": entry["timestamp"],
			"level":     entry["level"],
			"message":   entry["message"],
			"log_error": mErr.Error(),
		})
	}
	l.sink.write(line)
}
