package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

func decode(t *testing.T, buf *bytes.Buffer) types.Fields {
	t.Helper()
	var entry types.Fields
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"unknown", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "error", ErrorLevel.String())
	assert.Equal(t, "unknown", LogLevel(99).String())
}

func TestLokiLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		logMethod func(*LokiLogger, context.Context)
		shouldLog bool
	}{
		{
			name:      "debug level logs debug",
			logLevel:  "debug",
			logMethod: func(l *LokiLogger, ctx context.Context) { l.Debug(ctx, "probe", nil) },
			shouldLog: true,
		},
		{
			name:      "info level skips debug",
			logLevel:  "info",
			logMethod: func(l *LokiLogger, ctx context.Context) { l.Debug(ctx, "probe", nil) },
			shouldLog: false,
		},
		{
			name:      "error level skips warn",
			logLevel:  "error",
			logMethod: func(l *LokiLogger, ctx context.Context) { l.Warn(ctx, "retry", nil) },
			shouldLog: false,
		},
		{
			name:      "error level logs error",
			logLevel:  "error",
			logMethod: func(l *LokiLogger, ctx context.Context) { l.Error(ctx, "failed", errors.New("x"), nil) },
			shouldLog: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := New(Options{Service: "test", Level: tt.logLevel, Output: &buf})

			tt.logMethod(l, context.Background())

			if tt.shouldLog {
				assert.NotEmpty(t, buf.String())
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLokiLogger_TaskContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{
		Service:     "mediabot.orchestrator",
		Environment: "prod",
		Output:      &buf,
		Fields:      types.Fields{"version": "1.2.0"},
	})

	ctx := WithTask(context.Background(), "task-1", 42)
	ctx = context.WithValue(ctx, TraceIDKey, "trace-9")

	l.Info(ctx, "Task started", types.Fields{"quality": "720p"})

	entry := decode(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "mediabot.orchestrator", entry["service"])
	assert.Equal(t, "prod", entry["env"])
	assert.Equal(t, "Task started", entry["message"])
	assert.Equal(t, "task-1", entry["task_id"])
	assert.Equal(t, float64(42), entry["user_id"])
	assert.Equal(t, "trace-9", entry["trace_id"])
	assert.Equal(t, "1.2.0", entry["version"])
	assert.Equal(t, "720p", entry["quality"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLokiLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Service: "test", Level: "error", Output: &buf})

	l.Error(context.Background(), "Delivery failed", errors.New("message gone"), types.Fields{"part": 2})

	entry := decode(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "message gone", entry["error"])
	assert.Equal(t, "*errors.errorString", entry["error_type"])
	assert.Equal(t, float64(2), entry["part"])
}

func TestLokiLogger_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Service: "test", Output: &buf, Secrets: []string{"123456:ABC-token", "", "pw"}})

	l.Error(context.Background(), "Call to /bot123456:ABC-token/sendVideo failed",
		errors.New(`Post "https://api.example/bot123456:ABC-token/sendVideo": EOF`),
		types.Fields{"url": "https://api.example/bot123456:ABC-token/x", "pw_len": 2})

	out := buf.String()
	assert.NotContains(t, out, "ABC-token")
	entry := decode(t, &buf)
	assert.Equal(t, "Call to /bot"+Mask+"/sendVideo failed", entry["message"])
	assert.Contains(t, entry["error"], Mask)
	assert.Equal(t, "https://api.example/bot"+Mask+"/x", entry["url"])
	// values shorter than four bytes are never treated as secrets
	assert.Equal(t, float64(2), entry["pw_len"])
}

func TestLokiLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Service: "test", Output: &buf})

	child, ok := base.WithFields(types.Fields{"component": "cache"}).(*LokiLogger)
	require.True(t, ok)

	child.Info(context.Background(), "Lookup", types.Fields{"hit": true})

	entry := decode(t, &buf)
	assert.Equal(t, "cache", entry["component"])
	assert.Equal(t, true, entry["hit"])
	assert.Empty(t, base.fields)
}

func TestLokiLogger_ChildrenShareOutput(t *testing.T) {
	var buf bytes.Buffer
	base := New(Options{Service: "test", Output: &buf})
	child := base.WithFields(types.Fields{"component": "hub"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); base.Info(context.Background(), "parent", nil) }()
		go func() { defer wg.Done(); child.Info(context.Background(), "child", nil) }()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 100)
	for _, line := range lines {
		assert.True(t, json.Valid([]byte(line)), line)
	}
}
