package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	provider := NewProvider(&Config{ServiceName: "mediabot", Environment: "test", LogLevel: "info"})

	assert.NotNil(t, provider)
	assert.Implements(t, (*Provider)(nil), provider)
}

func TestDefaultProvider_Logger(t *testing.T) {
	var buf bytes.Buffer
	provider := NewProvider(&Config{
		ServiceName:      "mediabot",
		Environment:      "test",
		LogLevel:         "info",
		LogOutput:        &buf,
		AdditionalFields: Fields{"version": "1.0.0"},
	})
	defer provider.Close()

	first := provider.Logger("cache")
	second := provider.Logger("cache")
	other := provider.Logger("egress")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)

	first.Info(context.Background(), "Cache hit", Fields{"index": 3})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "mediabot.cache", entry["service"])
	assert.Equal(t, "cache", entry["component"])
	assert.Equal(t, "1.0.0", entry["version"])
}

func TestDefaultProvider_LoggerMasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	provider := NewProvider(&Config{
		ServiceName: "mediabot",
		LogOutput:   &buf,
		Secrets:     []string{"s3cr3t-pass"},
	})

	provider.Logger("store").Info(context.Background(), "Connecting", Fields{"dsn": "postgres://bot:s3cr3t-pass@db/media"})

	assert.NotContains(t, buf.String(), "s3cr3t-pass")
	assert.Contains(t, buf.String(), "postgres://bot:[REDACTED]@db/media")
}

func TestDefaultProvider_Metrics(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	provider := NewProvider(&Config{ServiceName: "mediabot", Environment: "test"})
	defer provider.Close()

	first := provider.Metrics("orchestrator")
	second := provider.Metrics("orchestrator")
	other := provider.Metrics("transport")

	assert.Same(t, first, second)
	assert.NotSame(t, first, other)
}

func TestDefaultProvider_Close(t *testing.T) {
	t.Run("close with stdout", func(t *testing.T) {
		provider := NewProvider(&Config{ServiceName: "test"})
		assert.NoError(t, provider.Close())
	})

	t.Run("close with buffer", func(t *testing.T) {
		var buf bytes.Buffer
		provider := NewProvider(&Config{ServiceName: "test", LogOutput: &buf})
		assert.NoError(t, provider.Close())
	})
}
