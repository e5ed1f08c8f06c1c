package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(2093796556), cfg.Limits.SplitThreshold)
	assert.Equal(t, int64(2<<30), cfg.Limits.PlatformCeiling)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = ""
	cfg.Limits.MaxParts = 0
	cfg.Egress.ProxyPolicy = "sticky"
	cfg.Store.Provider = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVICE_NAME is required")
	assert.Contains(t, err.Error(), "LIMITS_MAX_PARTS")
	assert.Contains(t, err.Error(), `"sticky"`)
	assert.Contains(t, err.Error(), `"redis"`)
}

func TestValidateStoreRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "sqlite without path",
			mutate:  func(c *Config) { c.Store.Provider = "sqlite" },
			wantErr: "STORE_SQLITE_PATH",
		},
		{
			name:    "postgres without host",
			mutate:  func(c *Config) { c.Store.Provider = "postgres" },
			wantErr: "DB_HOST",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Store.Provider = "s3" },
			wantErr: "S3_BUCKET",
		},
		{
			name:    "sqs without queue url",
			mutate:  func(c *Config) { c.Queue.Provider = "sqs" },
			wantErr: "SQS_QUEUE_URL",
		},
		{
			name: "production without token",
			mutate: func(c *Config) {
				c.Environment = "production"
			},
			wantErr: "TRANSPORT_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseConfigFromEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("ADMIN_IDS", "100, 200,abc")
	t.Setenv("EGRESS_CREDENTIALS", "youtube.com=/c/a.txt|/c/b.txt,Instagram.com=/c/ig.txt")
	t.Setenv("EGRESS_STATIC_PROXIES", "tiktok.com=socks5://10.0.0.1:1080")
	t.Setenv("EGRESS_PROXIES", "http://p1:8080,http://p2:8080")
	t.Setenv("STORE_PROVIDER", "memory")
	t.Setenv("LIMITS_MAX_PARTS", "7")
	t.Setenv("PROGRESS_MAX_INTERVAL", "2m")
	t.Setenv("RABBITMQ_QUEUE", "jobs")

	cfg, err := (&Provider{}).parseConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsStaging())
	assert.Equal(t, []int64{100, 200}, cfg.AdminIDs)
	assert.True(t, cfg.IsAdmin(200))
	assert.False(t, cfg.IsAdmin(300))
	assert.Equal(t, []string{"/c/a.txt", "/c/b.txt"}, cfg.Egress.Credentials["youtube.com"])
	assert.Equal(t, []string{"/c/ig.txt"}, cfg.Egress.Credentials["instagram.com"])
	assert.Equal(t, "socks5://10.0.0.1:1080", cfg.Egress.StaticProxies["tiktok.com"])
	assert.Len(t, cfg.Egress.Proxies, 2)
	assert.Equal(t, 7, cfg.Limits.MaxParts)
	assert.Equal(t, 2*time.Minute, cfg.Progress.MaxInterval)
	assert.Equal(t, "jobs.results", cfg.Queue.RabbitMQ.ResultsQueue)
	assert.Equal(t, "mediabot/staging/cache", cfg.Store.S3.Prefix)
}

func TestApplyDefaultsProduction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = "prod"
	cfg.LogLevel = "debug"
	cfg.Retry.MaxAttempts = 1

	cfg.applyDefaults()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestGetDurationFallback(t *testing.T) {
	t.Setenv("TEST_DURATION", "not-a-duration")
	assert.Equal(t, 5*time.Second, getDuration("TEST_DURATION", "5s"))
}

func TestEnvironmentPredicates(t *testing.T) {
	tests := []struct {
		env                         string
		local, staging, prod, isTst bool
	}{
		{env: "local", local: true},
		{env: "dev", local: true},
		{env: "stage", staging: true},
		{env: "PRODUCTION", prod: true},
		{env: "test", isTst: true},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Environment: tt.env}
			assert.Equal(t, tt.local, cfg.IsLocal())
			assert.Equal(t, tt.staging, cfg.IsStaging())
			assert.Equal(t, tt.prod, cfg.IsProduction())
			assert.Equal(t, tt.isTst, cfg.IsTest())
		})
	}
}
