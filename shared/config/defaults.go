package config

import (
	"os"
	"time"
)

// Size limits in bytes.
const (
	// DefaultSplitThreshold is 1.95 GiB.
	DefaultSplitThreshold int64 = 1 << 30 * 195 / 100
	// DefaultPlatformCeiling is the 2 GiB upload ceiling of the chat platform.
	DefaultPlatformCeiling int64 = 2 << 30
	// DefaultMaxEstimatedSize aborts downloads estimated above 8 GiB.
	DefaultMaxEstimatedSize int64 = 8 << 30
)

// DefaultRetryConfig returns sensible defaults for retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// DefaultLimitsConfig returns the default task limits.
func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		SplitThreshold:   DefaultSplitThreshold,
		PlatformCeiling:  DefaultPlatformCeiling,
		MaxEstimatedSize: DefaultMaxEstimatedSize,
		MaxParts:         50,
		MaxDuration:      12 * time.Hour,
		TaskTimeout:      2 * time.Hour,
	}
}

// DefaultProgressConfig returns the status update schedule: 3s, plus 1s
// every 5 minutes, capped at 90s after an hour.
func DefaultProgressConfig() ProgressConfig {
	return ProgressConfig{
		BaseInterval: 3 * time.Second,
		StepInterval: time.Second,
		StepEvery:    5 * time.Minute,
		MaxInterval:  90 * time.Second,
		CapAfter:     60 * time.Minute,
		JoinTimeout:  10 * time.Second,
	}
}

// DefaultEgressConfig returns an egress config with no credentials or proxies.
func DefaultEgressConfig() EgressConfig {
	return EgressConfig{
		Credentials:   map[string][]string{},
		ProxyPolicy:   "round_robin",
		StaticProxies: map[string]string{},
		SuccessTTL:    6 * time.Hour,
	}
}

// DefaultConfig returns a complete local configuration backed by the
// in-memory store with no intake queue.
func DefaultConfig() *Config {
	return &Config{
		Environment: "local",
		ServiceName: "mediabot",
		LogLevel:    "info",
		Version:     "1.0.0",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Retry:    DefaultRetryConfig(),
		Limits:   DefaultLimitsConfig(),
		Progress: DefaultProgressConfig(),
		Egress:   DefaultEgressConfig(),
		Store: StoreConfig{
			Provider: "memory",
			Table:    "cache_entries",
		},
		Transport: TransportConfig{
			APIURL:            "https://api.telegram.org",
			MessagesPerSecond: 20,
			Burst:             5,
			MaxSendAttempts:   3,
			Timeout:           10 * time.Minute,
		},
		Engine: EngineConfig{
			YtDlpPath:     "yt-dlp",
			GalleryDlPath: "gallery-dl",
			FFmpegPath:    "ffmpeg",
			FFprobePath:   "ffprobe",
			ProbeTimeout:  2 * time.Minute,
		},
		Queue: QueueConfig{
			Provider:    "none",
			Concurrency: 2,
		},
		Workdir: WorkdirConfig{
			BaseDir:    os.TempDir(),
			MarkerName: ".mediabot-task",
		},
	}
}
