package config

import "time"

// HTTPConfig configures the operations HTTP server.
type HTTPConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RetryConfig holds the backoff policy for transient failures.
type RetryConfig struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// LimitsConfig holds size, duration and time limits for a task.
type LimitsConfig struct {
	// SplitThreshold is the default per-user part size in bytes.
	SplitThreshold int64
	// PlatformCeiling is the largest threshold a user may configure.
	PlatformCeiling int64
	// MaxEstimatedSize aborts a download whose estimate is larger.
	MaxEstimatedSize int64
	MaxParts         int
	MaxDuration      time.Duration
	TaskTimeout      time.Duration
}

// ProgressConfig tunes status message updates.
type ProgressConfig struct {
	BaseInterval time.Duration
	StepInterval time.Duration
	StepEvery    time.Duration
	MaxInterval  time.Duration
	CapAfter     time.Duration
	JoinTimeout  time.Duration
}

// EgressConfig lists credential sets and proxies.
type EgressConfig struct {
	// Credentials maps a source domain to its ordered cookie files.
	Credentials map[string][]string
	// DefaultCredentials are tried for domains without an entry.
	DefaultCredentials []string
	Proxies            []string
	ProxyPolicy        string
	// StaticProxies pins a domain to one proxy URL.
	StaticProxies map[string]string
	SuccessTTL    time.Duration
}

// DatabaseConfig configures the PostgreSQL store.
type DatabaseConfig struct {
	Host         string
	Port         int
	Database     string
	Username     string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// S3Config configures the S3 store.
type S3Config struct {
	Region          string
	Bucket          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// StoreConfig picks and configures the cache store backend.
type StoreConfig struct {
	Provider   string
	SQLitePath string
	Table      string
	Postgres   DatabaseConfig
	S3         S3Config
}

// TransportConfig configures the chat Bot API client.
type TransportConfig struct {
	APIURL            string
	Token             string
	ArchiveChatID     int64
	MessagesPerSecond float64
	Burst             int
	MaxSendAttempts   int
	Timeout           time.Duration
}

// EngineConfig locates the external tools.
type EngineConfig struct {
	YtDlpPath     string
	GalleryDlPath string
	FFmpegPath    string
	FFprobePath   string
	ProbeTimeout  time.Duration
}

// RabbitMQConfig configures the AMQP intake and results queues.
type RabbitMQConfig struct {
	URL           string
	Queue         string
	ResultsQueue  string
	PrefetchCount int
}

// SQSConfig configures the SQS intake queue.
type SQSConfig struct {
	Region            string
	QueueURL          string
	WaitTime          time.Duration
	VisibilityTimeout time.Duration
	Endpoint          string
}

// QueueConfig picks the intake queue.
type QueueConfig struct {
	Provider    string
	Concurrency int
	RabbitMQ    RabbitMQConfig
	SQS         SQSConfig
}

// ClassifierConfig lists what marks content as restricted. Restricted
// results are delivered but never cached.
type ClassifierConfig struct {
	Domains  []string
	Keywords []string
}

// WorkdirConfig configures per-task working directories.
type WorkdirConfig struct {
	BaseDir    string
	MarkerName string
}
