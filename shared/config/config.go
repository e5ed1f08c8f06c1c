package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Environment string
	ServiceName string
	LogLevel    string
	Version     string

	// AdminIDs are requester ids exempt from the task timeout.
	AdminIDs []int64

	HTTP       HTTPConfig
	Retry      RetryConfig
	Limits     LimitsConfig
	Progress   ProgressConfig
	Egress     EgressConfig
	Store      StoreConfig
	Transport  TransportConfig
	Engine     EngineConfig
	Queue      QueueConfig
	Workdir    WorkdirConfig
	Classifier ClassifierConfig
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errors []string

	if c.ServiceName == "" {
		errors = append(errors, "SERVICE_NAME is required")
	}

	if c.Limits.SplitThreshold <= 0 {
		errors = append(errors, "LIMITS_SPLIT_THRESHOLD must be positive")
	}
	if c.Limits.PlatformCeiling < c.Limits.SplitThreshold {
		errors = append(errors, "LIMITS_PLATFORM_CEILING must be >= LIMITS_SPLIT_THRESHOLD")
	}
	if c.Limits.MaxEstimatedSize <= 0 {
		errors = append(errors, "LIMITS_MAX_ESTIMATED_SIZE must be positive")
	}
	if c.Limits.MaxParts < 1 {
		errors = append(errors, "LIMITS_MAX_PARTS must be at least 1")
	}
	if c.Limits.TaskTimeout <= 0 {
		errors = append(errors, "LIMITS_TASK_TIMEOUT must be positive")
	}

	if c.Retry.MaxAttempts < 0 {
		errors = append(errors, "RETRY_MAX_ATTEMPTS cannot be negative")
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		errors = append(errors, "RETRY_BACKOFF_MULTIPLIER must be >= 1.0")
	}

	if c.Progress.BaseInterval <= 0 || c.Progress.MaxInterval < c.Progress.BaseInterval {
		errors = append(errors, "PROGRESS_BASE_INTERVAL must be positive and <= PROGRESS_MAX_INTERVAL")
	}

	switch c.Egress.ProxyPolicy {
	case "round_robin", "random", "static":
	default:
		errors = append(errors, fmt.Sprintf("EGRESS_PROXY_POLICY %q is not one of round_robin, random, static", c.Egress.ProxyPolicy))
	}

	switch c.Store.Provider {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errors = append(errors, "STORE_SQLITE_PATH is required for the sqlite store")
		}
	case "postgres":
		if c.Store.Postgres.Host == "" {
			errors = append(errors, "DB_HOST is required for the postgres store")
		}
	case "s3":
		if c.Store.S3.Bucket == "" {
			errors = append(errors, "S3_BUCKET is required for the s3 store")
		}
	default:
		errors = append(errors, fmt.Sprintf("STORE_PROVIDER %q is not supported", c.Store.Provider))
	}

	switch c.Queue.Provider {
	case "none":
	case "rabbitmq":
		if c.Queue.RabbitMQ.URL == "" {
			errors = append(errors, "RABBITMQ_URL is required for the rabbitmq queue")
		}
	case "sqs":
		if c.Queue.SQS.QueueURL == "" {
			errors = append(errors, "SQS_QUEUE_URL is required for the sqs queue")
		}
	default:
		errors = append(errors, fmt.Sprintf("QUEUE_PROVIDER %q is not supported", c.Queue.Provider))
	}
	if c.Queue.Concurrency < 1 {
		errors = append(errors, "QUEUE_CONCURRENCY must be at least 1")
	}

	if c.IsProduction() && c.Transport.Token == "" {
		errors = append(errors, "TRANSPORT_TOKEN is required in production")
	}
	if c.Transport.MaxSendAttempts < 1 {
		errors = append(errors, "TRANSPORT_MAX_SEND_ATTEMPTS must be at least 1")
	}

	if c.Workdir.BaseDir == "" {
		errors = append(errors, "WORKDIR_BASE_DIR is required")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// applyDefaults fills derived values and environment specific overrides.
func (c *Config) applyDefaults() {
	if c.Store.Table == "" {
		c.Store.Table = "cache_entries"
	}
	if c.Store.S3.Prefix == "" {
		c.Store.S3.Prefix = fmt.Sprintf("%s/%s/cache", c.ServiceName, strings.ToLower(c.Environment))
	}
	if c.Queue.RabbitMQ.ResultsQueue == "" && c.Queue.RabbitMQ.Queue != "" {
		c.Queue.RabbitMQ.ResultsQueue = c.Queue.RabbitMQ.Queue + ".results"
	}
	if c.Limits.PlatformCeiling == 0 {
		c.Limits.PlatformCeiling = DefaultPlatformCeiling
	}

	if c.IsProduction() {
		if c.Retry.MaxAttempts < 3 {
			c.Retry.MaxAttempts = 3
		}
		if c.LogLevel == "debug" {
			c.LogLevel = "info"
		}
	}

	if c.IsLocal() && c.Progress.JoinTimeout > 5*time.Second {
		c.Progress.JoinTimeout = 5 * time.Second
	}
}

// IsAdmin reports whether requesterID is in the admin list.
func (c *Config) IsAdmin(requesterID int64) bool {
	for _, id := range c.AdminIDs {
		if id == requesterID {
			return true
		}
	}
	return false
}
