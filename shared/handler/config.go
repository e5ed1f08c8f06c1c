package handler

// Config holds handler options.
type Config struct {
	// MaxPayloadSize rejects larger payloads; zero disables the check.
	MaxPayloadSize int64
	EnableMetrics  bool
	EnableTracing  bool
}

// DefaultConfig returns the options used by the intake queues.
func DefaultConfig() *Config {
	return &Config{
		MaxPayloadSize: 64 * 1024,
		EnableMetrics:  true,
		EnableTracing:  true,
	}
}
