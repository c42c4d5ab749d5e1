package handoff

import "time"

// Config holds configuration for the coordinator runtime.
type Config struct {
	// AgentTTL is how long an agent may go without a heartbeat before the
	// liveness sweep treats it as disconnected.
	AgentTTL time.Duration

	// SweepInterval is how often the agent liveness sweep runs.
	SweepInterval time.Duration

	// EventBufferSize is the per-subscriber buffer of the stream broker.
	EventBufferSize int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		AgentTTL:        30 * time.Second,
		SweepInterval:   10 * time.Second,
		EventBufferSize: 256,
		ShutdownTimeout: 30 * time.Second,
	}
}
