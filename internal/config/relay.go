package config

import "time"

// Relay configures the outbox relay publishing inventory events.
type Relay struct {
	// Enabled lets a standalone process serve the API while a dedicated
	// relay process publishes the outbox.
	Enabled   bool          `env:"RELAY_ENABLED" envDefault:"true"`
	BatchSize uint32        `env:"RELAY_BATCH_SIZE" envDefault:"100"`
	Interval  time.Duration `env:"RELAY_INTERVAL" envDefault:"1s"`
	// MaxAttempts is how many failed produces a message gets before it is
	// parked as processed with its last error.
	MaxAttempts uint32 `env:"RELAY_MAX_ATTEMPTS" envDefault:"10"`
}
