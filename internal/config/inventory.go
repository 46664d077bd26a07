package config

import "time"

// Inventory tunes the checkout and deletion transactions.
type Inventory struct {
	// TxMaxRetries bounds the retries of a transaction aborted by a
	// serialization failure or a deadlock.
	TxMaxRetries     uint64        `env:"INVENTORY_TX_MAX_RETRIES" envDefault:"3"`
	TxRetryBaseDelay time.Duration `env:"INVENTORY_TX_RETRY_BASE_DELAY" envDefault:"20ms"`
	// TxTimeout caps a single attempt; zero disables the cap.
	TxTimeout time.Duration `env:"INVENTORY_TX_TIMEOUT" envDefault:"5s"`
}
