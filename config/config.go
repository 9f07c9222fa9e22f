// Package config loads runtime settings for the batch EVM tooling.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Default values
const (
	DefaultRPC            = "http://127.0.0.1:8545"
	DefaultChainID        = 0
	DefaultReceiptTimeout = 2 * time.Minute
	DefaultPollInterval   = 500 * time.Millisecond
	DefaultGasBufferPct   = 20
	DefaultChunkSize      = 100
)

// EnvPrefix prefixes every environment variable, e.g. BATCHEVM_RPC_URL.
const EnvPrefix = "BATCHEVM"

// Config holds the configuration for batch operations.
type Config struct {
	// RPC is the JSON-RPC endpoint of the node.
	RPC string `envconfig:"RPC_URL"`
	// ChainID overrides the chain ID reported by the node when non-zero.
	ChainID int64 `envconfig:"CHAIN_ID"`
	// ReceiptTimeout bounds the wait for each transaction receipt.
	ReceiptTimeout time.Duration `envconfig:"RECEIPT_TIMEOUT"`
	// PollInterval is the delay between receipt lookups.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL"`
	// GasBufferPct is added on top of estimated gas for deploy and call. Nil
	// takes DefaultGasBufferPct; an explicit 0 disables the buffer.
	GasBufferPct *uint64 `envconfig:"GAS_BUFFER_PCT"`
	// ChunkSize is the number of keys generated between yields.
	ChunkSize int `envconfig:"CHUNK_SIZE"`
	// TokenAddress is the default ERC-20 token embedded in assembled bytecode.
	TokenAddress string `envconfig:"TOKEN_ADDRESS"`
	// LogDev enables the development console logger.
	LogDev bool `envconfig:"LOG_DEV"`
	// LogFile tees logs into a file when set.
	LogFile string `envconfig:"LOG_FILE"`
}

// New creates a new Config instance with the provided values.
// If a value is empty/zero, it will use the default value.
// Pass an empty Config{} to use all defaults.
func New(cfg Config) *Config {
	result := cfg

	if result.RPC == "" {
		result.RPC = DefaultRPC
	}
	if result.ReceiptTimeout == 0 {
		result.ReceiptTimeout = DefaultReceiptTimeout
	}
	if result.PollInterval == 0 {
		result.PollInterval = DefaultPollInterval
	}
	if result.GasBufferPct == nil {
		pct := uint64(DefaultGasBufferPct)
		result.GasBufferPct = &pct
	}
	if result.ChunkSize == 0 {
		result.ChunkSize = DefaultChunkSize
	}

	return &result
}

// GasBuffer returns the configured gas buffer percentage.
func (c *Config) GasBuffer() uint64 {
	if c.GasBufferPct == nil {
		return DefaultGasBufferPct
	}
	return *c.GasBufferPct
}

// Load reads BATCHEVM_* environment variables and fills the remaining fields
// with defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	result := New(cfg)
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.ChainID < 0 {
		return errors.New("chain ID must not be negative")
	}
	if c.ChunkSize < 0 {
		return errors.New("chunk size must not be negative")
	}
	if c.PollInterval < 0 || c.ReceiptTimeout < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}
