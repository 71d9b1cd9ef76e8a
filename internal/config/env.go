// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Ledger configures the ledger node
type Ledger struct {
	Host        string `env:"LEDGER_HOST"`
	Port        int    `env:"LEDGER_PORT" envDefault:"8545"`
	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	// Stake is in gwei
	Stake           uint64        `env:"LEDGER_STAKE" envDefault:"5000000000"`
	TimeoutWindow   time.Duration `env:"LEDGER_TIMEOUT_WINDOW" envDefault:"600s"`
	DefaultContract string        `env:"LEDGER_DEFAULT_CONTRACT"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	// How often event hubs without subscribers are closed
	HubCleanupInterval time.Duration `env:"LEDGER_HUB_CLEANUP_INTERVAL" envDefault:"5m"`
}

// LoadLedger parses and validates the ledger node configuration
func LoadLedger() (Ledger, error) {
	var cfg Ledger
	if err := ParseEnv(&cfg); err != nil {
		return Ledger{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Ledger{}, err
	}
	return cfg, nil
}

// Validate checks field combinations the env tags cannot express
func (c Ledger) Validate() error {
	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL required when STORAGE_TYPE=%s", StorageRedis)
		}
	default:
		return fmt.Errorf("invalid STORAGE_TYPE %q: must be %q or %q", c.StorageType, StorageMemory, StorageRedis)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid LEDGER_PORT %d", c.Port)
	}
	if c.Stake == 0 {
		return fmt.Errorf("LEDGER_STAKE must be positive")
	}
	if c.TimeoutWindow < time.Second {
		return fmt.Errorf("LEDGER_TIMEOUT_WINDOW must be at least 1s, got %s", c.TimeoutWindow)
	}
	if c.HubCleanupInterval <= 0 {
		return fmt.Errorf("LEDGER_HUB_CLEANUP_INTERVAL must be positive, got %s", c.HubCleanupInterval)
	}
	if _, err := c.Contract(); err != nil {
		return fmt.Errorf("invalid LEDGER_DEFAULT_CONTRACT: %w", err)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Contract returns the contract to deploy at startup, or NoAddress
func (c Ledger) Contract() (model.Address, error) {
	return model.ParseAddress(c.DefaultContract)
}

// Level returns the configured log level
func (c Ledger) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// NewLogger builds the node's JSON logger at the configured level
func (c Ledger) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := c.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// Player holds the environment defaults of the player CLI
type Player struct {
	Ledger      string `env:"RPS_LEDGER" envDefault:"http://localhost:8545"`
	Contract    string `env:"RPS_CONTRACT"`
	Account     string `env:"RPS_ACCOUNT"`
	SecretsFile string `env:"RPS_SECRETS_FILE"`
	Output      string `env:"RPS_OUTPUT" envDefault:"text"`
}

// LoadPlayer parses the player CLI defaults
func LoadPlayer() (Player, error) {
	var cfg Player
	if err := ParseEnv(&cfg); err != nil {
		return Player{}, err
	}
	if cfg.SecretsFile == "" {
		cfg.SecretsFile = defaultSecretsFile()
	}
	return cfg, nil
}

func defaultSecretsFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".rps", "secrets.json")
	}
	return filepath.Join(home, ".rps", "secrets.json")
}
