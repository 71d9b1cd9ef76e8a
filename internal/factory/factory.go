package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/mcoot/rps-ledger/internal/api/sse"
	"github.com/mcoot/rps-ledger/internal/dependencies/clock"
	"github.com/mcoot/rps-ledger/internal/dependencies/random"
	"github.com/mcoot/rps-ledger/internal/ledger/local"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/chain"
	"github.com/mcoot/rps-ledger/internal/storage"
	"github.com/mcoot/rps-ledger/internal/storage/memory"
	redisstorage "github.com/mcoot/rps-ledger/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired ledger node components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Chain      *chain.Service
	HubManager *sse.HubManager

	Logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// ChainConfig holds contract deployment defaults (optional)
	// If zero value, defaults to chain.DefaultConfig()
	ChainConfig chain.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	chainCfg := cfg.ChainConfig
	defaults := chain.DefaultConfig()
	if chainCfg.Stake == 0 {
		chainCfg.Stake = defaults.Stake
	}
	if chainCfg.TimeoutWindow == 0 {
		chainCfg.TimeoutWindow = defaults.TimeoutWindow
	}

	return newWithDependencies(store, clock.New(), random.New(), chainCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, chainCfg chain.Config, logger *slog.Logger) *App {
	hubManager := sse.NewHubManager(logger)
	chainService := chain.New(store, clk, rnd, hubManager, chainCfg, logger)

	return &App{
		Storage:    store,
		Clock:      clk,
		Random:     rnd,
		Chain:      chainService,
		HubManager: hubManager,
		Logger:     logger,
	}
}

// Gateway returns an in-process gateway bound to one contract
func (a *App) Gateway(contract model.Address) *local.Gateway {
	return local.New(a.Chain, a.HubManager, contract)
}

// Close stops every event hub and releases the storage backend
func (a *App) Close() error {
	a.HubManager.Close()
	if closer, ok := a.Storage.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
