package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcoot/rps-ledger/internal/api"
	"github.com/mcoot/rps-ledger/internal/config"
	"github.com/mcoot/rps-ledger/internal/factory"
	"github.com/mcoot/rps-ledger/internal/services/chain"
	redisstorage "github.com/mcoot/rps-ledger/internal/storage/redis"
)

func main() {
	cfg, err := config.LoadLedger()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up logging with JSON output
	logger, err := cfg.NewLogger(os.Stdout)
	if err != nil {
		slog.Error("invalid log level", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.SetDefault(logger)

	factoryCfg := factory.Config{
		Logger:      logger,
		StorageType: cfg.StorageType,
		ChainConfig: chain.Config{
			Stake:         cfg.Stake,
			TimeoutWindow: cfg.TimeoutWindow,
		},
	}
	if cfg.StorageType == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		factoryCfg.RedisConfig = &redisCfg
	}

	app, err := factory.New(factoryCfg)
	if err != nil {
		logger.Error("failed to create application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	addr, err := cfg.Contract()
	if err != nil {
		logger.Error("invalid default contract", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if addr.IsSet() {
		contract, err := app.Chain.EnsureDeployed(context.Background(), addr)
		if err != nil {
			logger.Error("failed to deploy default contract", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("default contract ready",
			slog.String("contract", contract.Address.String()),
			slog.Uint64("round", contract.Round))
	}

	router := api.NewRouter(api.RouterConfig{
		Logger:     logger,
		Chain:      app.Chain,
		HubManager: app.HubManager,
	})

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Host
	serverConfig.Port = cfg.Port
	server := api.NewServer(router, serverConfig, logger)

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go app.HubManager.RunCleanup(ctx, cfg.HubCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	logger.Info("ledger node started",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.StorageType))

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		// Drop event streams first so Shutdown does not wait on them
		app.HubManager.Close()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Error("shutdown error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	logger.Info("ledger node stopped")
}
