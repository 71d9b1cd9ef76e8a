package config

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rps-ledger/internal/model"
)

func TestLoadLedgerDefaults(t *testing.T) {
	cfg, err := LoadLedger()
	require.NoError(t, err)

	assert.Equal(t, 8545, cfg.Port)
	assert.Equal(t, StorageMemory, cfg.StorageType)
	assert.Equal(t, uint64(5_000_000_000), cfg.Stake)
	assert.Equal(t, 600*time.Second, cfg.TimeoutWindow)
	assert.Equal(t, 5*time.Minute, cfg.HubCleanupInterval)

	addr, err := cfg.Contract()
	require.NoError(t, err)
	assert.False(t, addr.IsSet())

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadLedgerFromEnv(t *testing.T) {
	t.Setenv("LEDGER_PORT", "9000")
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379")
	t.Setenv("LEDGER_STAKE", "7")
	t.Setenv("LEDGER_TIMEOUT_WINDOW", "30s")
	t.Setenv("LEDGER_DEFAULT_CONTRACT", "0x00000000000000000000000000000000000000c1")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadLedger()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "redis://cache:6379", cfg.RedisURL)
	assert.Equal(t, uint64(7), cfg.Stake)
	assert.Equal(t, 30*time.Second, cfg.TimeoutWindow)

	addr, err := cfg.Contract()
	require.NoError(t, err)
	assert.Equal(t, model.MustParseAddress("0x00000000000000000000000000000000000000c1"), addr)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoadLedgerRejects(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		msg  string
	}{
		{"unparseable port", "LEDGER_PORT", "eighty", "parse env:"},
		{"port out of range", "LEDGER_PORT", "70000", "LEDGER_PORT"},
		{"unknown storage", "STORAGE_TYPE", "disk", "STORAGE_TYPE"},
		{"redis without url", "STORAGE_TYPE", "redis", "REDIS_URL"},
		{"zero stake", "LEDGER_STAKE", "0", "LEDGER_STAKE"},
		{"short window", "LEDGER_TIMEOUT_WINDOW", "10ms", "LEDGER_TIMEOUT_WINDOW"},
		{"bad contract", "LEDGER_DEFAULT_CONTRACT", "0x12", "LEDGER_DEFAULT_CONTRACT"},
		{"bad level", "LOG_LEVEL", "loud", "LOG_LEVEL"},
		{"zero cleanup interval", "LEDGER_HUB_CLEANUP_INTERVAL", "0s", "LEDGER_HUB_CLEANUP_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := LoadLedger()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestLedgerNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Ledger{LogLevel: "warn"}.NewLogger(&buf)
	require.NoError(t, err)

	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	logger.Warn("disk low", slog.String("component", "node"))
	assert.Contains(t, buf.String(), `"msg":"disk low"`)
	assert.Contains(t, buf.String(), `"component":"node"`)
}

func TestLedgerNewLoggerRejectsBadLevel(t *testing.T) {
	logger, err := Ledger{LogLevel: "loud"}.NewLogger(&bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Nil(t, logger)
}

func TestLoadPlayer(t *testing.T) {
	t.Setenv("RPS_LEDGER", "http://node:1")
	t.Setenv("RPS_ACCOUNT", "0x00000000000000000000000000000000000000a1")
	t.Setenv("RPS_SECRETS_FILE", "/tmp/s.json")

	cfg, err := LoadPlayer()
	require.NoError(t, err)
	assert.Equal(t, "http://node:1", cfg.Ledger)
	assert.Equal(t, "0x00000000000000000000000000000000000000a1", cfg.Account)
	assert.Equal(t, "/tmp/s.json", cfg.SecretsFile)
	assert.Equal(t, "text", cfg.Output)
}

func TestLoadPlayerDefaultSecretsFile(t *testing.T) {
	t.Setenv("RPS_SECRETS_FILE", "")

	cfg, err := LoadPlayer()
	require.NoError(t, err)
	assert.Contains(t, cfg.SecretsFile, "secrets.json")
}
