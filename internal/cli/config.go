package cli

import (
	"errors"
	"fmt"

	"github.com/mcoot/rps-ledger/internal/config"
	"github.com/mcoot/rps-ledger/internal/model"
)

// Config holds CLI configuration
type Config struct {
	LedgerURL   string
	Contract    string
	Account     string
	SecretsFile string
	Output      string
	Verbose     bool
}

// DefaultConfig returns a Config populated from RPS_* environment variables
func DefaultConfig() *Config {
	env, err := config.LoadPlayer()
	if err != nil {
		env = config.Player{Ledger: "http://localhost:8545", Output: "text"}
	}
	return &Config{
		LedgerURL:   env.Ledger,
		Contract:    env.Contract,
		Account:     env.Account,
		SecretsFile: env.SecretsFile,
		Output:      env.Output,
	}
}

// ContractAddress returns the configured contract, which is required
func (c *Config) ContractAddress() (model.Address, error) {
	return requireAddress("contract", c.Contract, "--contract or RPS_CONTRACT")
}

// AccountAddress returns the configured player account, which is required
func (c *Config) AccountAddress() (model.Address, error) {
	return requireAddress("account", c.Account, "--account or RPS_ACCOUNT")
}

func requireAddress(name, raw, hint string) (model.Address, error) {
	if raw == "" {
		return model.NoAddress, fmt.Errorf("%s address required (%s)", name, hint)
	}
	addr, err := model.ParseAddress(raw)
	if err != nil {
		return model.NoAddress, fmt.Errorf("invalid %s address %q: %w", name, raw, err)
	}
	if !addr.IsSet() {
		return model.NoAddress, errors.New(name + " address must not be zero")
	}
	return addr, nil
}
