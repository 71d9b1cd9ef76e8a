package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/rps-ledger/internal/ledger/remote"
)

var (
	cfg    *Config
	client *remote.Client
	logger *slog.Logger
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "rps",
		Short: "Play commit-reveal Rock-Paper-Scissors on a ledger",
		Long: `rps plays Rock-Paper-Scissors against another account through a ledger contract.

Each round: both players register with the contract's stake, lock a hidden
shape, reveal it once both are locked, and anyone settles. A stalled round can
be reset once the contract's timeout window has elapsed.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			client = remote.NewClient(cfg.LedgerURL)
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.LedgerURL, "ledger", cfg.LedgerURL, "Ledger node URL (env: RPS_LEDGER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Contract, "contract", cfg.Contract, "Contract address (env: RPS_CONTRACT)")
	rootCmd.PersistentFlags().StringVar(&cfg.Account, "account", cfg.Account, "Player account address (env: RPS_ACCOUNT)")
	rootCmd.PersistentFlags().StringVar(&cfg.SecretsFile, "secrets-file", cfg.SecretsFile, "File remembering locked moves (env: RPS_SECRETS_FILE)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json (env: RPS_OUTPUT)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newContractsCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newRegisterCmd())
	rootCmd.AddCommand(newLockCmd())
	rootCmd.AddCommand(newRevealCmd())
	rootCmd.AddCommand(newSettleCmd())
	rootCmd.AddCommand(newTimeoutResetCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newBalanceCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
