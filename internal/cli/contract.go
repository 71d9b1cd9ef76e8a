package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/rps-ledger/internal/api/request"
)

func newDeployCmd() *cobra.Command {
	var (
		address string
		stake   uint64
		window  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a new contract on the ledger node",
		Long: `Deploy a Rock-Paper-Scissors contract. Unset flags take the node's defaults.

Pass the printed address to later commands with --contract or RPS_CONTRACT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			contract, err := client.Deploy(cmd.Context(), request.DeployRequest{
				Address:              address,
				Stake:                stake,
				TimeoutWindowSeconds: int64(window / time.Second),
			})
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(contract)
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Contract address (random if unset)")
	cmd.Flags().Uint64Var(&stake, "stake", 0, "Stake each player attaches, in gwei")
	cmd.Flags().DurationVar(&window, "timeout-window", 0, "How long a round may stall before it can be reset")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the contract's current round",
		Long: `Rebuild the round from the ledger and show each slot's phase, the last
outcome, timeout eligibility and which actions are currently available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(cmd, sessionOptions{refresh: true})
			if err != nil {
				return err
			}

			st, err := sess.status(cmd.Context())
			if err != nil {
				return err
			}
			sess.out.Print(st)
			return nil
		},
	}
}

func newContractsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contracts [address]",
		Short: "List contracts deployed on the ledger node, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())

			if len(args) == 1 {
				addr, err := requireAddress("contract", args[0], "argument")
				if err != nil {
					return err
				}
				contract, err := client.Contract(cmd.Context(), addr)
				if err != nil {
					return err
				}
				out.Print(contract)
				return nil
			}

			contracts, err := client.Contracts(cmd.Context())
			if err != nil {
				return err
			}
			out.Print(contracts)
			return nil
		},
	}
}
