package cli

import (
	"github.com/spf13/cobra"

	"github.com/mcoot/rps-ledger/internal/model"
)

func newBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account]",
		Short: "Show payouts credited to an account (default: yours)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				account model.Address
				err     error
			)
			if len(args) == 1 {
				account, err = requireAddress("account", args[0], "argument")
			} else {
				account, err = cfg.AccountAddress()
			}
			if err != nil {
				return err
			}

			balance, err := client.Balance(cmd.Context(), account)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			out.Print(BalanceResult{Account: account.String(), Balance: balance})
			return nil
		},
	}
}
