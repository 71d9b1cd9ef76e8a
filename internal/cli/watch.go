package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/rps-ledger/internal/services/timeout"
)

func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the contract and print every change",
		Long: `Subscribe to the contract's events, keep the round reconciled and print
phase changes, outcomes, timeout eligibility and failures as they happen.

Press Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			sess, err := newSession(cmd, sessionOptions{watch: true})
			if err != nil {
				return err
			}

			if !sess.out.JSON() {
				sess.out.PrintMessage(fmt.Sprintf("Watching %s (Ctrl+C to stop)", sess.contract))
			}

			monitor := sess.monitor(timeout.Config{Interval: interval})
			go monitor.Run(ctx)

			if err := sess.orch.Run(ctx); err != nil {
				return err
			}

			if !sess.out.JSON() {
				sess.out.PrintMessage("Stopped")
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "poll", time.Second, "Timeout eligibility poll interval")

	return cmd
}
