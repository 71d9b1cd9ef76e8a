package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/rps-ledger/internal/dependencies/random"
	"github.com/mcoot/rps-ledger/internal/model"
)

// playerSession opens a session for a command that submits transactions.
// Notifications are printed from here on.
func playerSession(cmd *cobra.Command) (*session, error) {
	sess, err := newSession(cmd, sessionOptions{requireAccount: true, refresh: true})
	if err != nil {
		return nil, err
	}
	sess.sink.unmute()
	return sess, nil
}

func newRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <slot>",
		Short: "Register your account in slot 1 or 2, attaching the stake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := model.ParseSlot(args[0])
			if err != nil {
				return err
			}
			sess, err := playerSession(cmd)
			if err != nil {
				return err
			}

			if err := sess.orch.RegisterPlayer(cmd.Context(), slot); err != nil {
				return err
			}

			sess.out.PrintMessage(fmt.Sprintf("Registered %s as %s (stake %d gwei)", sess.account, slot, sess.orch.Config().Stake))
			return nil
		},
	}
}

func newLockCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "lock <slot> <rock|paper|scissors>",
		Short: "Commit to a hidden shape",
		Long: `Commit to a shape without revealing it. The shape and secret are saved to
the secrets file so that reveal can open the commitment later. A random secret
is generated unless --secret is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := model.ParseSlot(args[0])
			if err != nil {
				return err
			}
			shape, err := model.ParseShape(args[1])
			if err != nil {
				return err
			}
			if !shape.Valid() {
				return model.ErrInvalidShape
			}
			if secret == "" {
				secret = random.New().String(secretLength, secretAlphabet)
			}

			store, err := LoadSecrets(cfg.SecretsFile)
			if err != nil {
				return err
			}
			sess, err := playerSession(cmd)
			if err != nil {
				return err
			}

			// Saved first: a lock that lands without its secret can never be revealed
			move := StoredMove{Shape: shape, Secret: secret, Round: sess.orch.Model().Round()}
			if err := store.Put(sess.contract, slot, move); err != nil {
				return fmt.Errorf("save secret: %w", err)
			}

			if err := sess.orch.LockShape(cmd.Context(), slot, shape, secret); err != nil {
				if neverSubmitted(err) {
					_ = store.Delete(sess.contract, slot)
				}
				return err
			}

			sess.out.PrintMessage(fmt.Sprintf("Locked %s for %s; secret saved to %s", shape, slot, cfg.SecretsFile))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Secret salting the commitment (random if unset)")

	return cmd
}

func newRevealCmd() *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "reveal <slot> [rock|paper|scissors]",
		Short: "Open your commitment once both players have locked",
		Long: `Reveal the shape locked earlier. Without a shape and --secret, the move
saved by lock for this contract, slot and round is used.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := model.ParseSlot(args[0])
			if err != nil {
				return err
			}

			store, err := LoadSecrets(cfg.SecretsFile)
			if err != nil {
				return err
			}
			sess, err := playerSession(cmd)
			if err != nil {
				return err
			}

			move, found := store.Get(sess.contract, slot, sess.orch.Model().Round())
			if len(args) == 2 {
				if move.Shape, err = model.ParseShape(args[1]); err != nil {
					return err
				}
			}
			if secret != "" {
				move.Secret = secret
			}
			if !found && (len(args) < 2 || secret == "") {
				return fmt.Errorf("no saved move for %s in round %d: pass the shape and --secret", slot, sess.orch.Model().Round())
			}

			if err := sess.orch.RevealShape(cmd.Context(), slot, move.Shape, move.Secret); err != nil {
				return err
			}
			_ = store.Delete(sess.contract, slot)

			sess.out.PrintMessage(fmt.Sprintf("Revealed %s for %s", move.Shape, slot))
			return nil
		},
	}

	cmd.Flags().StringVar(&secret, "secret", "", "Secret used when locking")

	return cmd
}

func newSettleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settle",
		Short: "Settle a round where both players have revealed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := playerSession(cmd)
			if err != nil {
				return err
			}

			if err := sess.orch.Settle(cmd.Context()); err != nil {
				return err
			}

			sess.out.PrintMessage(fmt.Sprintf("Round settled; round %d is open", sess.orch.Model().Round()))
			return nil
		},
	}
}

func newTimeoutResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeout-reset",
		Short: "Reset a stalled round and refund every stake",
		Long: `Reset the round once no action has happened for the contract's timeout
window. Every registered player gets their stake back. Any player may call it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := playerSession(cmd)
			if err != nil {
				return err
			}

			if err := sess.orch.TimeoutReset(cmd.Context()); err != nil {
				return err
			}

			sess.out.PrintMessage(fmt.Sprintf("Round reset and stakes refunded; round %d is open", sess.orch.Model().Round()))
			return nil
		},
	}
}

// neverSubmitted reports whether an operation failed before reaching the ledger
// or was refused by it, so nothing was committed
func neverSubmitted(err error) bool {
	return errors.Is(err, model.ErrIllegalTransition) ||
		errors.Is(err, model.ErrInvalidArgument) ||
		errors.Is(err, model.ErrTransactionRejected)
}
