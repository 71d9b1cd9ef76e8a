package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcoot/rps-ledger/internal/dependencies/clock"
	"github.com/mcoot/rps-ledger/internal/ledger/remote"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/notify"
	"github.com/mcoot/rps-ledger/internal/services/orchestrator"
	"github.com/mcoot/rps-ledger/internal/services/timeout"
)

// session is one player's orchestrator over the configured contract
type session struct {
	contract model.Address
	account  model.Address
	gateway  *remote.Gateway
	orch     *orchestrator.Orchestrator
	sink     *printSink
	out      *Output
	clock    clock.Clock
}

type sessionOptions struct {
	// requireAccount fails early when no account is configured
	requireAccount bool
	// refresh reconciles the mirror quietly before returning
	refresh bool
	// watch prints every notification including failures
	watch bool
}

func newSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	ctx := cmd.Context()

	contract, err := cfg.ContractAddress()
	if err != nil {
		return nil, err
	}
	account := model.NoAddress
	if opts.requireAccount || cfg.Account != "" {
		if account, err = cfg.AccountAddress(); err != nil {
			return nil, err
		}
	}

	out := NewOutput(cfg.Output, cmd.OutOrStdout())
	sink := newPrintSink(out, !opts.watch, opts.watch)
	var sinks notify.Sink = sink
	if cfg.Verbose {
		sinks = notify.Fanout{sink, notify.NewLogSink(logger)}
	}

	gw := client.Gateway(contract)
	clk := clock.New()
	orch := orchestrator.New(gw, sinks, clk, orchestrator.Config{Account: account}, logger)

	if err := orch.SyncParameters(ctx); err != nil {
		return nil, fmt.Errorf("load contract %s: %w", contract, err)
	}

	s := &session{
		contract: contract,
		account:  account,
		gateway:  gw,
		orch:     orch,
		sink:     sink,
		out:      out,
		clock:    clk,
	}
	if opts.refresh {
		if err := orch.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *session) monitor(cfg timeout.Config) *timeout.Monitor {
	if cfg.Window == 0 {
		cfg.Window = s.orch.Config().TimeoutWindow
	}
	return timeout.New(s.gateway, s.orch.Model(), s.sink, s.clock, cfg, logger)
}

// status builds the reconciled view of the contract
func (s *session) status(ctx context.Context) (Status, error) {
	snap := s.orch.Model().Snapshot()
	gates := s.orch.Gates()

	lastOutcome, err := s.orch.Contract().GetOutcome(ctx)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		Contract:    s.contract.String(),
		Round:       snap.Round,
		Stake:       s.orch.Config().Stake,
		LastOutcome: lastOutcome.String(),
		LastAction:  snap.LastActionAt,
		Timeout:     s.monitor(timeout.Config{}).Check(ctx),
	}
	for _, slot := range model.Slots {
		p := snap.Slot(slot)
		ss := SlotStatus{
			Slot:  slot.String(),
			Phase: p.Phase.String(),
			Mine:  s.account.IsSet() && p.Address == s.account,
		}
		if p.Address.IsSet() {
			ss.Address = p.Address.String()
		}
		if p.Revealed.Valid() {
			ss.Revealed = p.Revealed.String()
		}
		st.Slots = append(st.Slots, ss)

		if gates.Register[slot] {
			st.Actions = append(st.Actions, "register "+slotArg(slot))
		}
		if gates.Lock[slot] {
			st.Actions = append(st.Actions, "lock "+slotArg(slot))
		}
		if gates.Reveal[slot] {
			st.Actions = append(st.Actions, "reveal "+slotArg(slot))
		}
	}
	if gates.Settle {
		st.Actions = append(st.Actions, "settle")
	}
	if st.Timeout.Eligible() {
		st.Actions = append(st.Actions, "timeout-reset")
	}
	return st, nil
}

func slotArg(slot model.Slot) string {
	return fmt.Sprintf("%d", int(slot))
}
