package orchestrator

import (
	"context"
	"log/slog"

	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/notify"
	"github.com/mcoot/rps-ledger/internal/services/round"
)

// reconcileSlot reads a slot from the ledger and applies it to the mirror
func (o *Orchestrator) reconcileSlot(ctx context.Context, slot model.Slot) (model.SlotSnapshot, error) {
	snap, err := o.contract.ReadSlot(ctx, slot)
	if err != nil {
		return snap, err
	}
	changes, err := o.model.Reconcile(slot, snap)
	if err != nil {
		return snap, err
	}
	o.notifyChanges(changes)
	return snap, nil
}

// reconcileAll re-reads both slots, reporting read failures to the sink
func (o *Orchestrator) reconcileAll(ctx context.Context) error {
	var firstErr error
	for _, slot := range model.Slots {
		if _, err := o.reconcileSlot(ctx, slot); err != nil {
			reported := o.fail(model.OpReconcile, slot, err)
			if firstErr == nil {
				firstErr = reported
			}
		}
	}
	return firstErr
}

// Refresh rebuilds the whole mirror from the ledger, recovering a round that
// was already in progress
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if err := o.reconcileAll(ctx); err != nil {
		return err
	}
	last, err := o.contract.GetLastActionTimestamp(ctx)
	if err != nil {
		return o.fail(model.OpReconcile, model.SlotNone, err)
	}
	o.model.ObserveLastAction(last)
	o.publishGates()
	return nil
}

// Run subscribes to the contract's events and reconciles after each one
// until ctx is cancelled. It returns nil on cancellation and the
// subscription's error if the stream ends on its own.
func (o *Orchestrator) Run(ctx context.Context) error {
	sub, err := o.gateway.Subscribe(ctx, ledger.EventFilter{})
	if err != nil {
		return o.fail(model.OpReconcile, model.SlotNone, err)
	}
	defer func() { _ = sub.Close() }()

	// Failures are reported to the sink; the event stream still drives recovery
	_ = o.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				err := sub.Err()
				if err == nil {
					err = model.ErrUnreachable
				}
				return o.fail(model.OpReconcile, model.SlotNone, err)
			}
			o.HandleEvent(ctx, event)
		}
	}
}

// HandleEvent reconciles the slots an event touched. The event only says
// where to look; the ledger is re-read for the facts.
func (o *Orchestrator) HandleEvent(ctx context.Context, event model.LedgerEvent) {
	o.logger.Debug("ledger event",
		slog.String("type", string(event.Type)),
		slog.String("slot", event.Slot.String()),
		slog.Uint64("round", event.Round),
		slog.Uint64("version", event.Version))

	if !event.Timestamp.IsZero() {
		o.model.ObserveLastAction(event.Timestamp)
	}

	slots := model.Slots
	if event.Type.RoundLevel() {
		if event.Type == model.EventRoundSettled && event.Outcome.Decided() {
			o.determineOutcome(event.Round, event.Outcome)
		}
		o.closeRound(event.Round)
	} else if event.Slot.Valid() {
		slots = []model.Slot{event.Slot}
	}

	for _, slot := range slots {
		if _, err := o.reconcileSlot(ctx, slot); err != nil {
			_ = o.fail(model.OpReconcile, slot, err)
		}
	}
}

// determineOutcome notifies a settlement once, whether it is first seen as
// this client's own confirmation or as a ledger event
func (o *Orchestrator) determineOutcome(nextRound uint64, outcome model.Outcome) {
	o.roundMu.Lock()
	if nextRound != 0 && nextRound <= o.outcomeRound {
		o.roundMu.Unlock()
		return
	}
	o.outcomeRound = nextRound
	o.model.SetOutcome(outcome)
	o.roundMu.Unlock()

	o.sink.OnOutcomeDetermined(outcome)
}

// closeRound resets the mirror for the round the ledger opened.
// Without a round number every slot is reset unconditionally.
func (o *Orchestrator) closeRound(nextRound uint64) {
	o.roundMu.Lock()
	var changes []round.PhaseChange
	if nextRound == 0 {
		changes = o.model.Reset()
	} else {
		changes = o.model.StartRound(nextRound)
	}
	o.roundMu.Unlock()

	o.notifyChanges(changes)
}

func (o *Orchestrator) notifyChanges(changes []round.PhaseChange) {
	for _, c := range changes {
		o.logger.Debug("phase changed",
			slog.String("slot", c.Slot.String()),
			slog.String("from", c.From.String()),
			slog.String("to", c.To.String()))
		o.sink.OnPhaseChanged(c.Slot, c.To)
	}
	if len(changes) > 0 {
		o.publishGates()
	}
}

// publishGates pushes the derived gates to an observing sink when they change
func (o *Orchestrator) publishGates() {
	observer, ok := o.sink.(notify.GatesObserver)
	if !ok {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	gates := o.model.Gates()
	if o.gatesKnown && o.gates.Equal(gates) {
		return
	}
	o.gates = gates
	o.gatesKnown = true
	observer.OnGatesChanged(gates)
}
