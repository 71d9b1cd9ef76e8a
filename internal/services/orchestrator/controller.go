// Package orchestrator drives the commit-reveal protocol for one player
// against a ledger contract. Every operation validates against the mirrored
// round, submits through the gateway, re-reads the authoritative fact it
// expects to have changed and only then advances the mirror.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rps-ledger/internal/dependencies/clock"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/notify"
	"github.com/mcoot/rps-ledger/internal/services/round"
)

// Config holds the player's identity and the contract's economic parameters
type Config struct {
	// Account submits every transaction
	Account model.Address
	// Stake is attached to registration and must match the contract's stake
	Stake uint64
	// TimeoutWindow is how long a round must stall before timeoutReset is legal
	TimeoutWindow time.Duration
}

// DefaultConfig returns the reference deployment parameters
func DefaultConfig() Config {
	return Config{
		Stake:         5_000_000_000,
		TimeoutWindow: 600 * time.Second,
	}
}

// Orchestrator is the only component that submits transactions
type Orchestrator struct {
	gateway  ledger.Gateway
	contract *ledger.Contract
	model    *round.Model
	sink     notify.Sink
	clock    clock.Clock
	logger   *slog.Logger

	mu  sync.Mutex
	cfg Config
	// gates is the last gate set pushed to a GatesObserver sink
	gates      model.Gates
	gatesKnown bool

	// roundMu orders outcome recording against round resets
	roundMu sync.Mutex
	// outcomeRound is the round opened by the last settlement already notified
	outcomeRound uint64
}

// New creates an Orchestrator with an empty round mirror
func New(
	gateway ledger.Gateway,
	sink notify.Sink,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if sink == nil {
		sink = notify.Nop{}
	}
	return &Orchestrator{
		gateway:  gateway,
		contract: ledger.NewContract(gateway),
		model:    round.New(),
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "orchestrator")),
	}
}

// Model returns the round mirror
func (o *Orchestrator) Model() *round.Model {
	return o.model
}

// Contract returns the typed contract client the orchestrator reads through
func (o *Orchestrator) Contract() *ledger.Contract {
	return o.contract
}

// Config returns the current configuration
func (o *Orchestrator) Config() Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg
}

// Gates returns the currently legal actions
func (o *Orchestrator) Gates() model.Gates {
	return o.model.Gates()
}

// SyncParameters replaces the configured stake and timeout window with the
// contract's own values
func (o *Orchestrator) SyncParameters(ctx context.Context) error {
	stake, err := o.contract.GetStake(ctx)
	if err != nil {
		return err
	}
	window, err := o.contract.GetTimeoutWindow(ctx)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.cfg.Stake = stake
	o.cfg.TimeoutWindow = window
	o.mu.Unlock()

	o.logger.Debug("contract parameters loaded",
		slog.Uint64("stake", stake),
		slog.Duration("timeout_window", window))
	return nil
}

// RegisterPlayer binds the account to slot, attaching the stake
func (o *Orchestrator) RegisterPlayer(ctx context.Context, slot model.Slot) error {
	const op = model.OpRegister
	if !slot.Valid() {
		return o.fail(op, slot, model.ErrInvalidSlot)
	}
	if err := o.requirePhase(slot, model.PhaseUnregistered); err != nil {
		return o.fail(op, slot, err)
	}

	cfg := o.Config()
	caller := ledger.CallerContext{From: cfg.Account, Value: cfg.Stake}
	if _, err := o.gateway.Submit(ctx, ledger.MethodRegisterPlayer, ledger.Args{Slot: slot}, caller); err != nil {
		return o.fail(op, slot, err)
	}

	snap, err := o.reconcileSlot(ctx, slot)
	if err != nil {
		return o.fail(op, slot, err)
	}
	if !snap.Address.IsSet() || (cfg.Account.IsSet() && snap.Address != cfg.Account) {
		return o.fail(op, slot, fmt.Errorf("%w: %s is bound to %s after confirmation",
			model.ErrVerificationMismatch, slot, snap.Address))
	}

	o.logger.Info("player registered",
		slog.String("slot", slot.String()),
		slog.String("account", cfg.Account.String()))
	return nil
}

// LockShape commits to shape under secret. The ledger binds the commitment;
// the caller must present the same pair to RevealShape.
func (o *Orchestrator) LockShape(ctx context.Context, slot model.Slot, shape model.Shape, secret string) error {
	const op = model.OpLock
	if err := validateMove(slot, shape, secret); err != nil {
		return o.fail(op, slot, err)
	}
	if err := o.requirePhase(slot, model.PhaseRegistered); err != nil {
		return o.fail(op, slot, err)
	}

	args := ledger.Args{Slot: slot, Shape: shape, Secret: secret}
	if _, err := o.gateway.Submit(ctx, ledger.MethodLockShape, args, o.caller()); err != nil {
		return o.fail(op, slot, err)
	}

	snap, err := o.reconcileSlot(ctx, slot)
	if err != nil {
		return o.fail(op, slot, err)
	}
	if !snap.Locked {
		return o.fail(op, slot, fmt.Errorf("%w: %s has no commitment after confirmation",
			model.ErrVerificationMismatch, slot))
	}

	o.logger.Info("shape locked", slog.String("slot", slot.String()))
	return nil
}

// RevealShape opens the slot's commitment. A confirmed transaction whose
// re-read shows no revealed shape fails with ErrVerificationMismatch.
func (o *Orchestrator) RevealShape(ctx context.Context, slot model.Slot, shape model.Shape, secret string) error {
	const op = model.OpReveal
	if err := validateMove(slot, shape, secret); err != nil {
		return o.fail(op, slot, err)
	}
	if err := o.requirePhase(slot, model.PhaseLocked); err != nil {
		return o.fail(op, slot, err)
	}
	if !o.model.BothInPhase(model.PhaseLocked) {
		return o.fail(op, slot, fmt.Errorf("%w: %s has not locked", model.ErrIllegalTransition, slot.Other()))
	}

	args := ledger.Args{Slot: slot, Shape: shape, Secret: secret}
	if _, err := o.gateway.Submit(ctx, ledger.MethodRevealShape, args, o.caller()); err != nil {
		return o.fail(op, slot, err)
	}

	snap, err := o.reconcileSlot(ctx, slot)
	if err != nil {
		return o.fail(op, slot, err)
	}
	if !snap.Revealed.Valid() {
		return o.fail(op, slot, fmt.Errorf("%w: reveal of %s was not accepted, shape or secret differs from the lock",
			model.ErrVerificationMismatch, slot))
	}

	o.logger.Info("shape revealed",
		slog.String("slot", slot.String()),
		slog.String("shape", snap.Revealed.String()))
	return nil
}

// Settle asks the ledger to decide the round once both shapes are revealed,
// notifies the outcome and starts the next round
func (o *Orchestrator) Settle(ctx context.Context) error {
	const op = model.OpSettle
	if !o.model.BothInPhase(model.PhaseRevealed) {
		return o.fail(op, model.SlotNone, fmt.Errorf("%w: both slots must reveal before settlement", model.ErrIllegalTransition))
	}

	conf, err := o.gateway.Submit(ctx, ledger.MethodSettle, ledger.Args{}, o.caller())
	if err != nil {
		return o.fail(op, model.SlotNone, err)
	}

	outcome, err := o.contract.GetOutcome(ctx)
	if err != nil {
		return o.fail(op, model.SlotNone, err)
	}
	if !outcome.Decided() {
		return o.fail(op, model.SlotNone, fmt.Errorf("%w: outcome is %s after confirmation",
			model.ErrVerificationMismatch, outcome))
	}

	o.determineOutcome(conf.Round, outcome)
	o.closeRound(conf.Round)
	o.reconcileAll(ctx)

	o.logger.Info("round settled",
		slog.String("outcome", outcome.String()),
		slog.Uint64("next_round", conf.Round))
	return nil
}

// TimeoutReset abandons a stalled round. It is legal in any phase once the
// timeout window has fully elapsed since the ledger's last action.
func (o *Orchestrator) TimeoutReset(ctx context.Context) error {
	const op = model.OpTimeoutReset

	last, err := o.contract.GetLastActionTimestamp(ctx)
	if err != nil {
		return o.fail(op, model.SlotNone, err)
	}
	o.model.ObserveLastAction(last)

	eligibility := model.TimeoutEligibilityAt(last, o.Config().TimeoutWindow, o.clock.Now())
	if !eligibility.Eligible() {
		return o.fail(op, model.SlotNone, fmt.Errorf("%w: timeout window has %s remaining",
			model.ErrIllegalTransition, eligibility.Remaining))
	}

	conf, err := o.gateway.Submit(ctx, ledger.MethodTimeoutReset, ledger.Args{}, o.caller())
	if err != nil {
		return o.fail(op, model.SlotNone, err)
	}

	o.closeRound(conf.Round)
	o.reconcileAll(ctx)

	o.logger.Info("round reset after timeout", slog.Uint64("next_round", conf.Round))
	return nil
}

func (o *Orchestrator) caller() ledger.CallerContext {
	return ledger.CallerContext{From: o.Config().Account}
}

func (o *Orchestrator) requirePhase(slot model.Slot, want model.Phase) error {
	if phase := o.model.Phase(slot); phase != want {
		return fmt.Errorf("%w: %s is %s, want %s", model.ErrIllegalTransition, slot, phase, want)
	}
	return nil
}

func validateMove(slot model.Slot, shape model.Shape, secret string) error {
	if !slot.Valid() {
		return model.ErrInvalidSlot
	}
	if !shape.Valid() {
		return model.ErrInvalidShape
	}
	if secret == "" {
		return model.ErrEmptySecret
	}
	return nil
}

// fail reports an operation failure to the sink and returns it
func (o *Orchestrator) fail(op model.Operation, slot model.Slot, err error) error {
	opErr := model.NewOperationError(op, slot, err)
	o.logger.Warn("operation failed",
		slog.String("operation", string(op)),
		slog.String("slot", slot.String()),
		slog.String("error", err.Error()))
	o.sink.OnOperationFailed(op, slot, opErr)
	return opErr
}
