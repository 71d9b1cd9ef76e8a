package chain

import (
	"fmt"
	"time"

	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/storage"
)

// transaction applies one call to a loaded contract.
// A returned error leaves the contract untouched; a nil event means the
// call confirmed without changing state.
type transaction struct {
	method   ledger.Method
	args     ledger.Args
	caller   ledger.CallerContext
	now      time.Time
	contract *model.ContractState

	event   *model.LedgerEvent
	payouts []storage.Payout
}

// touch records a state change
func (tx *transaction) touch(eventType model.EventType, slot model.Slot) {
	tx.contract.Version++
	tx.contract.LastActionAt = tx.now
	tx.event = &model.LedgerEvent{Type: eventType, Slot: slot}
}

// player validates the slot argument and that the caller owns it
func (tx *transaction) player() (*model.ContractPlayer, error) {
	p := tx.contract.Player(tx.args.Slot)
	if p == nil {
		return nil, model.ErrInvalidSlot
	}
	if !p.Address.IsSet() {
		return nil, revert(tx.method, "slot is not registered")
	}
	if p.Address != tx.caller.From {
		return nil, revert(tx.method, "caller is not the registered player")
	}
	return p, nil
}

func (tx *transaction) validateShapeAndSecret() error {
	if !tx.args.Shape.Valid() {
		return model.ErrInvalidShape
	}
	if tx.args.Secret == "" {
		return model.ErrEmptySecret
	}
	return nil
}

func (tx *transaction) registerPlayer() error {
	p := tx.contract.Player(tx.args.Slot)
	if p == nil {
		return model.ErrInvalidSlot
	}
	if !tx.caller.From.IsSet() {
		return fmt.Errorf("%w: caller address required", model.ErrInvalidAddress)
	}
	if p.Address.IsSet() {
		return revert(tx.method, "slot already registered")
	}
	if tx.caller.Value != tx.contract.Stake {
		return revert(tx.method, fmt.Sprintf("stake must be exactly %d", tx.contract.Stake))
	}

	p.Address = tx.caller.From
	tx.touch(model.EventPlayerRegistered, tx.args.Slot)
	return nil
}

func (tx *transaction) lockShape() error {
	if err := tx.validateShapeAndSecret(); err != nil {
		return err
	}
	p, err := tx.player()
	if err != nil {
		return err
	}
	if p.Commitment != "" {
		return revert(tx.method, "shape already locked")
	}

	p.Commitment = Commit(tx.args.Shape, tx.args.Secret)
	tx.touch(model.EventShapeLocked, tx.args.Slot)
	return nil
}

// revealShape verifies the opening against the commitment. A mismatch does
// not revert: the transaction confirms and the revealed shape stays empty.
func (tx *transaction) revealShape() error {
	if err := tx.validateShapeAndSecret(); err != nil {
		return err
	}
	p, err := tx.player()
	if err != nil {
		return err
	}
	if p.Commitment == "" {
		return revert(tx.method, "shape not locked")
	}
	if p.Revealed.Valid() {
		return revert(tx.method, "shape already revealed")
	}
	if other := tx.contract.Player(tx.args.Slot.Other()); other.Commitment == "" {
		return revert(tx.method, "counterpart has not locked")
	}

	if !VerifyCommitment(p.Commitment, tx.args.Shape, tx.args.Secret) {
		return nil
	}

	p.Revealed = tx.args.Shape
	tx.touch(model.EventShapeRevealed, tx.args.Slot)
	return nil
}

func (tx *transaction) settle() error {
	p1 := tx.contract.Player(model.Slot1)
	p2 := tx.contract.Player(model.Slot2)
	if !p1.Revealed.Valid() || !p2.Revealed.Valid() {
		return revert(tx.method, "both players must reveal first")
	}

	outcome := model.OutcomeFor(p1.Revealed, p2.Revealed)
	pot := tx.contract.Pot()
	switch outcome {
	case model.OutcomePlayer1Wins:
		tx.payouts = append(tx.payouts, storage.Payout{Account: p1.Address, Amount: pot})
	case model.OutcomePlayer2Wins:
		tx.payouts = append(tx.payouts, storage.Payout{Account: p2.Address, Amount: pot})
	default:
		tx.payouts = append(tx.payouts,
			storage.Payout{Account: p1.Address, Amount: tx.contract.Stake},
			storage.Payout{Account: p2.Address, Amount: tx.contract.Stake},
		)
	}

	tx.contract.LastOutcome = outcome
	tx.contract.ClearPlayers()
	tx.contract.Round++
	tx.touch(model.EventRoundSettled, model.SlotNone)
	tx.event.Outcome = outcome
	return nil
}

// timeoutReset refunds every registered stake once the round has stalled
// for at least the timeout window
func (tx *transaction) timeoutReset() error {
	if tx.now.Sub(tx.contract.LastActionAt) < tx.contract.TimeoutWindow {
		return revert(tx.method, "timeout window has not elapsed")
	}

	for _, p := range tx.contract.Players {
		if p.Address.IsSet() {
			tx.payouts = append(tx.payouts, storage.Payout{Account: p.Address, Amount: tx.contract.Stake})
		}
	}

	tx.contract.LastOutcome = model.OutcomePending
	tx.contract.ClearPlayers()
	tx.contract.Round++
	tx.touch(model.EventRoundReset, model.SlotNone)
	return nil
}
