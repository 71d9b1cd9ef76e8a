package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcoot/rps-ledger/internal/model"
)

// maxSnapshotAttempts bounds how often ReadSlot retries when the contract
// changes between its first and last read
const maxSnapshotAttempts = 3

// Contract is a typed client over a Gateway
type Contract struct {
	gateway Gateway
}

// NewContract wraps a gateway with typed accessors
func NewContract(gateway Gateway) *Contract {
	return &Contract{gateway: gateway}
}

func query[T any](ctx context.Context, gw Gateway, method Method, args Args) (T, error) {
	var out T
	raw, err := gw.Query(ctx, method, args)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: decode %s result: %v", model.ErrUnreachable, method, err)
	}
	return out, nil
}

// GetAddress returns the address bound to a slot, or NoAddress
func (c *Contract) GetAddress(ctx context.Context, slot model.Slot) (model.Address, error) {
	return query[model.Address](ctx, c.gateway, MethodGetAddress, Args{Slot: slot})
}

// HasLocked reports whether the slot has committed a shape
func (c *Contract) HasLocked(ctx context.Context, slot model.Slot) (bool, error) {
	return query[bool](ctx, c.gateway, MethodHasLocked, Args{Slot: slot})
}

// GetRevealedShape returns the verified revealed shape, or ShapeNone
func (c *Contract) GetRevealedShape(ctx context.Context, slot model.Slot) (model.Shape, error) {
	return query[model.Shape](ctx, c.gateway, MethodGetRevealedShape, Args{Slot: slot})
}

// GetOutcome returns the outcome of the most recently settled round
func (c *Contract) GetOutcome(ctx context.Context) (model.Outcome, error) {
	return query[model.Outcome](ctx, c.gateway, MethodGetOutcome, Args{})
}

// GetLastActionTimestamp returns the ledger time of the last state change
func (c *Contract) GetLastActionTimestamp(ctx context.Context) (time.Time, error) {
	secs, err := query[int64](ctx, c.gateway, MethodGetLastActionTimestamp, Args{})
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}

// GetRound returns the current round number
func (c *Contract) GetRound(ctx context.Context) (uint64, error) {
	return query[uint64](ctx, c.gateway, MethodGetRound, Args{})
}

// GetVersion returns the contract's state version
func (c *Contract) GetVersion(ctx context.Context) (uint64, error) {
	return query[uint64](ctx, c.gateway, MethodGetVersion, Args{})
}

// GetStake returns the value each player must attach to registration
func (c *Contract) GetStake(ctx context.Context) (uint64, error) {
	return query[uint64](ctx, c.gateway, MethodGetStake, Args{})
}

// GetTimeoutWindow returns how long a round may stall before it can be reset
func (c *Contract) GetTimeoutWindow(ctx context.Context) (time.Duration, error) {
	secs, err := query[int64](ctx, c.gateway, MethodGetTimeoutWindow, Args{})
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// GetBalance returns the payouts credited to an account
func (c *Contract) GetBalance(ctx context.Context, account model.Address) (uint64, error) {
	return query[uint64](ctx, c.gateway, MethodGetBalance, Args{Account: account})
}

// ReadSlot reads a slot's address, lock flag and revealed shape as one snapshot.
// The reads are bracketed by version queries and retried if the contract moved
// in between. A contract that keeps moving for every attempt yields an
// ErrUnreachable error rather than a snapshot mixing two states.
func (c *Contract) ReadSlot(ctx context.Context, slot model.Slot) (model.SlotSnapshot, error) {
	for attempt := 0; attempt < maxSnapshotAttempts; attempt++ {
		before, err := c.GetVersion(ctx)
		if err != nil {
			return model.SlotSnapshot{}, err
		}
		round, err := c.GetRound(ctx)
		if err != nil {
			return model.SlotSnapshot{}, err
		}
		addr, err := c.GetAddress(ctx, slot)
		if err != nil {
			return model.SlotSnapshot{}, err
		}
		locked, err := c.HasLocked(ctx, slot)
		if err != nil {
			return model.SlotSnapshot{}, err
		}
		revealed, err := c.GetRevealedShape(ctx, slot)
		if err != nil {
			return model.SlotSnapshot{}, err
		}
		after, err := c.GetVersion(ctx)
		if err != nil {
			return model.SlotSnapshot{}, err
		}

		if before == after {
			return model.SlotSnapshot{
				Address:  addr,
				Locked:   locked,
				Revealed: revealed,
				Round:    round,
				Version:  before,
			}, nil
		}
	}
	return model.SlotSnapshot{}, fmt.Errorf("%w: contract changed during every read of %s", model.ErrUnreachable, slot)
}
