// Package ledger defines the gateway through which clients read and write a
// Rock-Paper-Scissors contract, plus a typed client over it.
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Method names a contract entry point
type Method string

// Transactions
const (
	MethodRegisterPlayer Method = "registerPlayer"
	MethodLockShape      Method = "lockShape"
	MethodRevealShape    Method = "revealShape"
	MethodSettle         Method = "settle"
	MethodTimeoutReset   Method = "timeoutReset"
)

// Queries
const (
	MethodGetAddress             Method = "getAddress"
	MethodHasLocked              Method = "hasLocked"
	MethodHasRevealed            Method = "hasRevealed"
	MethodGetRevealedShape       Method = "getRevealedShape"
	MethodGetOutcome             Method = "getOutcome"
	MethodGetLastActionTimestamp Method = "getLastActionTimestamp"
	MethodGetRound               Method = "getRound"
	MethodGetVersion             Method = "getVersion"
	MethodGetStake               Method = "getStake"
	MethodGetTimeoutWindow       Method = "getTimeoutWindow"
	MethodGetBalance             Method = "getBalance"
)

// IsTransaction reports whether the method mutates contract state
func (m Method) IsTransaction() bool {
	switch m {
	case MethodRegisterPlayer, MethodLockShape, MethodRevealShape, MethodSettle, MethodTimeoutReset:
		return true
	default:
		return false
	}
}

// Args carries the arguments of a contract call. Unused fields are left zero.
type Args struct {
	Slot    model.Slot    `json:"slot,omitempty"`
	Shape   model.Shape   `json:"shape,omitempty"`
	Secret  string        `json:"secret,omitempty"`
	Account model.Address `json:"account,omitzero"`
}

// CallerContext identifies who submits a transaction and what value it carries
type CallerContext struct {
	From  model.Address `json:"from"`
	Value uint64        `json:"value,omitempty"`
}

// Confirmation is the receipt of a confirmed transaction
type Confirmation struct {
	TxID      string    `json:"tx_id"`
	Method    Method    `json:"method"`
	Round     uint64    `json:"round"`
	Version   uint64    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFilter narrows a subscription. A zero filter receives every event of the contract.
type EventFilter struct {
	Types []model.EventType
}

// Matches reports whether an event passes the filter
func (f EventFilter) Matches(e model.LedgerEvent) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Subscription is a live stream of ledger events.
// The channel is closed when the subscription ends.
type Subscription interface {
	Events() <-chan model.LedgerEvent
	Err() error
	Close() error
}

// Gateway executes calls against one bound contract
type Gateway interface {
	// Query runs a read-only call and returns its JSON-encoded result
	Query(ctx context.Context, method Method, args Args) (json.RawMessage, error)

	// Submit sends a transaction and waits for its confirmation
	Submit(ctx context.Context, method Method, args Args, caller CallerContext) (*Confirmation, error)

	// Subscribe opens a push stream of contract events
	Subscribe(ctx context.Context, filter EventFilter) (Subscription, error)
}
