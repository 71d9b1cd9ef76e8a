package model

import "time"

// EventType identifies the type of ledger event
type EventType string

const (
	// Slot events
	EventPlayerRegistered EventType = "player_registered"
	EventShapeLocked      EventType = "shape_locked"
	EventShapeRevealed    EventType = "shape_revealed"

	// Round events
	EventRoundSettled EventType = "round_settled"
	EventRoundReset   EventType = "round_reset"
)

// RoundLevel reports whether the event affects both slots
func (t EventType) RoundLevel() bool {
	return t == EventRoundSettled || t == EventRoundReset
}

// LedgerEvent is emitted by a contract after every state-changing transaction
type LedgerEvent struct {
	Type      EventType `json:"type"`
	Contract  Address   `json:"contract"`
	Slot      Slot      `json:"slot,omitempty"` // Zero for round-level events
	Round     uint64    `json:"round"`
	Version   uint64    `json:"version"`
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
	Outcome   Outcome   `json:"outcome,omitempty"` // Set on round_settled
}
