// Package round holds the Game State Model: the local mirror of a contract's
// current round, rebuilt only from ledger reads.
package round

import (
	"sync"
	"time"

	"github.com/mcoot/rps-ledger/internal/model"
)

// PhaseChange reports that reconciliation moved a slot to a new phase
type PhaseChange struct {
	Slot model.Slot
	From model.Phase
	To   model.Phase
}

// Model is the in-memory mirror of one GameRound. It makes no remote calls.
type Model struct {
	mu    sync.Mutex
	round model.GameRound

	// versions holds the newest snapshot version applied per slot this round
	versions map[model.Slot]uint64
}

// New creates a model with both slots Unregistered
func New() *Model {
	m := &Model{}
	m.clear()
	return m
}

func (m *Model) clear() {
	m.round.Slots = make(map[model.Slot]model.PlayerSlot, len(model.Slots))
	for _, s := range model.Slots {
		m.round.Slots[s] = model.PlayerSlot{Slot: s}
	}
	m.round.Outcome = model.OutcomePending
	m.versions = make(map[model.Slot]uint64, len(model.Slots))
}

// resetLocked clears both slots and reports the slots that regressed
func (m *Model) resetLocked() []PhaseChange {
	var changes []PhaseChange
	for _, s := range model.Slots {
		if p := m.round.Slots[s].Phase; p != model.PhaseUnregistered {
			changes = append(changes, PhaseChange{Slot: s, From: p, To: model.PhaseUnregistered})
		}
	}
	m.clear()
	return changes
}

// Reconcile applies an authoritative snapshot of one slot. Applying the same
// snapshot again leaves the model unchanged.
//
// Snapshots tagged with an older round, or an older version within the
// current round, are ignored, as is a snapshot that would lower a slot's phase
// within the current round. A snapshot from a newer round starts that round,
// discarding the previous round's data.
func (m *Model) Reconcile(slot model.Slot, snap model.SlotSnapshot) ([]PhaseChange, error) {
	if !slot.Valid() {
		return nil, model.ErrInvalidSlot
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var changes []PhaseChange
	if snap.Round != 0 {
		switch {
		case snap.Round < m.round.Round:
			return nil, nil
		case snap.Round > m.round.Round:
			changes = m.resetLocked()
			m.round.Round = snap.Round
		}
	}
	if snap.Version != 0 {
		if snap.Version < m.versions[slot] {
			return changes, nil
		}
		m.versions[slot] = snap.Version
	}

	prev := m.round.Slots[slot]
	// Phases only move backwards when a round closes
	if snap.Round != 0 && snap.Round == m.round.Round && snap.Phase() < prev.Phase {
		return changes, nil
	}
	next := model.PlayerSlot{
		Slot:       slot,
		Address:    snap.Address,
		Phase:      snap.Phase(),
		Commitment: snap.Locked || snap.Revealed.Valid(),
		Revealed:   snap.Revealed,
	}
	m.round.Slots[slot] = next

	if prev.Phase != next.Phase {
		changes = mergeChange(changes, PhaseChange{Slot: slot, From: prev.Phase, To: next.Phase})
	}
	return changes, nil
}

// mergeChange folds a change into an earlier reset so each slot is reported once
func mergeChange(changes []PhaseChange, c PhaseChange) []PhaseChange {
	for i := range changes {
		if changes[i].Slot == c.Slot {
			changes[i].To = c.To
			if changes[i].From == changes[i].To {
				return append(changes[:i], changes[i+1:]...)
			}
			return changes
		}
	}
	return append(changes, c)
}

// BothInPhase reports whether both slots are at least at phase
func (m *Model) BothInPhase(phase model.Phase) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bothInPhaseLocked(phase)
}

func (m *Model) bothInPhaseLocked(phase model.Phase) bool {
	for _, s := range model.Slots {
		if m.round.Slots[s].Phase < phase {
			return false
		}
	}
	return true
}

// Reset returns both slots to Unregistered and clears the outcome.
// The round number is kept, so reads of the closed round remain current until
// StartRound moves past it.
func (m *Model) Reset() []PhaseChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLocked()
}

// StartRound resets the model for a round the ledger has begun. Rounds at or
// before the current one are ignored, which makes the call idempotent across
// the orchestrator and the event loop.
func (m *Model) StartRound(round uint64) []PhaseChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	if round <= m.round.Round {
		return nil
	}
	changes := m.resetLocked()
	m.round.Round = round
	return changes
}

// Phase returns a slot's current phase
func (m *Model) Phase(slot model.Slot) model.Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.Slots[slot].Phase
}

// Round returns the ledger round the model mirrors, zero if unknown
func (m *Model) Round() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.Round
}

// SetOutcome records the settled result of the round
func (m *Model) SetOutcome(outcome model.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.round.Outcome = outcome
}

// ObserveLastAction records the ledger's last state-changing action time.
// Observations older than the current one are ignored.
func (m *Model) ObserveLastAction(ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ts.After(m.round.LastActionAt) {
		m.round.LastActionAt = ts
	}
}

// LastAction returns the last observed action time
func (m *Model) LastAction() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.LastActionAt
}

// Snapshot returns a copy of the mirrored round
func (m *Model) Snapshot() model.GameRound {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.round
	out.Slots = make(map[model.Slot]model.PlayerSlot, len(m.round.Slots))
	for s, p := range m.round.Slots {
		out.Slots[s] = p
	}
	return out
}

// Gates derives which actions are currently legal from reconciled phases.
// Reveal additionally requires both slots to have locked.
func (m *Model) Gates() model.Gates {
	m.mu.Lock()
	defer m.mu.Unlock()

	bothLocked := m.bothInPhaseLocked(model.PhaseLocked)
	g := model.Gates{
		Register: make(map[model.Slot]bool, len(model.Slots)),
		Lock:     make(map[model.Slot]bool, len(model.Slots)),
		Reveal:   make(map[model.Slot]bool, len(model.Slots)),
		Settle:   m.bothInPhaseLocked(model.PhaseRevealed),
	}
	for _, s := range model.Slots {
		phase := m.round.Slots[s].Phase
		g.Register[s] = phase == model.PhaseUnregistered
		g.Lock[s] = phase == model.PhaseRegistered
		g.Reveal[s] = phase == model.PhaseLocked && bothLocked
	}
	return g
}
