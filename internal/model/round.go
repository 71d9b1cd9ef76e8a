package model

import (
	"encoding/json"
	"time"
)

// Outcome is the settled result of a round
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePlayer1Wins
	OutcomePlayer2Wins
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomePlayer1Wins:
		return "player1_wins"
	case OutcomePlayer2Wins:
		return "player2_wins"
	case OutcomeDraw:
		return "draw"
	default:
		return "pending"
	}
}

// Decided reports whether the outcome is one of the three settled results
func (o Outcome) Decided() bool {
	return o == OutcomePlayer1Wins || o == OutcomePlayer2Wins || o == OutcomeDraw
}

// MarshalJSON encodes the outcome by name
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// OutcomeFor computes the outcome of a round from both revealed shapes
func OutcomeFor(p1, p2 Shape) Outcome {
	switch {
	case !p1.Valid() || !p2.Valid():
		return OutcomePending
	case p1 == p2:
		return OutcomeDraw
	case p1.Beats(p2):
		return OutcomePlayer1Wins
	default:
		return OutcomePlayer2Wins
	}
}

// PlayerSlot mirrors one player position of the ledger contract
type PlayerSlot struct {
	Slot       Slot
	Address    Address
	Phase      Phase
	Commitment bool // Opaque to the client; only its presence is mirrored
	Revealed   Shape
}

// GameRound is the local mirror of the contract's current round
type GameRound struct {
	Round        uint64
	Slots        map[Slot]PlayerSlot
	LastActionAt time.Time
	Outcome      Outcome
}

// Slot returns the mirrored state of a slot
func (r GameRound) Slot(s Slot) PlayerSlot {
	return r.Slots[s]
}

// SlotSnapshot is a single authoritative read of a slot from the ledger
type SlotSnapshot struct {
	Address  Address
	Locked   bool
	Revealed Shape

	// Round and Version position the read in ledger history.
	// A zero Version is treated as unordered and always applied.
	Round   uint64
	Version uint64
}

// Phase derives the protocol phase implied by the snapshot
func (s SlotSnapshot) Phase() Phase {
	switch {
	case s.Revealed.Valid():
		return PhaseRevealed
	case s.Locked:
		return PhaseLocked
	case s.Address.IsSet():
		return PhaseRegistered
	default:
		return PhaseUnregistered
	}
}

// Gates describes which UI actions are currently legal
type Gates struct {
	Register map[Slot]bool `json:"register"`
	Lock     map[Slot]bool `json:"lock"`
	Reveal   map[Slot]bool `json:"reveal"`
	Settle   bool          `json:"settle"`
}

// Equal reports whether two gate sets enable the same actions
func (g Gates) Equal(other Gates) bool {
	for _, s := range Slots {
		if g.Register[s] != other.Register[s] || g.Lock[s] != other.Lock[s] || g.Reveal[s] != other.Reveal[s] {
			return false
		}
	}
	return g.Settle == other.Settle
}

// TimeoutStatus classifies whether a stalled round may be reset
type TimeoutStatus int

const (
	TimeoutUnknown  TimeoutStatus = iota // Last action time could not be read
	TimeoutWaiting                       // Window has not yet elapsed
	TimeoutEligible                      // timeoutReset may be submitted
)

func (t TimeoutStatus) String() string {
	switch t {
	case TimeoutWaiting:
		return "waiting"
	case TimeoutEligible:
		return "eligible"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status by name
func (t TimeoutStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a status by name
func (t *TimeoutStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, candidate := range []TimeoutStatus{TimeoutUnknown, TimeoutWaiting, TimeoutEligible} {
		if candidate.String() == s {
			*t = candidate
			return nil
		}
	}
	return ErrInvalidArgument
}

// TimeoutEligibility is the Timeout Monitor's verdict for one check
type TimeoutEligibility struct {
	Status    TimeoutStatus `json:"status"`
	Remaining time.Duration `json:"remaining"` // Zero unless Status is TimeoutWaiting
	CheckedAt time.Time     `json:"checked_at"`
}

// Eligible reports whether timeoutReset is currently legal
func (e TimeoutEligibility) Eligible() bool {
	return e.Status == TimeoutEligible
}

// TimeoutEligibilityAt computes eligibility for a given last action time.
// The window is a closed interval: at exactly lastAction+window the reset is legal.
func TimeoutEligibilityAt(lastAction time.Time, window time.Duration, now time.Time) TimeoutEligibility {
	remaining := lastAction.Add(window).Sub(now)
	if remaining <= 0 {
		return TimeoutEligibility{Status: TimeoutEligible, CheckedAt: now}
	}
	return TimeoutEligibility{Status: TimeoutWaiting, Remaining: remaining, CheckedAt: now}
}

// UnmarshalJSON decodes an outcome by name
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for _, candidate := range []Outcome{OutcomePending, OutcomePlayer1Wins, OutcomePlayer2Wins, OutcomeDraw} {
		if candidate.String() == s {
			*o = candidate
			return nil
		}
	}
	return ErrInvalidArgument
}
