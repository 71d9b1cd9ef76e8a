package mocks

import (
	"sync"

	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/notify"
)

// PhaseChange is one recorded OnPhaseChanged call
type PhaseChange struct {
	Slot  model.Slot
	Phase model.Phase
}

// Failure is one recorded OnOperationFailed call
type Failure struct {
	Op   model.Operation
	Slot model.Slot
	Err  error
}

// RecordingSink records every notification for assertions
type RecordingSink struct {
	mu          sync.Mutex
	phases      []PhaseChange
	outcomes    []model.Outcome
	eligibility []model.TimeoutEligibility
	failures    []Failure
	gates       []model.Gates
}

var (
	_ notify.Sink          = (*RecordingSink)(nil)
	_ notify.GatesObserver = (*RecordingSink)(nil)
)

// NewRecordingSink creates an empty RecordingSink
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) OnPhaseChanged(slot model.Slot, phase model.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, PhaseChange{Slot: slot, Phase: phase})
}

func (s *RecordingSink) OnOutcomeDetermined(outcome model.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcome)
}

func (s *RecordingSink) OnTimeoutEligibility(eligibility model.TimeoutEligibility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eligibility = append(s.eligibility, eligibility)
}

func (s *RecordingSink) OnOperationFailed(op model.Operation, slot model.Slot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{Op: op, Slot: slot, Err: err})
}

func (s *RecordingSink) OnGatesChanged(gates model.Gates) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates = append(s.gates, gates)
}

// Phases returns the recorded phase changes
func (s *RecordingSink) Phases() []PhaseChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PhaseChange(nil), s.phases...)
}

// Outcomes returns the recorded outcomes
func (s *RecordingSink) Outcomes() []model.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Outcome(nil), s.outcomes...)
}

// Eligibility returns the recorded timeout eligibility notifications
func (s *RecordingSink) Eligibility() []model.TimeoutEligibility {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TimeoutEligibility(nil), s.eligibility...)
}

// Failures returns the recorded operation failures
func (s *RecordingSink) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

// Gates returns the recorded gate changes
func (s *RecordingSink) Gates() []model.Gates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Gates(nil), s.gates...)
}

// LastGates returns the most recent gates, or the zero value
func (s *RecordingSink) LastGates() model.Gates {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.gates) == 0 {
		return model.Gates{}
	}
	return s.gates[len(s.gates)-1]
}

// Reset clears everything recorded so far
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = nil
	s.outcomes = nil
	s.eligibility = nil
	s.failures = nil
	s.gates = nil
}
