// Package notify defines where the orchestrator and timeout monitor push
// state-change notifications, plus logging and fan-out sinks.
package notify

import (
	"log/slog"

	"github.com/mcoot/rps-ledger/internal/model"
)

// Sink receives state-change notifications. Implementations must not block.
type Sink interface {
	OnPhaseChanged(slot model.Slot, phase model.Phase)
	OnOutcomeDetermined(outcome model.Outcome)
	OnTimeoutEligibility(eligibility model.TimeoutEligibility)
	// OnOperationFailed receives a *model.OperationError; slot is SlotNone for round-level operations
	OnOperationFailed(op model.Operation, slot model.Slot, err error)
}

// GatesObserver is implemented by sinks that want the derived UI gating
// whenever it changes
type GatesObserver interface {
	OnGatesChanged(gates model.Gates)
}

// Nop discards every notification
type Nop struct{}

func (Nop) OnPhaseChanged(model.Slot, model.Phase)               {}
func (Nop) OnOutcomeDetermined(model.Outcome)                    {}
func (Nop) OnTimeoutEligibility(model.TimeoutEligibility)        {}
func (Nop) OnOperationFailed(model.Operation, model.Slot, error) {}

// LogSink writes every notification as a structured log record
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging to logger
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger.With(slog.String("component", "notify"))}
}

func (s *LogSink) OnPhaseChanged(slot model.Slot, phase model.Phase) {
	s.logger.Info("phase changed",
		slog.String("slot", slot.String()),
		slog.String("phase", phase.String()))
}

func (s *LogSink) OnOutcomeDetermined(outcome model.Outcome) {
	s.logger.Info("outcome determined", slog.String("outcome", outcome.String()))
}

func (s *LogSink) OnTimeoutEligibility(eligibility model.TimeoutEligibility) {
	s.logger.Debug("timeout eligibility",
		slog.String("status", eligibility.Status.String()),
		slog.Duration("remaining", eligibility.Remaining))
}

func (s *LogSink) OnOperationFailed(op model.Operation, slot model.Slot, err error) {
	s.logger.Warn("operation failed",
		slog.String("operation", string(op)),
		slog.String("slot", slot.String()),
		slog.String("kind", model.KindOf(err).Error()),
		slog.String("error", err.Error()))
}

func (s *LogSink) OnGatesChanged(gates model.Gates) {
	s.logger.Debug("gates changed", slog.Any("gates", gates))
}

// Fanout forwards every notification to each of its sinks in order
type Fanout []Sink

func (f Fanout) OnPhaseChanged(slot model.Slot, phase model.Phase) {
	for _, s := range f {
		s.OnPhaseChanged(slot, phase)
	}
}

func (f Fanout) OnOutcomeDetermined(outcome model.Outcome) {
	for _, s := range f {
		s.OnOutcomeDetermined(outcome)
	}
}

func (f Fanout) OnTimeoutEligibility(eligibility model.TimeoutEligibility) {
	for _, s := range f {
		s.OnTimeoutEligibility(eligibility)
	}
}

func (f Fanout) OnOperationFailed(op model.Operation, slot model.Slot, err error) {
	for _, s := range f {
		s.OnOperationFailed(op, slot, err)
	}
}

// OnGatesChanged forwards to the sinks that observe gates
func (f Fanout) OnGatesChanged(gates model.Gates) {
	for _, s := range f {
		if o, ok := s.(GatesObserver); ok {
			o.OnGatesChanged(gates)
		}
	}
}
