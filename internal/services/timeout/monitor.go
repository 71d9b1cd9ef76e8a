// Package timeout polls a contract's last action time and reports whether a
// stalled round may be reset. It never submits transactions.
package timeout

import (
	"context"
	"log/slog"
	"time"

	"github.com/mcoot/rps-ledger/internal/dependencies/clock"
	"github.com/mcoot/rps-ledger/internal/ledger"
	"github.com/mcoot/rps-ledger/internal/model"
	"github.com/mcoot/rps-ledger/internal/services/notify"
)

// Observer receives each successfully read last action time
type Observer interface {
	ObserveLastAction(ts time.Time)
}

// Config controls polling
type Config struct {
	Interval time.Duration
	Window   time.Duration
}

// DefaultConfig polls every second against the reference 600s window
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Window:   600 * time.Second,
	}
}

// Monitor computes timeout eligibility from ledger reads
type Monitor struct {
	contract *ledger.Contract
	observer Observer
	sink     notify.Sink
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
}

// New creates a Monitor. observer may be nil.
func New(
	gateway ledger.Gateway,
	observer Observer,
	sink notify.Sink,
	clock clock.Clock,
	cfg Config,
	logger *slog.Logger,
) *Monitor {
	return &Monitor{
		contract: ledger.NewContract(gateway),
		observer: observer,
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "timeout")),
	}
}

// Check reads the last action time once and notifies the resulting
// eligibility. A failed read yields TimeoutUnknown, never a guess.
func (m *Monitor) Check(ctx context.Context) model.TimeoutEligibility {
	now := m.clock.Now()
	last, err := m.contract.GetLastActionTimestamp(ctx)
	if err != nil {
		m.logger.Debug("last action unavailable", slog.String("error", err.Error()))
		eligibility := model.TimeoutEligibility{Status: model.TimeoutUnknown, CheckedAt: now}
		m.sink.OnTimeoutEligibility(eligibility)
		return eligibility
	}

	if m.observer != nil {
		m.observer.ObserveLastAction(last)
	}
	eligibility := model.TimeoutEligibilityAt(last, m.cfg.Window, now)
	m.sink.OnTimeoutEligibility(eligibility)
	return eligibility
}

// Run checks immediately and then every Interval until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Debug("timeout monitor started", slog.Duration("interval", interval))
	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("timeout monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
