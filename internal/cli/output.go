package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
	mu     sync.Mutex
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// JSON reports whether output is machine-readable
func (o *Output) JSON() bool {
	return o.format == "json"
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.JSON() {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.JSON() {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

// printLine writes one notification; JSON output is one object per line
func (o *Output) printLine(data any, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.JSON() {
		line, _ := json.Marshal(data)
		fmt.Fprintln(o.w, string(line))
	} else {
		fmt.Fprintln(o.w, text)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.Contract:
		o.printContract(v)
	case []response.Contract:
		if len(v) == 0 {
			fmt.Fprintln(o.w, "No contracts deployed")
		}
		for i, c := range v {
			if i > 0 {
				fmt.Fprintln(o.w)
			}
			o.printContract(c)
		}
	case Status:
		o.printStatus(v)
	case BalanceResult:
		fmt.Fprintf(o.w, "Account: %s\nBalance: %d gwei\n", v.Account, v.Balance)
	case HealthResult:
		fmt.Fprintf(o.w, "Ledger: %s\nStatus: %s\n", v.Ledger, v.Status)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// SlotStatus is one slot of a status report
type SlotStatus struct {
	Slot     string `json:"slot"`
	Address  string `json:"address,omitempty"`
	Phase    string `json:"phase"`
	Revealed string `json:"revealed,omitempty"`
	Mine     bool   `json:"mine,omitempty"`
}

// Status is the reconciled view of a contract
type Status struct {
	Contract    string                   `json:"contract"`
	Round       uint64                   `json:"round"`
	Stake       uint64                   `json:"stake"`
	Slots       []SlotStatus             `json:"slots"`
	LastOutcome string                   `json:"last_outcome"`
	LastAction  time.Time                `json:"last_action"`
	Timeout     model.TimeoutEligibility `json:"timeout"`
	Actions     []string                 `json:"actions"`
}

// BalanceResult is an account balance
type BalanceResult struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// HealthResult is the node health
type HealthResult struct {
	Status string `json:"status"`
	Ledger string `json:"ledger"`
}

func (o *Output) printContract(c response.Contract) {
	fmt.Fprintf(o.w, "Contract: %s\n", c.Address)
	fmt.Fprintf(o.w, "Stake: %d gwei\n", c.Stake)
	fmt.Fprintf(o.w, "Timeout window: %ds\n", c.TimeoutWindowSeconds)
	fmt.Fprintf(o.w, "Round: %d\n", c.Round)
}

func (o *Output) printStatus(s Status) {
	fmt.Fprintf(o.w, "Contract: %s\n", s.Contract)
	fmt.Fprintf(o.w, "Round: %d (stake %d gwei)\n", s.Round, s.Stake)
	for _, slot := range s.Slots {
		line := fmt.Sprintf("  %s: %s", slot.Slot, slot.Phase)
		if slot.Address != "" {
			line += " " + slot.Address
		}
		if slot.Revealed != "" {
			line += " showing " + slot.Revealed
		}
		if slot.Mine {
			line += " [you]"
		}
		fmt.Fprintln(o.w, line)
	}
	fmt.Fprintf(o.w, "Last outcome: %s\n", s.LastOutcome)
	fmt.Fprintf(o.w, "Timeout: %s\n", describeEligibility(s.Timeout))
	if len(s.Actions) > 0 {
		fmt.Fprintf(o.w, "Available: %s\n", strings.Join(s.Actions, ", "))
	}
}

func describeEligibility(e model.TimeoutEligibility) string {
	if e.Status == model.TimeoutWaiting {
		return fmt.Sprintf("%s (%s left)", e.Status, e.Remaining.Round(time.Second))
	}
	return e.Status.String()
}

// notification is the JSON form of a sink callback
type notification struct {
	Event   string `json:"event"`
	Slot    string `json:"slot,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Timeout string `json:"timeout,omitempty"`
	Op      string `json:"operation,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

// printSink renders orchestrator and monitor notifications.
// It starts muted so the initial reconciliation stays quiet. Failures are
// printed only when they are not also returned to the caller.
type printSink struct {
	out          *Output
	muted        atomic.Bool
	showFailures bool

	mu          sync.Mutex
	lastTimeout model.TimeoutStatus
	seenTimeout bool
	outcomes    []model.Outcome
}

func newPrintSink(out *Output, muted, showFailures bool) *printSink {
	s := &printSink{out: out, showFailures: showFailures}
	s.muted.Store(muted)
	return s
}

func (s *printSink) unmute() {
	s.muted.Store(false)
}

func (s *printSink) OnPhaseChanged(slot model.Slot, phase model.Phase) {
	if s.muted.Load() {
		return
	}
	s.out.printLine(
		notification{Event: "phase_changed", Slot: slot.String(), Phase: phase.String()},
		fmt.Sprintf("%s is now %s", slot, phase),
	)
}

func (s *printSink) OnOutcomeDetermined(outcome model.Outcome) {
	s.mu.Lock()
	s.outcomes = append(s.outcomes, outcome)
	s.mu.Unlock()
	if s.muted.Load() {
		return
	}
	s.out.printLine(
		notification{Event: "outcome_determined", Outcome: outcome.String()},
		"Outcome: "+outcome.String(),
	)
}

// OnTimeoutEligibility prints only status transitions, not every poll
func (s *printSink) OnTimeoutEligibility(e model.TimeoutEligibility) {
	s.mu.Lock()
	changed := !s.seenTimeout || s.lastTimeout != e.Status
	s.seenTimeout = true
	s.lastTimeout = e.Status
	s.mu.Unlock()

	if !changed || s.muted.Load() {
		return
	}
	s.out.printLine(
		notification{Event: "timeout_eligibility", Timeout: e.Status.String()},
		"Timeout: "+describeEligibility(e),
	)
}

func (s *printSink) OnOperationFailed(op model.Operation, slot model.Slot, err error) {
	if !s.showFailures || s.muted.Load() {
		return
	}
	n := notification{Event: "operation_failed", Op: string(op), Kind: model.KindOf(err).Error(), Error: err.Error()}
	if slot.Valid() {
		n.Slot = slot.String()
	}
	s.out.printLine(n, "Failed: "+err.Error())
}

// Outcomes returns every outcome notified so far
func (s *printSink) Outcomes() []model.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Outcome(nil), s.outcomes...)
}
