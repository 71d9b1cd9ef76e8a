package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the orchestrator and the ledger gateway
var (
	// ErrUnreachable means the ledger could not be contacted. Retryable by the caller.
	ErrUnreachable = errors.New("ledger unreachable")

	// ErrInvalidArgument means a caller supplied a malformed slot, shape or secret.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTransactionRejected means a submission failed before confirmation.
	ErrTransactionRejected = errors.New("transaction rejected")

	// ErrVerificationMismatch means a transaction confirmed but its expected post-condition did not hold.
	ErrVerificationMismatch = errors.New("verification mismatch")

	// ErrIllegalTransition means an operation's precondition was not met locally.
	ErrIllegalTransition = errors.New("illegal transition")
)

// Argument errors, each also an ErrInvalidArgument
var (
	ErrInvalidSlot    = fmt.Errorf("%w: slot must be 1 or 2", ErrInvalidArgument)
	ErrInvalidShape   = fmt.Errorf("%w: shape must be Rock, Paper or Scissors", ErrInvalidArgument)
	ErrEmptySecret    = fmt.Errorf("%w: secret must not be empty", ErrInvalidArgument)
	ErrInvalidAddress = fmt.Errorf("%w: malformed address", ErrInvalidArgument)
	ErrUnknownMethod  = fmt.Errorf("%w: unknown contract method", ErrInvalidArgument)
)

// Ledger-side errors
var (
	ErrContractNotFound = errors.New("contract not found")
)

// Operation failures, one per orchestrator operation
var (
	ErrRegistrationFailed = errors.New("registration failed")
	ErrLockFailed         = errors.New("lock failed")
	ErrRevealFailed       = errors.New("reveal failed")
	ErrSettleFailed       = errors.New("settle failed")
	ErrTimeoutResetFailed = errors.New("timeout reset failed")
)

// Operation names an orchestrator operation
type Operation string

const (
	OpRegister     Operation = "register"
	OpLock         Operation = "lock"
	OpReveal       Operation = "reveal"
	OpSettle       Operation = "settle"
	OpTimeoutReset Operation = "timeout_reset"
	OpReconcile    Operation = "reconcile"
)

// failure returns the operation's failure sentinel, or nil for reconciliation
func (o Operation) failure() error {
	switch o {
	case OpRegister:
		return ErrRegistrationFailed
	case OpLock:
		return ErrLockFailed
	case OpReveal:
		return ErrRevealFailed
	case OpSettle:
		return ErrSettleFailed
	case OpTimeoutReset:
		return ErrTimeoutResetFailed
	default:
		return nil
	}
}

// OperationError reports a failed orchestrator operation.
// It matches its operation's failure sentinel, its kind and its cause with errors.Is.
type OperationError struct {
	Op   Operation
	Slot Slot // SlotNone for round-level operations
	Kind error
	Err  error
}

// NewOperationError builds an OperationError, classifying err into a kind
func NewOperationError(op Operation, slot Slot, err error) *OperationError {
	return &OperationError{Op: op, Slot: slot, Kind: KindOf(err), Err: err}
}

func (e *OperationError) Error() string {
	msg := string(e.Op)
	if e.Slot.Valid() {
		msg += " " + e.Slot.String()
	}
	if e.Err != nil && !errors.Is(e.Kind, e.Err) {
		return msg + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
	return msg + ": " + e.Kind.Error()
}

// Unwrap exposes the failure sentinel, the kind and the cause
func (e *OperationError) Unwrap() []error {
	errs := make([]error, 0, 3)
	if f := e.Op.failure(); f != nil {
		errs = append(errs, f)
	}
	errs = append(errs, e.Kind)
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf maps an error to one of the five error kinds.
// Unclassified errors are treated as ErrUnreachable since they originate in transport.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrIllegalTransition,
		ErrInvalidArgument,
		ErrVerificationMismatch,
		ErrTransactionRejected,
		ErrUnreachable,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnreachable
}
