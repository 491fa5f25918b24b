package services

import (
	"errors"
	"fmt"

	"casino-core/internal/models"
)

// Recoverable errors, rejected before any state mutation.
var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidMode     = errors.New("invalid wallet mode")
	ErrInvalidMines    = errors.New("mines count out of range")
	ErrInvalidPosition = errors.New("position out of range")
	ErrInvalidKind     = errors.New("unknown game kind")

	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrSessionExists = errors.New("an active session already exists")
	ErrNoSession     = errors.New("no active session")

	ErrWrongPhase       = errors.New("not allowed in the current phase")
	ErrAlreadyCashedOut = errors.New("already cashed out")
	ErrAlreadyRevealed  = errors.New("cell already revealed")
	ErrNothingRevealed  = errors.New("cash out requires at least one revealed cell")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrActionNotAllowed = errors.New("action not allowed for this hand")
	ErrTableFull        = errors.New("table is full")
	ErrNotSeated        = errors.New("account is not seated at this table")

	ErrDepositUnavailable = errors.New("deposit artifact is not claimable")

	ErrExternalService = errors.New("external service failure")
)

// CriticalInconsistency is raised when a compensating ledger credit cannot
// be confirmed after a downstream failure: funds may be dangling and only
// external reconciliation can resolve it. It carries a reference token for
// support follow-up and must reach the operator channel, never be
// swallowed.
type CriticalInconsistency struct {
	Ref       string
	Op        string
	AccountID int64
	Mode      models.Mode
	Amount    int64
	Cause     error
}

func (e *CriticalInconsistency) Error() string {
	return fmt.Sprintf("critical inconsistency during %s (ref %s, account %d, %s, amount %d): %v",
		e.Op, e.Ref, e.AccountID, e.Mode, e.Amount, e.Cause)
}

func (e *CriticalInconsistency) Unwrap() error { return e.Cause }
