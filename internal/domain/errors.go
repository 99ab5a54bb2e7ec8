package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Recurrence errors
	ErrRecurrenceParse = errors.New("recurrence spec could not be parsed")

	// Ledger errors
	ErrValidation        = errors.New("invalid argument")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEnvelopeNotFound  = errors.New("envelope not found")
	ErrLastEnvelope      = errors.New("cannot delete the only envelope")
	ErrNoDefault         = errors.New("a new default envelope is required")

	// Lookup errors
	ErrChoreNotFound  = errors.New("chore not found")
	ErrPersonNotFound = errors.New("person not found")
)
