package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists signals a duplicate resource key.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidInput signals a request rejected before any work was done.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidAddress signals a malformed ledger account address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrDuplicateFound signals a description too similar to an existing record.
	ErrDuplicateFound = errors.New("a similar IP already exists")
	// ErrCorpusUnavailable signals that existing records could not be read.
	ErrCorpusUnavailable = errors.New("corpus unavailable")
	// ErrLedgerReadOnly signals a write against a ledger opened without a signer.
	ErrLedgerReadOnly = errors.New("ledger is read-only")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// DuplicateError wraps ErrDuplicateFound with the matched record.
type DuplicateError struct {
	Index int
	Score float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: record %d scored %.4f", ErrDuplicateFound.Error(), e.Index, e.Score)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicateFound }

// NewDuplicate creates a duplicate error for the matched record.
func NewDuplicate(index int, score float64) error {
	return &DuplicateError{Index: index, Score: score}
}
