package library

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger wraps exactly one of these.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	// ErrContention means a lock could not be acquired within the configured
	// wait. It is the only kind worth retrying.
	ErrContention = errors.New("contention: lock wait exceeded")
)

var (
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)
	ErrBookNotFound = fmt.Errorf("book %w", ErrNotFound)
	ErrLoanNotFound = fmt.Errorf("loan %w", ErrNotFound)

	ErrNoCopiesAvailable    = fmt.Errorf("%w: no copies available", ErrConflict)
	ErrLoanAlreadyReturned  = fmt.Errorf("%w: loan already returned", ErrConflict)
	ErrDuplicateLoan        = fmt.Errorf("%w: user already holds this book", ErrConflict)
	ErrLoanLimitReached     = fmt.Errorf("%w: active loan limit reached", ErrConflict)
	ErrUserHasActiveLoans   = fmt.Errorf("%w: user has active loans", ErrConflict)
	ErrUserHasHistory       = fmt.Errorf("%w: user has loan history", ErrConflict)
	ErrBookHasHistory       = fmt.Errorf("%w: book has loan history", ErrConflict)
	ErrCopiesOnLoan         = fmt.Errorf("%w: more copies on loan than requested total", ErrConflict)
	ErrAvailabilityOverflow = fmt.Errorf("%w: available copies would exceed total", ErrConflict)
	ErrEmailTaken           = fmt.Errorf("%w: email already registered", ErrConflict)

	ErrInvalidAmount    = fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	ErrInvalidDateRange = fmt.Errorf("%w: date range is inverted", ErrInvalidInput)
	ErrInvalidPolicy    = fmt.Errorf("%w: policy", ErrInvalidInput)
	ErrInvalidBook      = fmt.Errorf("%w: book", ErrInvalidInput)
	ErrInvalidUser      = fmt.Errorf("%w: user", ErrInvalidInput)
)

// Kind classifies an error for callers that only care about the broad category.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindContention
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindContention:
		return "contention"
	default:
		return "unknown"
	}
}

// KindOf reports the kind of err. Errors outside the taxonomy are KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrContention):
		return KindContention
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether the operation that produced err may succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrContention)
}
