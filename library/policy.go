package library

import (
	"fmt"
	"time"
)

const (
	DefaultLoanPeriodDays = 14
	DefaultDailyRate      = Cents(50)
)

// Policy holds the lending rules applied by the ledger.
type Policy struct {
	// LoanPeriodDays is added to the borrow date to get the due date.
	LoanPeriodDays int
	// DailyRate is charged per day a copy is returned after its due date.
	DailyRate Cents
	// MaxActiveLoans caps concurrent loans per user. Zero means no cap.
	MaxActiveLoans int
}

// DefaultPolicy returns a 14 day loan period, 0.50 per late day and no loan cap.
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays: DefaultLoanPeriodDays,
		DailyRate:      DefaultDailyRate,
	}
}

// Validate rejects policies the ledger cannot apply.
func (p Policy) Validate() error {
	if p.LoanPeriodDays <= 0 {
		return fmt.Errorf("%w: loan period must be positive, got %d", ErrInvalidPolicy, p.LoanPeriodDays)
	}
	if p.DailyRate < 0 {
		return fmt.Errorf("%w: daily rate must not be negative, got %d", ErrInvalidPolicy, p.DailyRate)
	}
	if p.MaxActiveLoans < 0 {
		return fmt.Errorf("%w: max active loans must not be negative, got %d", ErrInvalidPolicy, p.MaxActiveLoans)
	}
	return nil
}

// DueDate returns the date a loan borrowed on borrowDate must be back.
func (p Policy) DueDate(borrowDate time.Time) time.Time {
	return CivilDate(borrowDate).AddDate(0, 0, p.LoanPeriodDays)
}
