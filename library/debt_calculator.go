package library

import (
	"context"
	"fmt"
	"time"
)

// DebtCalculator turns late days into money. Settled debt is written once,
// when a loan is returned; projected debt for loans still out is derived on
// every read and never stored, so the two never overlap.
type DebtCalculator struct {
	policy Policy
}

func NewDebtCalculator(policy Policy) DebtCalculator {
	return DebtCalculator{policy: policy}
}

// LateDays returns how many whole days past due is at, or zero.
func (c DebtCalculator) LateDays(due, at time.Time) int {
	return max(0, DaysBetween(due, at))
}

// Charge prices lateDays at the policy's daily rate.
func (c DebtCalculator) Charge(lateDays int) Cents {
	if lateDays <= 0 {
		return 0
	}
	return Cents(lateDays) * c.policy.DailyRate
}

// Accrue adds a settled charge to the user's running total.
func (c DebtCalculator) Accrue(ctx context.Context, debts *DebtStore, a Accrual) error {
	if a.Amount < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, a.Amount)
	}
	if a.LateDays < 0 {
		return fmt.Errorf("%w: late days must not be negative, got %d", ErrInvalidInput, a.LateDays)
	}
	a.AccruedOn = CivilDate(a.AccruedOn)
	return debts.Add(ctx, a)
}

// Project returns the charge the given loans would incur if returned on now,
// and how many of them are overdue. Returned loans contribute nothing.
func (c DebtCalculator) Project(loans []Loan, now time.Time) (Cents, int) {
	var total Cents
	overdue := 0
	for _, l := range loans {
		if !l.IsActive() {
			continue
		}
		if days := c.LateDays(l.DueDate, now); days > 0 {
			total += c.Charge(days)
			overdue++
		}
	}
	return total, overdue
}

// Current returns settled plus projected debt for the user as of now.
// s should come from a single read transaction so both parts agree.
func (c DebtCalculator) Current(ctx context.Context, s Stores, userID int64, now time.Time) (DebtSummary, error) {
	exists, err := s.Users.UserExists(ctx, userID)
	if err != nil {
		return DebtSummary{}, err
	}
	if !exists {
		return DebtSummary{}, ErrUserNotFound
	}

	settled, err := s.Debts.Settled(ctx, userID)
	if err != nil {
		return DebtSummary{}, err
	}
	active, err := s.Loans.ActiveForUser(ctx, userID)
	if err != nil {
		return DebtSummary{}, err
	}

	projected, overdue := c.Project(active, now)
	return DebtSummary{
		UserID:       userID,
		Settled:      settled,
		Projected:    projected,
		Total:        settled + projected,
		OverdueLoans: overdue,
	}, nil
}
