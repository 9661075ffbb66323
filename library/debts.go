package library

import (
	"context"
	"fmt"
)

// DebtStore persists settled debt: one running total per user plus the
// accrual that produced each increment.
type DebtStore struct {
	store
}

// Add records a and raises the user's total by a.Amount.
func (s *DebtStore) Add(ctx context.Context, a Accrual) error {
	_, err := s.exec(ctx,
		`INSERT INTO debt_accruals (loan_id, user_id, late_days, amount_cents, accrued_on) VALUES (?, ?, ?, ?, ?)`,
		a.LoanID, a.UserID, a.LateDays, int64(a.Amount), a.AccruedOn)
	if err != nil {
		return fmt.Errorf("insert accrual: %w", err)
	}

	_, err = s.exec(ctx,
		`INSERT INTO debts (user_id, total_owed_cents) VALUES (?, ?)
		 ON CONFLICT (user_id) DO UPDATE SET total_owed_cents = debts.total_owed_cents + excluded.total_owed_cents`,
		a.UserID, int64(a.Amount))
	if err != nil {
		return fmt.Errorf("accrue debt: %w", err)
	}
	return nil
}

// Settled returns the user's persisted total, zero when nothing was ever accrued.
func (s *DebtStore) Settled(ctx context.Context, userID int64) (Cents, error) {
	var total Cents
	err := s.get(ctx, &total,
		`SELECT COALESCE((SELECT total_owed_cents FROM debts WHERE user_id = ?), 0)`, userID)
	if err != nil {
		return 0, fmt.Errorf("settled debt: %w", err)
	}
	return total, nil
}

// Accruals returns the user's accruals in the order they were settled.
func (s *DebtStore) Accruals(ctx context.Context, userID int64) ([]Accrual, error) {
	accruals := []Accrual{}
	err := s.selectRows(ctx, &accruals,
		`SELECT loan_id, user_id, late_days, amount_cents, accrued_on FROM debt_accruals
		 WHERE user_id = ? ORDER BY accrued_on, loan_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accruals: %w", err)
	}
	return accruals, nil
}

// SettledTotals returns every non-zero settled total keyed by user.
func (s *DebtStore) SettledTotals(ctx context.Context) (map[int64]Cents, error) {
	var rows []struct {
		UserID int64 `db:"user_id"`
		Total  Cents `db:"total_owed_cents"`
	}
	err := s.selectRows(ctx, &rows, `SELECT user_id, total_owed_cents FROM debts WHERE total_owed_cents > 0`)
	if err != nil {
		return nil, fmt.Errorf("settled totals: %w", err)
	}

	totals := make(map[int64]Cents, len(rows))
	for _, r := range rows {
		totals[r.UserID] = r.Total
	}
	return totals, nil
}
