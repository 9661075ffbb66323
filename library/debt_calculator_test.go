package library

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLateDaysAndCharge(t *testing.T) {
	calc := NewDebtCalculator(Policy{LoanPeriodDays: 14, DailyRate: 200})

	tests := []struct {
		name     string
		at       int
		lateDays int
		charge   Cents
	}{
		{"before due", 10, 0, 0},
		{"on due date", 14, 0, 0},
		{"one day late", 15, 1, 200},
		{"three days late", 17, 3, 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			late := calc.LateDays(days(14), days(tt.at))
			assert.Equal(t, tt.lateDays, late)
			assert.Equal(t, tt.charge, calc.Charge(late))
		})
	}
	assert.Equal(t, Cents(0), calc.Charge(-3))
}

func TestProjectIgnoresReturnedAndCurrentLoans(t *testing.T) {
	calc := NewDebtCalculator(Policy{LoanPeriodDays: 14, DailyRate: 100})
	returned := days(20)
	loans := []Loan{
		{DueDate: days(14), Status: LoanActive},
		{DueDate: days(18), Status: LoanActive},
		{DueDate: days(30), Status: LoanActive},
		{DueDate: days(10), Status: LoanReturned, ReturnDate: &returned},
	}

	total, overdue := calc.Project(loans, days(20))
	assert.Equal(t, Cents(600+200), total)
	assert.Equal(t, 2, overdue)
}

func TestDebtBeforeAndAfterReturn(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: day0}
	mgr := newManager(t,
		withPolicy(Policy{LoanPeriodDays: 14, DailyRate: 200}),
		withClock(clock),
	)
	userID := givenUser(t, mgr, "Alice")
	bookID := givenBook(t, mgr, "Dune", 1)

	loanID, err := mgr.Borrow(ctx, userID, bookID, day0)
	require.NoError(t, err)

	clock.now = days(14)
	d, err := mgr.CurrentDebt(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Cents(0), d.Total, "nothing owed on the due date")

	clock.now = days(17)
	before, err := mgr.CurrentDebt(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Cents(0), before.Settled)
	assert.Equal(t, Cents(600), before.Projected)
	assert.Equal(t, Cents(600), before.Total)
	assert.Equal(t, 1, before.OverdueLoans)

	receipt, err := mgr.Return(ctx, loanID, days(17))
	require.NoError(t, err)
	assert.Equal(t, Cents(600), receipt.DebtDelta)

	after, err := mgr.CurrentDebt(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Cents(600), after.Settled)
	assert.Equal(t, Cents(0), after.Projected)
	assert.Equal(t, before.Total, after.Total, "returning converts projected debt into settled debt")
	assert.Equal(t, 0, after.OverdueLoans)
}

func TestAccrueRejectsNegativeAmount(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t)
	calc := NewDebtCalculator(DefaultPolicy())

	err := db.RunInTx(ctx, func(s Stores) error {
		return calc.Accrue(ctx, s.Debts, Accrual{LoanID: uuid.New(), UserID: 1, Amount: -1, AccruedOn: day0})
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, KindInvalidInput, KindOf(err))
}

func TestCurrentDebtUnknownUser(t *testing.T) {
	db := tempDB(t)
	calc := NewDebtCalculator(DefaultPolicy())

	_, err := calc.Current(context.Background(), db.Stores(), 7, day0)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
