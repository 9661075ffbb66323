package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// reportFixture lends a small catalog to three users:
// Alice borrows Dune twice and Emma once, Bob borrows Dune once and keeps it
// past its due date, Carol never borrows.
type reportFixture struct {
	mgr                *LibraryManager
	clock              *testClock
	alice, bob, carol  int64
	dune, emma, hobbit int64
}

func newReportFixture(t *testing.T) reportFixture {
	t.Helper()
	ctx := context.Background()
	clock := &testClock{now: days(30)}
	mgr := newManager(t, withClock(clock))

	f := reportFixture{mgr: mgr, clock: clock}
	f.alice = givenUser(t, mgr, "Alice")
	f.bob = givenUser(t, mgr, "Bob")
	f.carol = givenUser(t, mgr, "Carol")

	var err error
	f.dune, err = mgr.AddBook(ctx, "Dune", "Frank Herbert", nil, 2)
	require.NoError(t, err)
	f.emma, err = mgr.AddBook(ctx, "Emma", "Jane Austen", nil, 1)
	require.NoError(t, err)
	f.hobbit, err = mgr.AddBook(ctx, "The Hobbit", "J.R.R. Tolkien", nil, 1)
	require.NoError(t, err)

	first, err := mgr.Borrow(ctx, f.alice, f.dune, day0)
	require.NoError(t, err)
	_, err = mgr.Return(ctx, first, days(20)) // 6 days late
	require.NoError(t, err)

	_, err = mgr.Borrow(ctx, f.alice, f.dune, days(25))
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, f.alice, f.emma, days(35))
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, f.bob, f.dune, days(2)) // due day 16, still out
	require.NoError(t, err)
	return f
}

func TestReportBorrowedAndAvailable(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)
	r := f.mgr.Reports()

	borrowed, err := r.BorrowedBooks(ctx)
	require.NoError(t, err)
	require.Len(t, borrowed, 3)
	assert.Equal(t, "Bob", borrowed[0].UserName, "ordered by due date")
	assert.Equal(t, "Dune", borrowed[0].Title)
	assert.Equal(t, "Frank Herbert", borrowed[0].Author)

	available, err := r.AvailableBooks(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, f.hobbit, available[0].ID)

	catalog, err := r.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, catalog, 3)
	users, err := r.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestReportHistories(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)
	r := f.mgr.Reports()

	dune, err := r.BookHistory(ctx, f.dune)
	require.NoError(t, err)
	require.Len(t, dune, 3)
	assert.Equal(t, "Alice", dune[0].UserName)
	assert.Equal(t, LoanReturned, dune[0].Status)
	assert.Equal(t, "Bob", dune[1].UserName)

	alice, err := r.UserHistory(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, alice, 3)
	assert.Equal(t, []string{"Dune", "Dune", "Emma"}, []string{alice[0].Title, alice[1].Title, alice[2].Title})

	carol, err := r.UserHistory(ctx, f.carol)
	require.NoError(t, err)
	assert.Empty(t, carol)

	_, err = r.BookHistory(ctx, 999)
	assert.ErrorIs(t, err, ErrBookNotFound)
	_, err = r.UserHistory(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestReportUserCounts(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)
	r := f.mgr.Reports()

	active, err := r.UsersWithActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, UserLoanCount{UserID: f.alice, Name: "Alice", ActiveLoans: 2}, active[0])
	assert.Equal(t, UserLoanCount{UserID: f.bob, Name: "Bob", ActiveLoans: 1}, active[1])

	ranked, err := r.UsersByBorrowCount(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, UserLoanCount{UserID: f.alice, Name: "Alice", Loans: 3, ActiveLoans: 2}, ranked[0])
	assert.Equal(t, UserLoanCount{UserID: f.bob, Name: "Bob", Loans: 1, ActiveLoans: 1}, ranked[1])
	assert.Equal(t, UserLoanCount{UserID: f.carol, Name: "Carol", Loans: 0, ActiveLoans: 0}, ranked[2])
}

func TestReportMostBorrowed(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	counts, err := f.mgr.Reports().MostBorrowed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, BorrowCount{Title: "Dune", Author: "Frank Herbert", Loans: 3}, counts[0])
	assert.Equal(t, BorrowCount{Title: "Emma", Author: "Jane Austen", Loans: 1}, counts[1])

	top, err := f.mgr.Reports().MostBorrowed(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, top, 1)
}

func TestReportLoanCountsByMonth(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	// day0 is 2024-03-01; loans fall on Mar 1, Mar 3, Mar 26 and Apr 5.
	counts, err := f.mgr.Reports().LoanCountsByMonth(ctx, days(0), days(70))
	require.NoError(t, err)
	assert.Equal(t, []PeriodCount{
		{Month: "2024-03", Loans: 3},
		{Month: "2024-04", Loans: 1},
		{Month: "2024-05", Loans: 0},
	}, counts)

	_, err = f.mgr.Reports().LoanCountsByMonth(ctx, days(5), days(1))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestReportTopDebtors(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	// Today is day 30: Bob's loan is 14 days overdue, Alice settled 6 days
	// and her open loans are not yet due.
	debtors, err := f.mgr.Reports().TopDebtors(ctx, 0)
	require.NoError(t, err)
	require.Len(t, debtors, 2)
	assert.Equal(t, Debtor{UserID: f.bob, Name: "Bob", Projected: 700, Total: 700}, debtors[0])
	assert.Equal(t, Debtor{UserID: f.alice, Name: "Alice", Settled: 300, Total: 300}, debtors[1])

	top, err := f.mgr.Reports().TopDebtors(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, f.bob, top[0].UserID)
}

func TestReportAvailabilityAudit(t *testing.T) {
	ctx := context.Background()
	f := newReportFixture(t)

	mismatches, err := f.mgr.Reports().AvailabilityAudit(ctx)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	_, err = f.mgr.Database().db.ExecContext(ctx, `UPDATE books SET available_copies = 1 WHERE id = ?`, f.emma)
	require.NoError(t, err)

	mismatches, err = f.mgr.Reports().AvailabilityAudit(ctx)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, AvailabilityMismatch{BookID: f.emma, TotalCopies: 1, AvailableCopies: 1, ActiveLoans: 1}, mismatches[0])
}
