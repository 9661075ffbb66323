package library

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func days(n int) time.Time { return day0.AddDate(0, 0, n) }

// testClock is a settable source of today for projected debt.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newManager(t *testing.T, opts ...func(*ManagerOptions)) *LibraryManager {
	t.Helper()
	o := ManagerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	mgr, err := NewManager(tempDB(t), o)
	require.NoError(t, err, "mgr")
	return mgr
}

func withPolicy(p Policy) func(*ManagerOptions) {
	return func(o *ManagerOptions) { o.Policy = &p }
}

func withClock(c *testClock) func(*ManagerOptions) {
	return func(o *ManagerOptions) { o.Clock = c.Now }
}

func givenUser(t *testing.T, mgr *LibraryManager, name string) int64 {
	t.Helper()
	id, err := mgr.AddUser(context.Background(), name, nil, nil)
	require.NoError(t, err)
	return id
}

func givenBook(t *testing.T, mgr *LibraryManager, title string, copies int) int64 {
	t.Helper()
	id, err := mgr.AddBook(context.Background(), title, "Some Author", nil, copies)
	require.NoError(t, err)
	return id
}

func TestNewLibraryManager(t *testing.T) {
	mgr, err := NewLibraryManager(filepath.Join(t.TempDir(), "lib.db"))
	require.NoError(t, err)
	defer mgr.Close()

	assert.Equal(t, DefaultPolicy(), mgr.Ledger().Policy())
	assert.NotNil(t, mgr.Reports())
	assert.Equal(t, DialectSQLite, mgr.Database().Dialect())
}

func TestNewManagerRejectsInvalidPolicy(t *testing.T) {
	_, err := NewManager(tempDB(t), ManagerOptions{Policy: &Policy{LoanPeriodDays: 0}})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestDeleteBook(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	userID := givenUser(t, mgr, "Alice")
	unused := givenBook(t, mgr, "Unused", 1)
	lent := givenBook(t, mgr, "Lent", 1)

	require.NoError(t, mgr.DeleteBook(ctx, unused))
	_, err := mgr.GetBook(ctx, unused)
	assert.ErrorIs(t, err, ErrBookNotFound)

	loanID, err := mgr.Borrow(ctx, userID, lent, day0)
	require.NoError(t, err)
	_, err = mgr.Return(ctx, loanID, days(1))
	require.NoError(t, err)

	assert.ErrorIs(t, mgr.DeleteBook(ctx, lent), ErrBookHasHistory)
	assert.ErrorIs(t, mgr.DeleteBook(ctx, 999), ErrBookNotFound)
}

func TestDeleteUser(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	idle := givenUser(t, mgr, "Idle")
	borrower := givenUser(t, mgr, "Borrower")
	bookID := givenBook(t, mgr, "Book", 1)

	require.NoError(t, mgr.DeleteUser(ctx, idle))
	_, err := mgr.GetUser(ctx, idle)
	assert.ErrorIs(t, err, ErrUserNotFound)

	loanID, err := mgr.Borrow(ctx, borrower, bookID, day0)
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.DeleteUser(ctx, borrower), ErrUserHasActiveLoans)

	_, err = mgr.Return(ctx, loanID, days(2))
	require.NoError(t, err)
	assert.ErrorIs(t, mgr.DeleteUser(ctx, borrower), ErrUserHasHistory)
}

func TestLoansByPhone(t *testing.T) {
	ctx := context.Background()
	mgr := newManager(t)
	phone := "555-0100"
	alice, err := mgr.AddUser(ctx, "Alice", &phone, nil)
	require.NoError(t, err)
	first := givenBook(t, mgr, "First", 1)
	second := givenBook(t, mgr, "Second", 1)

	loanID, err := mgr.Borrow(ctx, alice, first, day0)
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, alice, second, days(1))
	require.NoError(t, err)
	_, err = mgr.Return(ctx, loanID, days(3))
	require.NoError(t, err)

	all, err := mgr.LoansByPhone(ctx, phone, false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "First", all[0].Title)
	assert.Equal(t, "Alice", all[0].UserName)

	active, err := mgr.LoansByPhone(ctx, phone, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Second", active[0].Title)

	_, err = mgr.LoansByPhone(ctx, "555-9999", false)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestManagerRetriesContention(t *testing.T) {
	ctx := context.Background()
	db := tempDB(t, WithLockTimeout(20*time.Millisecond))
	mgr, err := NewManager(db, ManagerOptions{
		Retry: []RetryOption{WithBaseDelay(30 * time.Millisecond), WithMaxAttempts(10)},
	})
	require.NoError(t, err)
	userID := givenUser(t, mgr, "Alice")
	bookID := givenBook(t, mgr, "Book", 1)

	holdCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- db.RunInTx(holdCtx, func(Stores) error {
			close(started)
			time.Sleep(60 * time.Millisecond)
			return nil
		})
	}()
	<-started

	_, err = mgr.Borrow(ctx, userID, bookID, day0)
	require.NoError(t, err, "borrow should succeed once the writer is released")
	require.NoError(t, <-done)
}
