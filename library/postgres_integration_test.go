//go:build integration

package library

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// newPostgresManager starts a throwaway PostgreSQL and returns a manager on it.
func newPostgresManager(t *testing.T, opts ManagerOptions, dbOpts ...Option) *LibraryManager {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("library"),
		tcpostgres.WithUsername("library"),
		tcpostgres.WithPassword("library"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewPostgresDatabase(ctx, dsn, dbOpts...)
	require.NoError(t, err)

	mgr, err := NewManager(db, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestPostgresLedger(t *testing.T) {
	ctx := context.Background()
	clock := &testClock{now: days(17)}
	mgr := newPostgresManager(t, ManagerOptions{
		Policy: &Policy{LoanPeriodDays: 14, DailyRate: 200},
		Clock:  clock.Now,
	})

	version, err := mgr.Database().SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	userID := givenUser(t, mgr, "Alice")
	bookID := givenBook(t, mgr, "Dune", 1)

	loanID, err := mgr.Borrow(ctx, userID, bookID, day0)
	require.NoError(t, err)
	_, err = mgr.Borrow(ctx, userID, bookID, day0)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	before, err := mgr.CurrentDebt(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Cents(600), before.Projected)

	receipt, err := mgr.Return(ctx, loanID, days(17))
	require.NoError(t, err)
	assert.Equal(t, 3, receipt.LateDays)
	assert.Equal(t, Cents(600), receipt.DebtDelta)

	_, err = mgr.Return(ctx, loanID, days(18))
	assert.ErrorIs(t, err, ErrLoanAlreadyReturned)

	after, err := mgr.CurrentDebt(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Cents(600), after.Settled)
	assert.Equal(t, before.Total, after.Total)

	loans, err := mgr.LoansInPeriod(ctx, day0, day0)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.True(t, loans[0].BorrowDate.Equal(day0))
	assertLedgerConsistent(t, mgr)
}

func TestPostgresConcurrentBorrowOfLastCopy(t *testing.T) {
	ctx := context.Background()
	mgr := newPostgresManager(t, ManagerOptions{})
	bookID := givenBook(t, mgr, "Rare", 1)

	const borrowers = 16
	users := make([]int64, borrowers)
	for i := range users {
		users[i] = givenUser(t, mgr, "Reader")
	}

	var wg sync.WaitGroup
	errs := make([]error, borrowers)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.Borrow(ctx, users[i], bookID, day0)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, ErrNoCopiesAvailable)
	}
	assert.Equal(t, 1, successes)
	assertLedgerConsistent(t, mgr)
}

func TestPostgresLockTimeoutIsContention(t *testing.T) {
	ctx := context.Background()
	mgr := newPostgresManager(t, ManagerOptions{}, WithLockTimeout(100*time.Millisecond))
	userID := givenUser(t, mgr, "Alice")
	bookID := givenBook(t, mgr, "Dune", 1)

	holdCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- mgr.Database().RunInTx(holdCtx, func(s Stores) error {
			if _, err := s.Books.GetBook(holdCtx, bookID); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	_, err := mgr.Ledger().Borrow(ctx, userID, bookID, day0)
	assert.ErrorIs(t, err, ErrContention)

	close(release)
	require.NoError(t, <-done)
}
