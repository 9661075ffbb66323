package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Catalog is the part of the book store the ledger relies on.
type Catalog interface {
	GetBook(ctx context.Context, id int64) (*Book, error)
	AdjustAvailability(ctx context.Context, id int64, delta int) error
}

// Directory is the part of the user store the ledger relies on.
type Directory interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	UserExists(ctx context.Context, id int64) (bool, error)
}

// UnitOfWork hands out stores bound to one transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(s Stores) error) error
	RunInReadTx(ctx context.Context, fn func(s Stores) error) error
}

const (
	opBorrow = "borrow"
	opReturn = "return"
	opResize = "set_total_copies"
)

// Ledger records borrows and returns. Each write is one transaction that
// touches the book's copy count, the loan row and, for late returns, the
// user's debt; either all of it commits or none of it does.
type Ledger struct {
	uow     UnitOfWork
	policy  Policy
	debt    DebtCalculator
	clock   func() time.Time
	logger  Logger
	metrics *Metrics
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithClock overrides the source of "today" used for projected debt.
func WithClock(clock func() time.Time) LedgerOption {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func WithLedgerLogger(logger Logger) LedgerOption {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) LedgerOption {
	return func(l *Ledger) { l.metrics = metrics }
}

// NewLedger returns a ledger applying policy to the stores uow provides.
func NewLedger(uow UnitOfWork, policy Policy, opts ...LedgerOption) (*Ledger, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		uow:    uow,
		policy: policy,
		debt:   NewDebtCalculator(policy),
		clock:  time.Now,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Policy returns the rules the ledger applies.
func (l *Ledger) Policy() Policy { return l.policy }

// DebtCalculator returns the calculator bound to the ledger's policy.
func (l *Ledger) DebtCalculator() DebtCalculator { return l.debt }

// Today returns the ledger clock's current civil date.
func (l *Ledger) Today() time.Time { return CivilDate(l.clock()) }

func (l *Ledger) finish(op string, start time.Time, err error, attrs ...any) {
	l.metrics.ObserveDuration(op, time.Since(start))
	if err == nil {
		return
	}
	l.metrics.IncrementRejection(op, err)
	if KindOf(err) != KindUnknown {
		l.logger.Warn(logMsgRejected, append([]any{logAttrOperation, op, logAttrError, err}, attrs...)...)
	}
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// Borrow lends one copy of bookID to userID and returns the new loan's id.
// It fails with ErrUserNotFound, ErrBookNotFound or ErrNoCopiesAvailable, in
// that order of precedence, and with ErrDuplicateLoan or ErrLoanLimitReached
// when the policy forbids the loan.
func (l *Ledger) Borrow(ctx context.Context, userID, bookID int64, borrowDate time.Time) (id uuid.UUID, err error) {
	start := time.Now()
	defer func() { l.finish(opBorrow, start, err, logAttrUserID, userID, logAttrBookID, bookID) }()

	id, err = uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate loan id: %w", err)
	}

	borrowDate = CivilDate(borrowDate)
	loan := Loan{
		ID:         id,
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: borrowDate,
		DueDate:    l.policy.DueDate(borrowDate),
		Status:     LoanActive,
	}

	err = l.uow.RunInTx(ctx, func(s Stores) error {
		if err := checkBorrowable(ctx, s.Users, s.Books, userID, bookID); err != nil {
			return err
		}
		if err := l.checkPolicy(ctx, s.Loans, userID, bookID); err != nil {
			return err
		}
		if err := s.Books.AdjustAvailability(ctx, bookID, -1); err != nil {
			return err
		}
		return s.Loans.Insert(ctx, loan)
	})
	if err != nil {
		return uuid.Nil, err
	}

	l.metrics.IncrementBorrowed()
	l.logger.Info(logMsgBorrowed,
		logAttrLoanID, id, logAttrUserID, userID, logAttrBookID, bookID,
		logAttrDueDate, loan.DueDate.Format(time.DateOnly))
	return id, nil
}

// checkBorrowable verifies the user and book exist and a copy is free. The
// free-copy check is advisory; AdjustAvailability enforces it.
func checkBorrowable(ctx context.Context, users Directory, books Catalog, userID, bookID int64) error {
	if _, err := users.GetUser(ctx, userID); err != nil {
		return err
	}
	book, err := books.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	if book.AvailableCopies <= 0 {
		return ErrNoCopiesAvailable
	}
	return nil
}

func (l *Ledger) checkPolicy(ctx context.Context, loans *LoanStore, userID, bookID int64) error {
	holds, err := loans.HoldsActive(ctx, userID, bookID)
	if err != nil {
		return err
	}
	if holds {
		return ErrDuplicateLoan
	}

	if l.policy.MaxActiveLoans > 0 {
		n, err := loans.CountActiveForUser(ctx, userID)
		if err != nil {
			return err
		}
		if n >= l.policy.MaxActiveLoans {
			return fmt.Errorf("%w: %d of %d", ErrLoanLimitReached, n, l.policy.MaxActiveLoans)
		}
	}
	return nil
}

// Return closes an active loan, frees the copy and settles any late fee.
// Returning the same loan twice fails with ErrLoanAlreadyReturned.
func (l *Ledger) Return(ctx context.Context, loanID uuid.UUID, returnDate time.Time) (receipt ReturnReceipt, err error) {
	start := time.Now()
	defer func() { l.finish(opReturn, start, err, logAttrLoanID, loanID) }()

	returnDate = CivilDate(returnDate)

	err = l.uow.RunInTx(ctx, func(s Stores) error {
		loan, err := s.Loans.Get(ctx, loanID)
		if err != nil {
			return err
		}
		if !loan.IsActive() {
			return ErrLoanAlreadyReturned
		}
		if returnDate.Before(loan.BorrowDate) {
			return fmt.Errorf("%w: returned %s before borrowed %s", ErrInvalidDateRange,
				returnDate.Format(time.DateOnly), loan.BorrowDate.Format(time.DateOnly))
		}

		ok, err := s.Loans.MarkReturned(ctx, loanID, returnDate)
		if err != nil {
			return err
		}
		if !ok {
			return ErrLoanAlreadyReturned
		}
		if err := s.Books.AdjustAvailability(ctx, loan.BookID, +1); err != nil {
			return err
		}

		lateDays := l.debt.LateDays(loan.DueDate, returnDate)
		delta := l.debt.Charge(lateDays)
		if delta > 0 {
			err := l.debt.Accrue(ctx, s.Debts, Accrual{
				LoanID:    loanID,
				UserID:    loan.UserID,
				LateDays:  lateDays,
				Amount:    delta,
				AccruedOn: returnDate,
			})
			if err != nil {
				return err
			}
		}

		receipt = ReturnReceipt{
			LoanID:    loanID,
			UserID:    loan.UserID,
			BookID:    loan.BookID,
			LateDays:  lateDays,
			DebtDelta: delta,
		}
		return nil
	})
	if err != nil {
		return ReturnReceipt{}, err
	}

	l.metrics.IncrementReturned(receipt.DebtDelta)
	l.logger.Info(logMsgReturned,
		logAttrLoanID, loanID, logAttrUserID, receipt.UserID, logAttrBookID, receipt.BookID,
		logAttrLateDays, receipt.LateDays)
	if receipt.DebtDelta > 0 {
		l.logger.Info(logMsgDebtAccrued, logAttrUserID, receipt.UserID, logAttrAmount, receipt.DebtDelta.String())
	}
	return receipt, nil
}

// SetTotalCopies changes how many copies of a book the library owns. The
// available count is recomputed from the active loans in the same
// transaction; the total may not drop below the copies on loan.
func (l *Ledger) SetTotalCopies(ctx context.Context, bookID int64, total int) (err error) {
	start := time.Now()
	defer func() { l.finish(opResize, start, err, logAttrBookID, bookID) }()

	err = l.uow.RunInTx(ctx, func(s Stores) error {
		if _, err := s.Books.GetBook(ctx, bookID); err != nil {
			return err
		}
		onLoan, err := s.Loans.CountActiveForBook(ctx, bookID)
		if err != nil {
			return err
		}
		return s.Books.SetTotalCopies(ctx, bookID, total, onLoan)
	})
	if err == nil {
		l.logger.Info(logMsgCopiesEdited, logAttrBookID, bookID, logAttrTotal, total)
	}
	return err
}

// GuardUserDeletion fails unless the user can be removed from the
// directory: no active loans and no loan history.
func (l *Ledger) GuardUserDeletion(ctx context.Context, s Stores, userID int64) error {
	if _, err := s.Users.GetUser(ctx, userID); err != nil {
		return err
	}
	active, err := s.Loans.CountActiveForUser(ctx, userID)
	if err != nil {
		return err
	}
	if active > 0 {
		return ErrUserHasActiveLoans
	}
	total, err := s.Loans.CountForUser(ctx, userID)
	if err != nil {
		return err
	}
	if total > 0 {
		return ErrUserHasHistory
	}
	return nil
}

// GuardBookDeletion fails if the book was ever lent.
func (l *Ledger) GuardBookDeletion(ctx context.Context, s Stores, bookID int64) error {
	if _, err := s.Books.GetBook(ctx, bookID); err != nil {
		return err
	}
	n, err := s.Loans.CountForBook(ctx, bookID)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrBookHasHistory
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// ActiveLoansForUser returns the user's loans still out, oldest first.
func (l *Ledger) ActiveLoansForUser(ctx context.Context, userID int64) ([]Loan, error) {
	var loans []Loan
	err := l.uow.RunInReadTx(ctx, func(s Stores) error {
		if err := requireUser(ctx, s.Users, userID); err != nil {
			return err
		}
		var err error
		loans, err = s.Loans.ActiveForUser(ctx, userID)
		return err
	})
	return loans, err
}

// HistoryForUser returns every loan the user took, oldest first.
func (l *Ledger) HistoryForUser(ctx context.Context, userID int64) ([]Loan, error) {
	var loans []Loan
	err := l.uow.RunInReadTx(ctx, func(s Stores) error {
		if err := requireUser(ctx, s.Users, userID); err != nil {
			return err
		}
		var err error
		loans, err = s.Loans.HistoryForUser(ctx, userID)
		return err
	})
	return loans, err
}

// HasActiveLoans reports whether the user has any copy out.
func (l *Ledger) HasActiveLoans(ctx context.Context, userID int64) (bool, error) {
	var n int
	err := l.uow.RunInReadTx(ctx, func(s Stores) error {
		if err := requireUser(ctx, s.Users, userID); err != nil {
			return err
		}
		var err error
		n, err = s.Loans.CountActiveForUser(ctx, userID)
		return err
	})
	return n > 0, err
}

// IsBookAvailable reports whether a copy is free right now. The answer may
// be stale by the time the caller acts on it; Borrow re-checks.
func (l *Ledger) IsBookAvailable(ctx context.Context, bookID int64) (bool, error) {
	var book *Book
	err := l.uow.RunInReadTx(ctx, func(s Stores) error {
		var err error
		book, err = s.Books.GetBook(ctx, bookID)
		return err
	})
	if err != nil {
		return false, err
	}
	return book.AvailableCopies > 0, nil
}

// LoansInPeriod returns loans borrowed between start and end inclusive.
func (l *Ledger) LoansInPeriod(ctx context.Context, start, end time.Time) ([]Loan, error) {
	start, end = CivilDate(start), CivilDate(end)
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}

	var loans []Loan
	err := l.uow.RunInReadTx(ctx, func(s Stores) error {
		var err error
		loans, err = s.Loans.InPeriod(ctx, start, end)
		return err
	})
	return loans, err
}

// CurrentDebt returns what the user owes today: settled debt plus the
// projected fee on loans that are overdue and still out.
func (l *Ledger) CurrentDebt(ctx context.Context, userID int64) (DebtSummary, error) {
	now := l.Today()
	var summary DebtSummary
	err := l.uow.RunInReadTx(ctx, func(s Stores) error {
		var err error
		summary, err = l.debt.Current(ctx, s, userID, now)
		return err
	})
	return summary, err
}

func requireUser(ctx context.Context, users Directory, userID int64) error {
	ok, err := users.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}
