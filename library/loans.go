package library

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// LoanStore persists the loan history. Rows are inserted active and updated
// once, to returned; nothing else ever changes them.
type LoanStore struct {
	store
}

const selectLoan = `SELECT id, user_id, book_id, borrow_date, due_date, return_date, status FROM loans`

// Insert records a new loan. A second active loan for the same user and book
// fails with ErrDuplicateLoan.
func (s *LoanStore) Insert(ctx context.Context, l Loan) error {
	_, err := s.exec(ctx,
		`INSERT INTO loans (id, user_id, book_id, borrow_date, due_date, return_date, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.UserID, l.BookID, l.BorrowDate, l.DueDate, l.ReturnDate, string(l.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateLoan
		}
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// Get returns the loan or ErrLoanNotFound.
func (s *LoanStore) Get(ctx context.Context, id uuid.UUID) (*Loan, error) {
	var l Loan
	if err := s.get(ctx, &l, selectLoan+` WHERE id = ?`+s.lockSuffix(), id); err != nil {
		return nil, notFound("get loan", err, ErrLoanNotFound)
	}
	return &l, nil
}

// MarkReturned moves an active loan to returned. It reports false when the
// loan was not active, leaving the row untouched.
func (s *LoanStore) MarkReturned(ctx context.Context, id uuid.UUID, returnDate time.Time) (bool, error) {
	n, err := s.exec(ctx,
		`UPDATE loans SET status = ?, return_date = ? WHERE id = ? AND status = ?`,
		string(LoanReturned), returnDate, id, string(LoanActive))
	if err != nil {
		return false, fmt.Errorf("mark loan returned: %w", err)
	}
	return n == 1, nil
}

// ActiveForUser returns the user's loans still out, oldest first.
func (s *LoanStore) ActiveForUser(ctx context.Context, userID int64) ([]Loan, error) {
	loans := []Loan{}
	err := s.selectRows(ctx, &loans,
		selectLoan+` WHERE user_id = ? AND status = ? ORDER BY borrow_date, id`, userID, string(LoanActive))
	if err != nil {
		return nil, fmt.Errorf("active loans for user: %w", err)
	}
	return loans, nil
}

// HistoryForUser returns every loan the user ever took, oldest first.
func (s *LoanStore) HistoryForUser(ctx context.Context, userID int64) ([]Loan, error) {
	loans := []Loan{}
	err := s.selectRows(ctx, &loans, selectLoan+` WHERE user_id = ? ORDER BY borrow_date, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("loan history for user: %w", err)
	}
	return loans, nil
}

// InPeriod returns loans borrowed between start and end inclusive.
func (s *LoanStore) InPeriod(ctx context.Context, start, end time.Time) ([]Loan, error) {
	loans := []Loan{}
	err := s.selectRows(ctx, &loans,
		selectLoan+` WHERE borrow_date >= ? AND borrow_date <= ? ORDER BY borrow_date, id`, start, end)
	if err != nil {
		return nil, fmt.Errorf("loans in period: %w", err)
	}
	return loans, nil
}

// Active returns every loan still out, oldest first.
func (s *LoanStore) Active(ctx context.Context) ([]Loan, error) {
	loans := []Loan{}
	err := s.selectRows(ctx, &loans, selectLoan+` WHERE status = ? ORDER BY borrow_date, id`, string(LoanActive))
	if err != nil {
		return nil, fmt.Errorf("active loans: %w", err)
	}
	return loans, nil
}

func (s *LoanStore) count(ctx context.Context, op, where string, args ...any) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM loans WHERE `+where, args...); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (s *LoanStore) CountActiveForUser(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, "count active loans for user", `user_id = ? AND status = ?`, userID, string(LoanActive))
}

func (s *LoanStore) CountActiveForBook(ctx context.Context, bookID int64) (int, error) {
	return s.count(ctx, "count active loans for book", `book_id = ? AND status = ?`, bookID, string(LoanActive))
}

func (s *LoanStore) CountForUser(ctx context.Context, userID int64) (int, error) {
	return s.count(ctx, "count loans for user", `user_id = ?`, userID)
}

func (s *LoanStore) CountForBook(ctx context.Context, bookID int64) (int, error) {
	return s.count(ctx, "count loans for book", `book_id = ?`, bookID)
}

// HoldsActive reports whether the user currently has the book out.
func (s *LoanStore) HoldsActive(ctx context.Context, userID, bookID int64) (bool, error) {
	n, err := s.count(ctx, "check active loan", `user_id = ? AND book_id = ? AND status = ?`,
		userID, bookID, string(LoanActive))
	return n > 0, err
}
