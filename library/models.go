package library

import (
	"time"

	"github.com/google/uuid"
)

// Book is a catalog entry. AvailableCopies only moves through the ledger.
type Book struct {
	ID              int64  `db:"id" json:"id"`
	Title           string `db:"title" json:"title"`
	Author          string `db:"author" json:"author"`
	Year            *int   `db:"year" json:"year,omitempty"`
	TotalCopies     int    `db:"total_copies" json:"total_copies"`
	AvailableCopies int    `db:"available_copies" json:"available_copies"`
}

// User is a directory entry.
type User struct {
	ID    int64   `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Phone *string `db:"phone" json:"phone,omitempty"`
	Email *string `db:"email" json:"email,omitempty"`
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	Name  *string
	Phone *string
	Email *string
}

type LoanStatus string

const (
	LoanActive   LoanStatus = "active"
	LoanReturned LoanStatus = "returned"
)

// Loan is one checkout of one copy. It moves from active to returned exactly once.
type Loan struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	BookID     int64      `db:"book_id" json:"book_id"`
	BorrowDate time.Time  `db:"borrow_date" json:"borrow_date"`
	DueDate    time.Time  `db:"due_date" json:"due_date"`
	ReturnDate *time.Time `db:"return_date" json:"return_date,omitempty"`
	Status     LoanStatus `db:"status" json:"status"`
}

// IsActive reports whether the copy is still out.
func (l Loan) IsActive() bool { return l.Status == LoanActive }

// LoanDetail is a loan joined with the book and user it refers to.
type LoanDetail struct {
	Loan
	Title    string `db:"title" json:"title"`
	Author   string `db:"author" json:"author"`
	UserName string `db:"user_name" json:"user_name"`
}

// ReturnReceipt describes the outcome of a successful return.
type ReturnReceipt struct {
	LoanID    uuid.UUID `json:"loan_id"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	LateDays  int       `json:"late_days"`
	DebtDelta Cents     `json:"debt_delta_cents"`
}

// Accrual is one settled charge for one late return.
type Accrual struct {
	LoanID    uuid.UUID `db:"loan_id" json:"loan_id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	LateDays  int       `db:"late_days" json:"late_days"`
	Amount    Cents     `db:"amount_cents" json:"amount_cents"`
	AccruedOn time.Time `db:"accrued_on" json:"accrued_on"`
}

// DebtSummary splits what a user owes into the settled part (persisted at
// return time) and the projected part (overdue loans still out).
type DebtSummary struct {
	UserID       int64 `json:"user_id"`
	Settled      Cents `json:"settled_cents"`
	Projected    Cents `json:"projected_cents"`
	Total        Cents `json:"total_cents"`
	OverdueLoans int   `json:"overdue_loans"`
}

// CivilDate truncates t to midnight UTC of its calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the number of whole days from a to b; negative when b is before a.
// Works on Unix seconds: a time.Duration saturates at about 292 years.
func DaysBetween(a, b time.Time) int {
	return int((CivilDate(b).Unix() - CivilDate(a).Unix()) / secondsPerDay)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return CivilDate(t), nil
}
