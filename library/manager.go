package library

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ManagerOptions configures a LibraryManager. The zero value uses the
// default policy, no logging, no metrics and the default retry schedule.
type ManagerOptions struct {
	Policy  *Policy
	Logger  Logger
	Metrics *Metrics
	Clock   func() time.Time
	Retry   []RetryOption
}

// LibraryManager is a thin wrapper over the Database, Ledger and Reports,
// keeping CLI code simple.
type LibraryManager struct {
	db      *Database
	ledger  *Ledger
	reports *Reports
	retry   []RetryOption
	logger  Logger
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath with the default policy.
func NewLibraryManager(dbPath string) (*LibraryManager, error) {
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	lm, err := NewManager(db, ManagerOptions{})
	if err != nil {
		db.Close()
		return nil, err
	}
	return lm, nil
}

// NewManager wires a manager around an open database. The manager owns db
// from here on; Close closes it.
func NewManager(db *Database, opts ManagerOptions) (*LibraryManager, error) {
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}
	logger := opts.Logger
	if logger == nil {
		logger = discardLogger()
	}

	ledger, err := NewLedger(db, policy,
		WithLedgerLogger(logger),
		WithMetrics(opts.Metrics),
		WithClock(opts.Clock),
	)
	if err != nil {
		return nil, err
	}

	retry := append([]RetryOption{WithRetryLogger(logger)}, opts.Retry...)
	return &LibraryManager{
		db:      db,
		ledger:  ledger,
		reports: NewReports(db, ledger),
		retry:   retry,
		logger:  logger,
	}, nil
}

// Close closes the underlying database.
func (lm *LibraryManager) Close() error { return lm.db.Close() }

func (lm *LibraryManager) Ledger() *Ledger     { return lm.ledger }
func (lm *LibraryManager) Reports() *Reports   { return lm.reports }
func (lm *LibraryManager) Database() *Database { return lm.db }

// ------------------ Book helpers ------------------

func (lm *LibraryManager) AddBook(ctx context.Context, title, author string, year *int, copies int) (int64, error) {
	var id int64
	err := lm.db.RunInTx(ctx, func(s Stores) error {
		var err error
		id, err = s.Books.AddBook(ctx, title, author, year, copies)
		return err
	})
	return id, err
}

func (lm *LibraryManager) GetBook(ctx context.Context, id int64) (*Book, error) {
	return lm.db.Stores().Books.GetBook(ctx, id)
}

func (lm *LibraryManager) ListBooks(ctx context.Context) ([]Book, error) {
	return lm.db.Stores().Books.ListBooks(ctx)
}

func (lm *LibraryManager) SearchBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	return lm.db.Stores().Books.SearchBooks(ctx, f)
}

func (lm *LibraryManager) SetTotalCopies(ctx context.Context, bookID int64, total int) error {
	return RetryOnContention(ctx, func(ctx context.Context) error {
		return lm.ledger.SetTotalCopies(ctx, bookID, total)
	}, lm.retry...)
}

// DeleteBook removes a book that was never lent.
func (lm *LibraryManager) DeleteBook(ctx context.Context, id int64) error {
	err := lm.db.RunInTx(ctx, func(s Stores) error {
		if err := lm.ledger.GuardBookDeletion(ctx, s, id); err != nil {
			return err
		}
		return s.Books.DeleteBook(ctx, id)
	})
	if err == nil {
		lm.logger.Info(logMsgBookDeleted, logAttrBookID, id)
	}
	return err
}

// ------------------ User helpers ------------------

func (lm *LibraryManager) AddUser(ctx context.Context, name string, phone, email *string) (int64, error) {
	var id int64
	err := lm.db.RunInTx(ctx, func(s Stores) error {
		var err error
		id, err = s.Users.AddUser(ctx, name, phone, email)
		return err
	})
	return id, err
}

func (lm *LibraryManager) GetUser(ctx context.Context, id int64) (*User, error) {
	return lm.db.Stores().Users.GetUser(ctx, id)
}

func (lm *LibraryManager) ListUsers(ctx context.Context) ([]User, error) {
	return lm.db.Stores().Users.ListUsers(ctx)
}

func (lm *LibraryManager) FindUsersByPhone(ctx context.Context, phone string) ([]User, error) {
	return lm.db.Stores().Users.FindByPhone(ctx, phone)
}

func (lm *LibraryManager) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return lm.db.Stores().Users.FindByEmail(ctx, email)
}

func (lm *LibraryManager) UpdateUser(ctx context.Context, id int64, upd UserUpdate) error {
	return lm.db.RunInTx(ctx, func(s Stores) error {
		return s.Users.UpdateUser(ctx, id, upd)
	})
}

// DeleteUser removes a user with no loans, past or present.
func (lm *LibraryManager) DeleteUser(ctx context.Context, id int64) error {
	err := lm.db.RunInTx(ctx, func(s Stores) error {
		if err := lm.ledger.GuardUserDeletion(ctx, s, id); err != nil {
			return err
		}
		return s.Users.DeleteUser(ctx, id)
	})
	if err == nil {
		lm.logger.Info(logMsgUserDeleted, logAttrUserID, id)
	}
	return err
}

// ------------------ Circulation ------------------

// Borrow lends a copy, retrying while the store reports contention.
func (lm *LibraryManager) Borrow(ctx context.Context, userID, bookID int64, borrowDate time.Time) (uuid.UUID, error) {
	var id uuid.UUID
	err := RetryOnContention(ctx, func(ctx context.Context) error {
		var err error
		id, err = lm.ledger.Borrow(ctx, userID, bookID, borrowDate)
		return err
	}, lm.retry...)
	return id, err
}

// Return closes a loan, retrying while the store reports contention.
func (lm *LibraryManager) Return(ctx context.Context, loanID uuid.UUID, returnDate time.Time) (ReturnReceipt, error) {
	var receipt ReturnReceipt
	err := RetryOnContention(ctx, func(ctx context.Context) error {
		var err error
		receipt, err = lm.ledger.Return(ctx, loanID, returnDate)
		return err
	}, lm.retry...)
	return receipt, err
}

func (lm *LibraryManager) ActiveLoans(ctx context.Context, userID int64) ([]Loan, error) {
	return lm.ledger.ActiveLoansForUser(ctx, userID)
}

func (lm *LibraryManager) LoanHistory(ctx context.Context, userID int64) ([]Loan, error) {
	return lm.ledger.HistoryForUser(ctx, userID)
}

// LoansByPhone returns the loans of every user registered with phone.
func (lm *LibraryManager) LoansByPhone(ctx context.Context, phone string, activeOnly bool) ([]LoanDetail, error) {
	users, err := lm.FindUsersByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}

	var out []LoanDetail
	for _, u := range users {
		loans, err := lm.reports.UserHistory(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		for _, l := range loans {
			if activeOnly && !l.IsActive() {
				continue
			}
			out = append(out, l)
		}
	}
	return out, nil
}

func (lm *LibraryManager) IsBookAvailable(ctx context.Context, bookID int64) (bool, error) {
	return lm.ledger.IsBookAvailable(ctx, bookID)
}

func (lm *LibraryManager) CurrentDebt(ctx context.Context, userID int64) (DebtSummary, error) {
	return lm.ledger.CurrentDebt(ctx, userID)
}

func (lm *LibraryManager) LoansInPeriod(ctx context.Context, start, end time.Time) ([]Loan, error) {
	return lm.ledger.LoansInPeriod(ctx, start, end)
}
