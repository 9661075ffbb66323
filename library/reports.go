package library

import (
	"context"
	"sort"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// Reports answers read-only questions about the catalog and the ledger.
// Every report reads one snapshot.
type Reports struct {
	db     *Database
	ledger *Ledger
}

func NewReports(db *Database, ledger *Ledger) *Reports {
	return &Reports{db: db, ledger: ledger}
}

// BorrowCount is how often one title by one author was lent.
type BorrowCount struct {
	Title  string `db:"title" json:"title"`
	Author string `db:"author" json:"author"`
	Loans  int    `db:"loans" json:"loans"`
}

// UserLoanCount is a user with their loan counts.
type UserLoanCount struct {
	UserID      int64  `db:"id" json:"user_id"`
	Name        string `db:"name" json:"name"`
	Loans       int    `db:"loans" json:"loans"`
	ActiveLoans int    `db:"active_loans" json:"active_loans"`
}

// PeriodCount is the number of loans opened in one calendar month.
type PeriodCount struct {
	Month string `json:"month"`
	Loans int    `json:"loans"`
}

// Debtor is a user with a non-zero current debt.
type Debtor struct {
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Settled   Cents  `json:"settled_cents"`
	Projected Cents  `json:"projected_cents"`
	Total     Cents  `json:"total_cents"`
}

// AvailabilityMismatch is a book whose copy counts disagree with its active loans.
type AvailabilityMismatch struct {
	BookID          int64 `db:"id" json:"book_id"`
	TotalCopies     int   `db:"total_copies" json:"total_copies"`
	AvailableCopies int   `db:"available_copies" json:"available_copies"`
	ActiveLoans     int   `db:"active_loans" json:"active_loans"`
}

func (r *Reports) read(ctx context.Context, fn func(s Stores) error) error {
	return r.db.RunInReadTx(ctx, fn)
}

func (r *Reports) loanDetails() *goqu.SelectDataset {
	return r.db.builder.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("l.user_id")))).
		Select(
			goqu.I("l.id"), goqu.I("l.user_id"), goqu.I("l.book_id"),
			goqu.I("l.borrow_date"), goqu.I("l.due_date"), goqu.I("l.return_date"), goqu.I("l.status"),
			goqu.I("b.title"), goqu.I("b.author"), goqu.I("u.name").As("user_name"),
		)
}

func (r *Reports) selectLoanDetails(ctx context.Context, ds *goqu.SelectDataset) ([]LoanDetail, error) {
	loans := []LoanDetail{}
	err := r.read(ctx, func(s Stores) error {
		return s.Loans.selectDataset(ctx, &loans, ds)
	})
	return loans, err
}

// Catalog lists every book.
func (r *Reports) Catalog(ctx context.Context) ([]Book, error) {
	return r.db.Stores().Books.ListBooks(ctx)
}

// Users lists every user.
func (r *Reports) Users(ctx context.Context) ([]User, error) {
	return r.db.Stores().Users.ListUsers(ctx)
}

// AvailableBooks lists books with at least one free copy.
func (r *Reports) AvailableBooks(ctx context.Context) ([]Book, error) {
	return r.db.Stores().Books.SearchBooks(ctx, BookFilter{AvailableOnly: true})
}

// BorrowedBooks lists the loans currently out with their book and borrower.
func (r *Reports) BorrowedBooks(ctx context.Context) ([]LoanDetail, error) {
	ds := r.loanDetails().
		Where(goqu.I("l.status").Eq(string(LoanActive))).
		Order(goqu.I("l.due_date").Asc(), goqu.I("l.id").Asc())
	return r.selectLoanDetails(ctx, ds)
}

// BookHistory lists every loan of one book, oldest first.
func (r *Reports) BookHistory(ctx context.Context, bookID int64) ([]LoanDetail, error) {
	if _, err := r.db.Stores().Books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	ds := r.loanDetails().
		Where(goqu.I("l.book_id").Eq(bookID)).
		Order(goqu.I("l.borrow_date").Asc(), goqu.I("l.id").Asc())
	return r.selectLoanDetails(ctx, ds)
}

// UserHistory lists every loan of one user, oldest first.
func (r *Reports) UserHistory(ctx context.Context, userID int64) ([]LoanDetail, error) {
	if _, err := r.db.Stores().Users.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	ds := r.loanDetails().
		Where(goqu.I("l.user_id").Eq(userID)).
		Order(goqu.I("l.borrow_date").Asc(), goqu.I("l.id").Asc())
	return r.selectLoanDetails(ctx, ds)
}

// UsersWithActiveLoans lists users holding at least one copy.
func (r *Reports) UsersWithActiveLoans(ctx context.Context) ([]UserLoanCount, error) {
	ds := r.db.builder.From(goqu.T("users").As("u")).
		Join(goqu.T("loans").As("l"), goqu.On(goqu.I("l.user_id").Eq(goqu.I("u.id")))).
		Select(goqu.I("u.id"), goqu.I("u.name"), goqu.COUNT(goqu.I("l.id")).As("active_loans")).
		Where(goqu.I("l.status").Eq(string(LoanActive))).
		GroupBy(goqu.I("u.id"), goqu.I("u.name")).
		Order(goqu.I("u.name").Asc(), goqu.I("u.id").Asc())

	users := []UserLoanCount{}
	err := r.read(ctx, func(s Stores) error {
		return s.Users.selectDataset(ctx, &users, ds)
	})
	return users, err
}

// UsersByBorrowCount ranks every user, including those who never borrowed,
// by how many loans they took.
func (r *Reports) UsersByBorrowCount(ctx context.Context) ([]UserLoanCount, error) {
	active := goqu.Case().
		When(goqu.I("l.status").Eq(string(LoanActive)), goqu.L("1")).
		Else(goqu.L("0"))

	ds := r.db.builder.From(goqu.T("users").As("u")).
		LeftJoin(goqu.T("loans").As("l"), goqu.On(goqu.I("l.user_id").Eq(goqu.I("u.id")))).
		Select(
			goqu.I("u.id"), goqu.I("u.name"),
			goqu.COUNT(goqu.I("l.id")).As("loans"),
			goqu.COALESCE(goqu.SUM(active), goqu.L("0")).As("active_loans"),
		).
		GroupBy(goqu.I("u.id"), goqu.I("u.name")).
		Order(goqu.COUNT(goqu.I("l.id")).Desc(), goqu.I("u.name").Asc(), goqu.I("u.id").Asc())

	users := []UserLoanCount{}
	err := r.read(ctx, func(s Stores) error {
		return s.Users.selectDataset(ctx, &users, ds)
	})
	return users, err
}

// MostBorrowed ranks titles by loan count. Copies recorded as separate
// books with the same title and author count together. limit <= 0 means all.
func (r *Reports) MostBorrowed(ctx context.Context, limit int) ([]BorrowCount, error) {
	ds := r.db.builder.From(goqu.T("loans").As("l")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("l.book_id")))).
		Select(goqu.I("b.title"), goqu.I("b.author"), goqu.COUNT("*").As("loans")).
		GroupBy(goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.COUNT("*").Desc(), goqu.I("b.title").Asc(), goqu.I("b.author").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	counts := []BorrowCount{}
	err := r.read(ctx, func(s Stores) error {
		return s.Books.selectDataset(ctx, &counts, ds)
	})
	return counts, err
}

// LoanCountsByMonth counts loans opened per calendar month between start
// and end inclusive. Months without loans are reported as zero.
func (r *Reports) LoanCountsByMonth(ctx context.Context, start, end time.Time) ([]PeriodCount, error) {
	loans, err := r.ledger.LoansInPeriod(ctx, start, end)
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, l := range loans {
		counts[l.BorrowDate.Format("2006-01")]++
	}

	var out []PeriodCount
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m := first; !m.After(CivilDate(end)); m = m.AddDate(0, 1, 0) {
		key := m.Format("2006-01")
		out = append(out, PeriodCount{Month: key, Loans: counts[key]})
	}
	return out, nil
}

// TopDebtors ranks users by current debt, settled plus projected as of the
// ledger's today. limit <= 0 means all.
func (r *Reports) TopDebtors(ctx context.Context, limit int) ([]Debtor, error) {
	calc := r.ledger.DebtCalculator()
	now := r.ledger.Today()

	var debtors []Debtor
	err := r.read(ctx, func(s Stores) error {
		settled, err := s.Debts.SettledTotals(ctx)
		if err != nil {
			return err
		}
		active, err := s.Loans.Active(ctx)
		if err != nil {
			return err
		}

		byUser := map[int64][]Loan{}
		for _, l := range active {
			byUser[l.UserID] = append(byUser[l.UserID], l)
		}

		users, err := s.Users.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			projected, _ := calc.Project(byUser[u.ID], now)
			total := settled[u.ID] + projected
			if total == 0 {
				continue
			}
			debtors = append(debtors, Debtor{
				UserID:    u.ID,
				Name:      u.Name,
				Settled:   settled[u.ID],
				Projected: projected,
				Total:     total,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(debtors, func(i, j int) bool {
		if debtors[i].Total != debtors[j].Total {
			return debtors[i].Total > debtors[j].Total
		}
		return debtors[i].UserID < debtors[j].UserID
	})
	if limit > 0 && len(debtors) > limit {
		debtors = debtors[:limit]
	}
	return debtors, nil
}

// AvailabilityAudit returns every book where available copies plus active
// loans does not equal total copies. A healthy ledger returns nothing.
func (r *Reports) AvailabilityAudit(ctx context.Context) ([]AvailabilityMismatch, error) {
	ds := r.db.builder.From(goqu.T("books").As("b")).
		LeftJoin(goqu.T("loans").As("l"), goqu.On(
			goqu.I("l.book_id").Eq(goqu.I("b.id")),
			goqu.I("l.status").Eq(string(LoanActive)),
		)).
		Select(goqu.I("b.id"), goqu.I("b.total_copies"), goqu.I("b.available_copies"),
			goqu.COUNT(goqu.I("l.id")).As("active_loans")).
		GroupBy(goqu.I("b.id"), goqu.I("b.total_copies"), goqu.I("b.available_copies")).
		Having(goqu.L(`"b"."available_copies" + COUNT("l"."id") <> "b"."total_copies"`)).
		Order(goqu.I("b.id").Asc())

	mismatches := []AvailabilityMismatch{}
	err := r.read(ctx, func(s Stores) error {
		return s.Books.selectDataset(ctx, &mismatches, ds)
	})
	return mismatches, err
}
