package main

import (
	"context"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"library-ledger/library"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Read-only reports over the catalog and the ledger",
	}

	var limit int
	withLimit := func(c *cobra.Command) *cobra.Command {
		c.Flags().IntVar(&limit, "limit", 10, "maximum rows, 0 for all")
		return c
	}

	var from, to string
	withPeriod := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD")
		c.Flags().StringVar(&to, "to", "", "last day YYYY-MM-DD")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
		return c
	}
	period := func() (time.Time, time.Time, error) {
		start, err := library.ParseDate(from)
		if err != nil {
			return time.Time{}, time.Time{}, usagef("--from must be YYYY-MM-DD, got %q", from)
		}
		end, err := library.ParseDate(to)
		if err != nil {
			return time.Time{}, time.Time{}, usagef("--to must be YYYY-MM-DD, got %q", to)
		}
		return start, end, nil
	}

	reports := func() *library.Reports { return a.manager.Reports() }

	cmd.AddCommand(
		reportCmd("catalog", "All books", func(cmd *cobra.Command, _ []string) error {
			books, err := reports().Catalog(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.books(books)
		}),
		reportCmd("users", "All users", func(cmd *cobra.Command, _ []string) error {
			users, err := reports().Users(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.users(users)
		}),
		reportCmd("available", "Books with a free copy", func(cmd *cobra.Command, _ []string) error {
			books, err := reports().AvailableBooks(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.books(books)
		}),
		reportCmd("borrowed", "Loans currently out", func(cmd *cobra.Command, _ []string) error {
			loans, err := reports().BorrowedBooks(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.loanDetails(loans)
		}),
		reportCmd("active-users", "Users holding at least one copy", func(cmd *cobra.Command, _ []string) error {
			users, err := reports().UsersWithActiveLoans(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.userLoanCounts(users)
		}),
		reportCmd("borrow-counts", "Users ranked by number of loans", func(cmd *cobra.Command, _ []string) error {
			users, err := reports().UsersByBorrowCount(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.userLoanCounts(users)
		}),
		withLimit(reportCmd("most-borrowed", "Titles ranked by number of loans", func(cmd *cobra.Command, _ []string) error {
			counts, err := reports().MostBorrowed(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printer.borrowCounts(counts)
		})),
		withLimit(reportCmd("top-debtors", "Users ranked by current debt", func(cmd *cobra.Command, _ []string) error {
			debtors, err := reports().TopDebtors(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printer.debtors(debtors)
		})),
		withPeriod(reportCmd("monthly", "Loans opened per month", func(cmd *cobra.Command, _ []string) error {
			start, end, err := period()
			if err != nil {
				return err
			}
			counts, err := reports().LoanCountsByMonth(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return a.printer.periodCounts(counts)
		})),
		withPeriod(reportCmd("period", "Loans opened between two dates", func(cmd *cobra.Command, _ []string) error {
			start, end, err := period()
			if err != nil {
				return err
			}
			loans, err := a.manager.LoansInPeriod(cmd.Context(), start, end)
			if err != nil {
				return err
			}
			return a.printer.loans(loans)
		})),
		reportCmd("audit", "Books whose copy counts disagree with their loans", func(cmd *cobra.Command, _ []string) error {
			rows, err := reports().AvailabilityAudit(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.mismatches(rows)
		}),
		historyCmd(a, "book-history BOOK_ID", "Every loan of one book", "book id", (*library.Reports).BookHistory),
		historyCmd(a, "user-history USER_ID", "Every loan of one user", "user id", (*library.Reports).UserHistory),
	)
	return cmd
}

type historyFunc func(*library.Reports, context.Context, int64) ([]library.LoanDetail, error)

func historyCmd(a *app, use, short, idName string, history historyFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(idName, args[0])
			if err != nil {
				return err
			}
			loans, err := history(a.manager.Reports(), cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printer.loanDetails(loans)
		},
	}
}

func reportCmd(use, short string, runE func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{Use: use, Short: short, Args: cobra.NoArgs, RunE: runE}
}

// ------------------ Report renderers ------------------

func (p *printer) userLoanCounts(users []library.UserLoanCount) error {
	if p.asJSON {
		return p.json(users)
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			strconv.FormatInt(u.UserID, 10), u.Name, strconv.Itoa(u.Loans), strconv.Itoa(u.ActiveLoans),
		})
	}
	return p.table([]string{"ID", "NAME", "LOANS", "ACTIVE"}, rows, 1)
}

func (p *printer) borrowCounts(counts []library.BorrowCount) error {
	if p.asJSON {
		return p.json(counts)
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Title, c.Author, strconv.Itoa(c.Loans)})
	}
	return p.table([]string{"TITLE", "AUTHOR", "LOANS"}, rows, 0, 1)
}

func (p *printer) periodCounts(counts []library.PeriodCount) error {
	if p.asJSON {
		return p.json(counts)
	}
	rows := make([][]string, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, []string{c.Month, strconv.Itoa(c.Loans)})
	}
	return p.table([]string{"MONTH", "LOANS"}, rows)
}

func (p *printer) debtors(debtors []library.Debtor) error {
	if p.asJSON {
		return p.json(debtors)
	}
	rows := make([][]string, 0, len(debtors))
	for _, d := range debtors {
		rows = append(rows, []string{
			strconv.FormatInt(d.UserID, 10), d.Name, d.Settled.String(), d.Projected.String(), d.Total.String(),
		})
	}
	return p.table([]string{"ID", "NAME", "SETTLED", "PROJECTED", "TOTAL"}, rows, 1)
}

func (p *printer) mismatches(rows []library.AvailabilityMismatch) error {
	if p.asJSON {
		return p.json(rows)
	}
	out := make([][]string, 0, len(rows))
	for _, m := range rows {
		out = append(out, []string{
			strconv.FormatInt(m.BookID, 10), strconv.Itoa(m.TotalCopies),
			strconv.Itoa(m.AvailableCopies), strconv.Itoa(m.ActiveLoans),
		})
	}
	return p.table([]string{"BOOK", "TOTAL", "AVAILABLE", "ACTIVE LOANS"}, out)
}
