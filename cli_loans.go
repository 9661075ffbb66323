package main

import (
	"github.com/spf13/cobra"

	"library-ledger/library"
)

func newBorrowCmd(a *app) *cobra.Command {
	var (
		userID, bookID int64
		when           string
	)
	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Lend one copy of a book to a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			borrowDate, err := a.dateOrToday(when)
			if err != nil {
				return err
			}
			id, err := a.manager.Borrow(cmd.Context(), userID, bookID, borrowDate)
			if err != nil {
				return err
			}
			due := a.manager.Ledger().Policy().DueDate(borrowDate)
			if a.printer.asJSON {
				return a.printer.json(map[string]string{"loan_id": id.String(), "due_date": date(due)})
			}
			return a.printer.message("Loan %s created, due %s", id, date(due))
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "borrower's user id")
	cmd.Flags().Int64Var(&bookID, "book", 0, "book id")
	cmd.Flags().StringVar(&when, "date", "", "borrow date YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("book")
	return cmd
}

func newReturnCmd(a *app) *cobra.Command {
	var when string
	cmd := &cobra.Command{
		Use:   "return LOAN_ID",
		Short: "Close a loan and charge any late fee",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			returnDate, err := a.dateOrToday(when)
			if err != nil {
				return err
			}
			receipt, err := a.manager.Return(cmd.Context(), loanID, returnDate)
			if err != nil {
				return err
			}
			if a.printer.asJSON {
				return a.printer.json(receipt)
			}
			if receipt.LateDays == 0 {
				return a.printer.message("Loan %s returned on time", receipt.LoanID)
			}
			return a.printer.message("Loan %s returned %d days late, %s added to debt",
				receipt.LoanID, receipt.LateDays, receipt.DebtDelta)
		},
	}
	cmd.Flags().StringVar(&when, "date", "", "return date YYYY-MM-DD (default today)")
	return cmd
}

func newLoansCmd(a *app) *cobra.Command {
	var (
		userID int64
		phone  string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "Show a user's loans, active only unless --all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch {
			case cmd.Flags().Changed("phone"):
				loans, err := a.manager.LoansByPhone(ctx, phone, !all)
				if err != nil {
					return err
				}
				return a.printer.loanDetails(loans)
			case cmd.Flags().Changed("user"):
				var (
					loans []library.Loan
					err   error
				)
				if all {
					loans, err = a.manager.LoanHistory(ctx, userID)
				} else {
					loans, err = a.manager.ActiveLoans(ctx, userID)
				}
				if err != nil {
					return err
				}
				return a.printer.loans(loans)
			default:
				return usagef("one of --user or --phone is required")
			}
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number of the user")
	cmd.Flags().BoolVar(&all, "all", false, "include returned loans")
	cmd.MarkFlagsMutuallyExclusive("user", "phone")
	return cmd
}

func newAvailableCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available BOOK_ID",
		Short: "Report whether a copy of a book is free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book id", args[0])
			if err != nil {
				return err
			}
			ok, err := a.manager.IsBookAvailable(cmd.Context(), id)
			if err != nil {
				return err
			}
			if a.printer.asJSON {
				return a.printer.json(map[string]any{"book_id": id, "available": ok})
			}
			if ok {
				return a.printer.message("Book %d is available", id)
			}
			return a.printer.message("Book %d has no free copies", id)
		},
	}
}

func newDebtCmd(a *app) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "debt",
		Short: "Show what a user owes, including overdue loans still out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := a.manager.CurrentDebt(cmd.Context(), userID)
			if err != nil {
				return err
			}
			return a.printer.debt(d)
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
