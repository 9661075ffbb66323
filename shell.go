package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"library-ledger/library"
)

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt for the front desk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := &shell{app: a, sc: bufio.NewScanner(a.in)}
			return s.loop(cmd.Context())
		},
	}
}

type shell struct {
	*app
	sc *bufio.Scanner
}

func (s *shell) loop(ctx context.Context) error {
	fmt.Fprintln(s.out, "Welcome to the library loan desk!")
	fmt.Fprintln(s.out, "Available commands:")
	fmt.Fprintln(s.out, "  Books: add book, list books, search book, available")
	fmt.Fprintln(s.out, "  Users: add user, list users, find user")
	fmt.Fprintln(s.out, "  Circulation: borrow, return, loans, debt")
	fmt.Fprintln(s.out, "  System: exit")

	for {
		fmt.Fprint(s.out, "\n> ")
		if !s.sc.Scan() {
			return s.sc.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		var err error
		switch strings.TrimSpace(s.sc.Text()) {
		case "":
			continue
		case "add book":
			err = s.handleAddBook(ctx)
		case "list books":
			err = s.handleListBooks(ctx)
		case "search book":
			err = s.handleSearchBooks(ctx)
		case "available":
			err = s.handleAvailable(ctx)
		case "add user":
			err = s.handleAddUser(ctx)
		case "list users":
			err = s.handleListUsers(ctx)
		case "find user":
			err = s.handleFindUser(ctx)
		case "borrow":
			err = s.handleBorrow(ctx)
		case "return":
			err = s.handleReturn(ctx)
		case "loans":
			err = s.handleLoans(ctx)
		case "debt":
			err = s.handleDebt(ctx)
		case "exit", "quit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		default:
			fmt.Fprintln(s.out, "Unknown command. Type one of the available commands listed above.")
		}
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
		}
	}
}

// prompt reads one trimmed line; ok is false once input is exhausted.
func (s *shell) prompt(label string) (string, bool) {
	fmt.Fprint(s.out, label)
	if !s.sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.sc.Text()), true
}

func (s *shell) promptID(label string) (int64, bool, error) {
	raw, ok := s.prompt(label)
	if !ok {
		return 0, false, nil
	}
	id, err := parseID(strings.TrimSuffix(strings.ToLower(label), ": "), raw)
	return id, true, err
}

func (s *shell) handleAddBook(ctx context.Context) error {
	title, ok := s.prompt("Title: ")
	if !ok {
		return nil
	}
	author, ok := s.prompt("Author: ")
	if !ok {
		return nil
	}
	yearStr, ok := s.prompt("Year (optional): ")
	if !ok {
		return nil
	}
	copiesStr, ok := s.prompt("Copies [1]: ")
	if !ok {
		return nil
	}

	var year *int
	if yearStr != "" {
		y, err := strconv.Atoi(yearStr)
		if err != nil {
			return usagef("invalid year %q", yearStr)
		}
		year = &y
	}
	copies := 1
	if copiesStr != "" {
		n, err := parseCount(copiesStr)
		if err != nil {
			return err
		}
		copies = n
	}

	id, err := s.manager.AddBook(ctx, title, author, year, copies)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Added book ID %d\n", id)
	return nil
}

func (s *shell) handleListBooks(ctx context.Context) error {
	books, err := s.manager.ListBooks(ctx)
	if err != nil {
		return err
	}
	return s.printer.books(books)
}

func (s *shell) handleSearchBooks(ctx context.Context) error {
	title, ok := s.prompt("Title contains (optional): ")
	if !ok {
		return nil
	}
	author, ok := s.prompt("Author (optional): ")
	if !ok {
		return nil
	}
	books, err := s.manager.SearchBooks(ctx, library.BookFilter{Title: title, Author: author})
	if err != nil {
		return err
	}
	return s.printer.books(books)
}

func (s *shell) handleAvailable(ctx context.Context) error {
	id, ok, err := s.promptID("Book ID: ")
	if !ok || err != nil {
		return err
	}
	available, err := s.manager.IsBookAvailable(ctx, id)
	if err != nil {
		return err
	}
	if available {
		fmt.Fprintf(s.out, "Book %d is available\n", id)
	} else {
		fmt.Fprintf(s.out, "Book %d has no free copies\n", id)
	}
	return nil
}

func (s *shell) handleAddUser(ctx context.Context) error {
	name, ok := s.prompt("Name: ")
	if !ok {
		return nil
	}
	phone, ok := s.prompt("Phone (optional): ")
	if !ok {
		return nil
	}
	email, ok := s.prompt("Email (optional): ")
	if !ok {
		return nil
	}
	id, err := s.manager.AddUser(ctx, name, blankToNil(phone), blankToNil(email))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Added user '%s' with ID %d\n", name, id)
	return nil
}

func (s *shell) handleListUsers(ctx context.Context) error {
	users, err := s.manager.ListUsers(ctx)
	if err != nil {
		return err
	}
	return s.printer.users(users)
}

func (s *shell) handleFindUser(ctx context.Context) error {
	query, ok := s.prompt("Phone or email: ")
	if !ok {
		return nil
	}
	if strings.Contains(query, "@") {
		u, err := s.manager.FindUserByEmail(ctx, query)
		if err != nil {
			return err
		}
		return s.printer.users([]library.User{*u})
	}
	users, err := s.manager.FindUsersByPhone(ctx, query)
	if err != nil {
		return err
	}
	return s.printer.users(users)
}

func (s *shell) handleBorrow(ctx context.Context) error {
	userID, ok, err := s.promptID("User ID: ")
	if !ok || err != nil {
		return err
	}
	bookID, ok, err := s.promptID("Book ID: ")
	if !ok || err != nil {
		return err
	}
	when, ok := s.prompt("Date YYYY-MM-DD (blank for today): ")
	if !ok {
		return nil
	}
	borrowDate, err := s.dateOrToday(when)
	if err != nil {
		return err
	}

	loanID, err := s.manager.Borrow(ctx, userID, bookID, borrowDate)
	if err != nil {
		return err
	}
	due := s.manager.Ledger().Policy().DueDate(borrowDate)
	fmt.Fprintf(s.out, "Loan %s created, due %s\n", loanID, date(due))
	return nil
}

func (s *shell) handleReturn(ctx context.Context) error {
	raw, ok := s.prompt("Loan ID: ")
	if !ok {
		return nil
	}
	loanID, err := parseLoanID(raw)
	if err != nil {
		return err
	}
	when, ok := s.prompt("Date YYYY-MM-DD (blank for today): ")
	if !ok {
		return nil
	}
	returnDate, err := s.dateOrToday(when)
	if err != nil {
		return err
	}

	receipt, err := s.manager.Return(ctx, loanID, returnDate)
	if err != nil {
		return err
	}
	if receipt.LateDays == 0 {
		fmt.Fprintln(s.out, "Returned on time. Thank you!")
	} else {
		fmt.Fprintf(s.out, "Returned %d days late, %s added to debt\n", receipt.LateDays, receipt.DebtDelta)
	}
	return nil
}

func (s *shell) handleLoans(ctx context.Context) error {
	userID, ok, err := s.promptID("User ID: ")
	if !ok || err != nil {
		return err
	}
	loans, err := s.manager.ActiveLoans(ctx, userID)
	if err != nil {
		return err
	}
	return s.printer.loans(loans)
}

func (s *shell) handleDebt(ctx context.Context) error {
	userID, ok, err := s.promptID("User ID: ")
	if !ok || err != nil {
		return err
	}
	d, err := s.manager.CurrentDebt(ctx, userID)
	if err != nil {
		return err
	}
	return s.printer.debt(d)
}

func blankToNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
