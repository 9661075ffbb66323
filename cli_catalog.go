package main

import (
	"github.com/spf13/cobra"

	"library-ledger/library"
)

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Manage the catalog",
	}
	cmd.AddCommand(newBookAddCmd(a), newBookListCmd(a), newBookSearchCmd(a), newBookCopiesCmd(a), newBookDeleteCmd(a))
	return cmd
}

func newBookAddCmd(a *app) *cobra.Command {
	var (
		title, author string
		year, copies  int
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.manager.AddBook(cmd.Context(), title, author, optionalInt(cmd, "year", year), copies)
			if err != nil {
				return err
			}
			if a.printer.asJSON {
				return a.printer.json(map[string]int64{"id": id})
			}
			return a.printer.message("Book added with ID %d", id)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "book title")
	cmd.Flags().StringVar(&author, "author", "", "book author")
	cmd.Flags().IntVar(&year, "year", 0, "publication year")
	cmd.Flags().IntVar(&copies, "copies", 1, "number of copies owned")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("author")
	return cmd
}

func newBookListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			books, err := a.manager.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.books(books)
		},
	}
}

func newBookSearchCmd(a *app) *cobra.Command {
	var (
		f        library.BookFilter
		from, to int
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find books by title, author or year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.YearFrom = optionalInt(cmd, "from-year", from)
			f.YearTo = optionalInt(cmd, "to-year", to)
			books, err := a.manager.SearchBooks(cmd.Context(), f)
			if err != nil {
				return err
			}
			return a.printer.books(books)
		},
	}
	cmd.Flags().StringVar(&f.Title, "title", "", "title contains (case-insensitive)")
	cmd.Flags().StringVar(&f.Author, "author", "", "author equals (case-insensitive)")
	cmd.Flags().IntVar(&from, "from-year", 0, "published in or after")
	cmd.Flags().IntVar(&to, "to-year", 0, "published in or before")
	cmd.Flags().BoolVar(&f.AvailableOnly, "available", false, "only books with a free copy")
	return cmd
}

func newBookCopiesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "copies BOOK_ID TOTAL",
		Short: "Change how many copies of a book the library owns",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book id", args[0])
			if err != nil {
				return err
			}
			total, err := parseCount(args[1])
			if err != nil {
				return err
			}
			if err := a.manager.SetTotalCopies(cmd.Context(), id, total); err != nil {
				return err
			}
			return a.printer.message("Book %d now has %d copies", id, total)
		},
	}
}

func newBookDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete BOOK_ID",
		Short: "Delete a book that was never lent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("book id", args[0])
			if err != nil {
				return err
			}
			if err := a.manager.DeleteBook(cmd.Context(), id); err != nil {
				return err
			}
			return a.printer.message("Book %d deleted", id)
		},
	}
}

// ------------------ Users ------------------

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage borrowers",
	}
	cmd.AddCommand(newUserAddCmd(a), newUserListCmd(a), newUserFindCmd(a), newUserUpdateCmd(a), newUserDeleteCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var name, phone, email string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := a.manager.AddUser(cmd.Context(), name,
				optionalString(cmd, "phone", phone), optionalString(cmd, "email", email))
			if err != nil {
				return err
			}
			if a.printer.asJSON {
				return a.printer.json(map[string]int64{"id": id})
			}
			return a.printer.message("User added with ID %d", id)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "full name")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&email, "email", "", "email address (unique)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.manager.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			return a.printer.users(users)
		},
	}
}

func newUserFindCmd(a *app) *cobra.Command {
	var phone, email string
	cmd := &cobra.Command{
		Use:   "find",
		Short: "Find users by phone or email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case email != "":
				u, err := a.manager.FindUserByEmail(cmd.Context(), email)
				if err != nil {
					return err
				}
				return a.printer.users([]library.User{*u})
			case phone != "":
				users, err := a.manager.FindUsersByPhone(cmd.Context(), phone)
				if err != nil {
					return err
				}
				return a.printer.users(users)
			default:
				return usagef("one of --phone or --email is required")
			}
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.MarkFlagsMutuallyExclusive("phone", "email")
	return cmd
}

func newUserUpdateCmd(a *app) *cobra.Command {
	var name, phone, email string
	cmd := &cobra.Command{
		Use:   "update USER_ID",
		Short: "Change a user's name, phone or email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			upd := library.UserUpdate{
				Name:  optionalString(cmd, "name", name),
				Phone: optionalString(cmd, "phone", phone),
				Email: optionalString(cmd, "email", email),
			}
			if err := a.manager.UpdateUser(cmd.Context(), id, upd); err != nil {
				return err
			}
			return a.printer.message("User %d updated", id)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&phone, "phone", "", "new phone, empty to clear")
	cmd.Flags().StringVar(&email, "email", "", "new email, empty to clear")
	return cmd
}

func newUserDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete USER_ID",
		Short: "Delete a user with no loans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("user id", args[0])
			if err != nil {
				return err
			}
			if err := a.manager.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			return a.printer.message("User %d deleted", id)
		},
	}
}
