package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
)

// BookStore is the catalog: book records and their copy counts.
type BookStore struct {
	store
}

// BookFilter narrows SearchBooks. Zero values match everything.
type BookFilter struct {
	// Title matches as a case-insensitive substring.
	Title string
	// Author matches case-insensitively in full.
	Author        string
	YearFrom      *int
	YearTo        *int
	AvailableOnly bool
}

var bookColumns = []any{"id", "title", "author", "year", "total_copies", "available_copies"}

const selectBook = `SELECT id, title, author, year, total_copies, available_copies FROM books`

// AddBook inserts a book with all copies available and returns its id.
func (s *BookStore) AddBook(ctx context.Context, title, author string, year *int, copies int) (int64, error) {
	title, author = strings.TrimSpace(title), strings.TrimSpace(author)
	if title == "" || author == "" {
		return 0, fmt.Errorf("%w: title and author are required", ErrInvalidBook)
	}
	if copies < 0 {
		return 0, fmt.Errorf("%w: copies must not be negative, got %d", ErrInvalidBook, copies)
	}

	var id int64
	err := s.get(ctx, &id,
		`INSERT INTO books (title, author, year, total_copies, available_copies) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		title, author, year, copies, copies)
	if err != nil {
		return 0, fmt.Errorf("add book: %w", err)
	}
	return id, nil
}

// GetBook returns the book or ErrBookNotFound.
func (s *BookStore) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	if err := s.get(ctx, &b, selectBook+` WHERE id = ?`+s.lockSuffix(), id); err != nil {
		return nil, notFound("get book", err, ErrBookNotFound)
	}
	return &b, nil
}

// ListBooks returns the whole catalog ordered by id.
func (s *BookStore) ListBooks(ctx context.Context) ([]Book, error) {
	books := []Book{}
	if err := s.selectRows(ctx, &books, selectBook+` ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// SearchBooks returns books matching every set field of f, ordered by title.
// An inverted year range is swapped.
func (s *BookStore) SearchBooks(ctx context.Context, f BookFilter) ([]Book, error) {
	ds := s.builder.From("books").Select(bookColumns...)

	if t := strings.TrimSpace(f.Title); t != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("title")).Like("%" + strings.ToLower(t) + "%"))
	}
	if a := strings.TrimSpace(f.Author); a != "" {
		ds = ds.Where(goqu.Func("LOWER", goqu.C("author")).Eq(strings.ToLower(a)))
	}

	from, to := f.YearFrom, f.YearTo
	if from != nil && to != nil && *from > *to {
		from, to = to, from
	}
	if from != nil {
		ds = ds.Where(goqu.C("year").Gte(*from))
	}
	if to != nil {
		ds = ds.Where(goqu.C("year").Lte(*to))
	}
	if f.AvailableOnly {
		ds = ds.Where(goqu.C("available_copies").Gt(0))
	}

	books := []Book{}
	if err := s.selectDataset(ctx, &books, ds.Order(goqu.C("title").Asc(), goqu.C("id").Asc())); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}

// AdjustAvailability moves available_copies by delta, refusing to leave the
// range [0, total_copies]. The guard and the write are one statement.
func (s *BookStore) AdjustAvailability(ctx context.Context, id int64, delta int) error {
	n, err := s.exec(ctx,
		`UPDATE books SET available_copies = available_copies + ?
		 WHERE id = ? AND available_copies + ? >= 0 AND available_copies + ? <= total_copies`,
		delta, id, delta, delta)
	if err != nil {
		return fmt.Errorf("adjust availability: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.GetBook(ctx, id); err != nil {
		return err
	}
	if delta < 0 {
		return ErrNoCopiesAvailable
	}
	return ErrAvailabilityOverflow
}

// SetTotalCopies changes the number of copies the library owns. onLoan is
// the number of active loans for the book, read in the same transaction.
func (s *BookStore) SetTotalCopies(ctx context.Context, id int64, total, onLoan int) error {
	if total < 0 {
		return fmt.Errorf("%w: copies must not be negative, got %d", ErrInvalidBook, total)
	}
	if total < onLoan {
		return fmt.Errorf("%w: %d on loan, requested %d", ErrCopiesOnLoan, onLoan, total)
	}

	n, err := s.exec(ctx,
		`UPDATE books SET total_copies = ?, available_copies = ? WHERE id = ?`,
		total, total-onLoan, id)
	if err != nil {
		return fmt.Errorf("set total copies: %w", err)
	}
	if n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// DeleteBook removes a book. Callers check for loan history first.
func (s *BookStore) DeleteBook(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	if n == 0 {
		return ErrBookNotFound
	}
	return nil
}
