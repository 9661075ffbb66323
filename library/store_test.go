package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func titles(books []Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.Title
	}
	return out
}

func TestAddBookValidation(t *testing.T) {
	ctx := context.Background()
	books := tempDB(t).Stores().Books

	_, err := books.AddBook(ctx, "  ", "Author", nil, 1)
	assert.ErrorIs(t, err, ErrInvalidBook)
	_, err = books.AddBook(ctx, "Title", "", nil, 1)
	assert.ErrorIs(t, err, ErrInvalidBook)
	_, err = books.AddBook(ctx, "Title", "Author", nil, -1)
	assert.ErrorIs(t, err, ErrInvalidBook)

	id, err := books.AddBook(ctx, " Dune ", "Frank Herbert", intPtr(1965), 3)
	require.NoError(t, err)
	b, err := books.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Dune", b.Title)
	require.NotNil(t, b.Year)
	assert.Equal(t, 1965, *b.Year)
	assert.Equal(t, 3, b.TotalCopies)
	assert.Equal(t, 3, b.AvailableCopies)
}

func TestSearchBooks(t *testing.T) {
	ctx := context.Background()
	books := tempDB(t).Stores().Books

	for _, b := range []struct {
		title, author string
		year          *int
		copies        int
	}{
		{"The Hobbit", "J.R.R. Tolkien", intPtr(1937), 1},
		{"The Two Towers", "J.R.R. Tolkien", intPtr(1954), 0},
		{"Emma", "Jane Austen", intPtr(1815), 2},
		{"Anonymous Tract", "Unknown", nil, 1},
	} {
		_, err := books.AddBook(ctx, b.title, b.author, b.year, b.copies)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		filter BookFilter
		want   []string
	}{
		{"everything", BookFilter{}, []string{"Anonymous Tract", "Emma", "The Hobbit", "The Two Towers"}},
		{"title substring ignores case", BookFilter{Title: "the"}, []string{"The Hobbit", "The Two Towers"}},
		{"author exact ignores case", BookFilter{Author: "jane austen"}, []string{"Emma"}},
		{"author substring does not match", BookFilter{Author: "Tolkien"}, []string{}},
		{"year range", BookFilter{YearFrom: intPtr(1900), YearTo: intPtr(1950)}, []string{"The Hobbit"}},
		{"inverted year range", BookFilter{YearFrom: intPtr(1960), YearTo: intPtr(1900)}, []string{"The Hobbit", "The Two Towers"}},
		{"available only", BookFilter{Author: "J.R.R. Tolkien", AvailableOnly: true}, []string{"The Hobbit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := books.SearchBooks(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestAdjustAvailabilityBounds(t *testing.T) {
	ctx := context.Background()
	books := tempDB(t).Stores().Books
	id, err := books.AddBook(ctx, "Dune", "Frank Herbert", nil, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, books.AdjustAvailability(ctx, id, +1), ErrAvailabilityOverflow)
	require.NoError(t, books.AdjustAvailability(ctx, id, -1))
	assert.ErrorIs(t, books.AdjustAvailability(ctx, id, -1), ErrNoCopiesAvailable)
	assert.ErrorIs(t, books.AdjustAvailability(ctx, 999, -1), ErrBookNotFound)

	b, err := books.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, b.AvailableCopies)
}

func TestAddUser(t *testing.T) {
	ctx := context.Background()
	users := tempDB(t).Stores().Users

	_, err := users.AddUser(ctx, "   ", nil, nil)
	assert.ErrorIs(t, err, ErrInvalidUser)

	id, err := users.AddUser(ctx, "Alice", strPtr(" 555-0100 "), strPtr("alice@example.com"))
	require.NoError(t, err)
	u, err := users.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "555-0100", *u.Phone)

	_, err = users.AddUser(ctx, "Alice Again", nil, strPtr("alice@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)

	// Blank and missing emails never collide.
	_, err = users.AddUser(ctx, "Bob", nil, strPtr(""))
	require.NoError(t, err)
	_, err = users.AddUser(ctx, "Carol", nil, nil)
	require.NoError(t, err)
}

func TestFindUsers(t *testing.T) {
	ctx := context.Background()
	users := tempDB(t).Stores().Users

	a, err := users.AddUser(ctx, "Alice", strPtr("555-0100"), strPtr("alice@example.com"))
	require.NoError(t, err)
	b, err := users.AddUser(ctx, "Bob", strPtr("555-0100"), nil)
	require.NoError(t, err)

	found, err := users.FindByPhone(ctx, "555-0100")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, a, found[0].ID)
	assert.Equal(t, b, found[1].ID)

	none, err := users.FindByPhone(ctx, "555-0199")
	require.NoError(t, err)
	assert.Empty(t, none)

	u, err := users.FindByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, a, u.ID)

	_, err = users.FindByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	users := tempDB(t).Stores().Users

	id, err := users.AddUser(ctx, "Alice", strPtr("555-0100"), strPtr("alice@example.com"))
	require.NoError(t, err)
	_, err = users.AddUser(ctx, "Bob", nil, strPtr("bob@example.com"))
	require.NoError(t, err)

	require.NoError(t, users.UpdateUser(ctx, id, UserUpdate{Name: strPtr("Alice Smith"), Phone: strPtr("")}))
	u, err := users.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", u.Name)
	assert.Nil(t, u.Phone, "empty phone clears it")
	require.NotNil(t, u.Email)
	assert.Equal(t, "alice@example.com", *u.Email, "untouched field is kept")

	assert.ErrorIs(t, users.UpdateUser(ctx, id, UserUpdate{Email: strPtr("bob@example.com")}), ErrEmailTaken)
	assert.ErrorIs(t, users.UpdateUser(ctx, id, UserUpdate{Name: strPtr(" ")}), ErrInvalidUser)
	assert.ErrorIs(t, users.UpdateUser(ctx, 999, UserUpdate{Name: strPtr("Ghost")}), ErrUserNotFound)
	assert.ErrorIs(t, users.UpdateUser(ctx, 999, UserUpdate{}), ErrUserNotFound)
	assert.NoError(t, users.UpdateUser(ctx, id, UserUpdate{}))
}

func TestListUsersOrderedByName(t *testing.T) {
	ctx := context.Background()
	users := tempDB(t).Stores().Users
	for _, name := range []string{"Carol", "Alice", "Bob"} {
		_, err := users.AddUser(ctx, name, nil, nil)
		require.NoError(t, err)
	}

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Alice", list[0].Name)
	assert.Equal(t, "Bob", list[1].Name)
	assert.Equal(t, "Carol", list[2].Name)
}
