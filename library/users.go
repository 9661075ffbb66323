package library

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
)

// UserStore is the directory of borrowers.
type UserStore struct {
	store
}

const selectUser = `SELECT id, name, phone, email FROM users`

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// nullable turns a nil pointer into an untyped nil for the query builder.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// AddUser inserts a user and returns its id. Email, when given, must be unique.
func (s *UserStore) AddUser(ctx context.Context, name string, phone, email *string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}

	var id int64
	err := s.get(ctx, &id, `INSERT INTO users (name, phone, email) VALUES (?, ?, ?) RETURNING id`,
		name, normalizeOptional(phone), normalizeOptional(email))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, fmt.Errorf("add user: %w", err)
	}
	return id, nil
}

// GetUser returns the user or ErrUserNotFound.
func (s *UserStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := s.get(ctx, &u, selectUser+` WHERE id = ?`+s.lockSuffix(), id); err != nil {
		return nil, notFound("get user", err, ErrUserNotFound)
	}
	return &u, nil
}

func (s *UserStore) UserExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := s.get(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id); err != nil {
		return false, fmt.Errorf("user exists: %w", err)
	}
	return exists, nil
}

// FindByPhone returns every user registered with phone.
func (s *UserStore) FindByPhone(ctx context.Context, phone string) ([]User, error) {
	users := []User{}
	if err := s.selectRows(ctx, &users, selectUser+` WHERE phone = ? ORDER BY id`, strings.TrimSpace(phone)); err != nil {
		return nil, fmt.Errorf("find user by phone: %w", err)
	}
	return users, nil
}

// FindByEmail returns the user with email or ErrUserNotFound.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := s.get(ctx, &u, selectUser+` WHERE email = ?`, strings.TrimSpace(email)); err != nil {
		return nil, notFound("find user by email", err, ErrUserNotFound)
	}
	return &u, nil
}

// ListUsers returns all users ordered by name.
func (s *UserStore) ListUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	if err := s.selectRows(ctx, &users, selectUser+` ORDER BY name, id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of upd. An empty phone or email clears it.
func (s *UserStore) UpdateUser(ctx context.Context, id int64, upd UserUpdate) error {
	rec := goqu.Record{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return fmt.Errorf("%w: name must not be empty", ErrInvalidUser)
		}
		rec["name"] = name
	}
	if upd.Phone != nil {
		rec["phone"] = nullable(normalizeOptional(upd.Phone))
	}
	if upd.Email != nil {
		rec["email"] = nullable(normalizeOptional(upd.Email))
	}

	if len(rec) == 0 {
		ok, err := s.UserExists(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}
		return nil
	}

	query, args, err := s.builder.Update("users").Set(rec).Where(goqu.C("id").Eq(id)).Prepared(true).ToSQL()
	if err != nil {
		return fmt.Errorf("build update user: %w", err)
	}
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// DeleteUser removes a user. Callers check for loans first.
func (s *UserStore) DeleteUser(ctx context.Context, id int64) error {
	n, err := s.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
