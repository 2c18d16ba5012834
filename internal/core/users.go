package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, email, name, role, created_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	return u, err
}

// EnsureUser records an authenticated identity in the users table and
// returns the stored row. A user first created by CSV import is matched by
// email and re-keyed to the identity provider's id, so an identity without
// an email is refused.
func (s *Service) EnsureUser(ctx context.Context, id uuid.UUID, email, name string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if id == uuid.Nil || email == "" {
		return User{}, fmt.Errorf("%w: identity has no user id or email", ErrValidation)
	}

	var user User
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, `
			UPDATE users SET id = $1, name = CASE WHEN $3 <> '' THEN $3 ELSE name END
			WHERE email = $2 AND id <> $1
			RETURNING `+userColumns, id, email, name))
		if err == nil {
			user = u
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("match user by email: %w", err)
		}

		u, err = upsertUser(ctx, tx, id, email, name)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

func upsertUser(ctx context.Context, q DBTX, id uuid.UUID, email, name string) (User, error) {
	u, err := scanUser(q.QueryRow(ctx, `
		INSERT INTO users (id, email, name) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
		RETURNING `+userColumns, id, email, name))
	if err != nil {
		return User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// upsertUserByEmail finds or creates a user keyed by email, for import.
func upsertUserByEmail(ctx context.Context, q DBTX, email, name string) (User, error) {
	u, err := scanUser(q.QueryRow(ctx, `
		INSERT INTO users (email, name) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE users.name END
		RETURNING `+userColumns, email, name))
	if err != nil {
		return User{}, fmt.Errorf("upsert user %s: %w", email, err)
	}
	return u, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return User{}, notFound(err, ErrUserNotFound)
	}
	return u, nil
}
