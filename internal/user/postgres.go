package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RuslanFatikhov/CoffeeLog/internal/auth"
	"github.com/RuslanFatikhov/CoffeeLog/internal/db"
)

// PostgresStore binds identities to users in Postgres. Atomicity under
// concurrent logins for the same subject comes from the unique constraint
// on external_subject plus a single-statement upsert; there is no
// check-then-insert window.
type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const upsertUserQuery = `
	INSERT INTO users (external_subject, email, display_name, avatar_url)
	VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
	ON CONFLICT (external_subject) DO UPDATE SET
		email        = EXCLUDED.email,
		display_name = EXCLUDED.display_name,
		avatar_url   = EXCLUDED.avatar_url,
		updated_at   = NOW()
	RETURNING id, external_subject, email,
		COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		created_at, updated_at
`

func (s *PostgresStore) Upsert(ctx context.Context, identity *auth.Identity) (*User, error) {
	if identity == nil {
		return nil, errors.New("user: identity is nil")
	}
	if identity.Subject == "" || identity.Email == "" {
		return nil, auth.ErrIncompleteClaims
	}

	var u User
	err := s.db.QueryRowContext(ctx, upsertUserQuery,
		identity.Subject,
		identity.Email,
		identity.DisplayName,
		identity.AvatarURL,
	).Scan(
		&u.ID,
		&u.ExternalSubject,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("user: upsert %q: %w", identity.Subject, err)
	}

	return &u, nil
}

const getUserQuery = `
	SELECT id, external_subject, email,
		COALESCE(display_name, ''), COALESCE(avatar_url, ''),
		created_at, updated_at
	FROM users
	WHERE id = $1
`

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, getUserQuery, id).Scan(
		&u.ID,
		&u.ExternalSubject,
		&u.Email,
		&u.DisplayName,
		&u.AvatarURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user: get %q: %w", id, err)
	}
	return &u, nil
}
