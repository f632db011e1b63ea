package pg

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/shelfguard/internal/auth"
)

const userColumns = `id, identifier, password_hash, two_factor_enabled,
	COALESCE(two_factor_secret, ''), COALESCE(pending_two_factor_secret, ''), locked, admin`

func scanUser(row pgx.Row) (*auth.User, error) {
	var u auth.User
	var id uuid.UUID
	err := row.Scan(&id, &u.Identifier, &u.PasswordHash, &u.TwoFactorEnabled,
		&u.TwoFactorSecret, &u.PendingTwoFactorSecret, &u.Locked, &u.Admin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.ID = id.String()
	return &u, nil
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM accounts WHERE identifier = $1`, identifier)
	return scanUser(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (*auth.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, auth.ErrUserNotFound
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM accounts WHERE id = $1`, uid)
	return scanUser(row)
}

// CreateAccount da de alta una cuenta (bootstrap/seed). Retorna el ID.
func (s *Store) CreateAccount(ctx context.Context, identifier, passwordHash string, admin bool) (string, error) {
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, `
		INSERT INTO accounts (identifier, password_hash, admin)
		VALUES ($1, $2, $3)
		RETURNING id
	`, identifier, passwordHash, admin).Scan(&id)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *Store) SetPendingTwoFactorSecret(ctx context.Context, accountID, secret string) error {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return auth.ErrUserNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET pending_two_factor_secret = $2, updated_at = now()
		WHERE id = $1
	`, uid, secret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *Store) ActivateTwoFactor(ctx context.Context, accountID string) error {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return auth.ErrUserNotFound
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET two_factor_enabled = TRUE,
		    two_factor_secret = pending_two_factor_secret,
		    pending_two_factor_secret = NULL,
		    updated_at = now()
		WHERE id = $1 AND pending_two_factor_secret IS NOT NULL
	`, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNoPendingEnrollment
	}
	return nil
}

func (s *Store) DisableTwoFactor(ctx context.Context, accountID string) error {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return auth.ErrUserNotFound
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE accounts
		SET two_factor_enabled = FALSE,
		    two_factor_secret = NULL,
		    pending_two_factor_secret = NULL,
		    updated_at = now()
		WHERE id = $1
	`, uid)
	return err
}

func (s *Store) SetLastLogin(ctx context.Context, accountID string, at time.Time) error {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return auth.ErrUserNotFound
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE accounts SET last_login_at = $2, updated_at = now() WHERE id = $1`, uid, at)
	return err
}
