package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/shelfguard/internal/rate"
)

// AppendAttempt registra el intento y actualiza el contador de fallos
// consecutivos en una sola transacción. El upsert con RETURNING hace atómico
// el incrementar-y-leer: dos fallos concurrentes ven valores distintos.
func (s *Store) AppendAttempt(ctx context.Context, a rate.Attempt) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO login_attempts (identifier, source_ip, success, attempted_at)
		VALUES ($1, $2, $3, $4)
	`, a.Identifier, a.SourceIP, a.Success, a.At); err != nil {
		return 0, err
	}

	fails := 0
	if a.Success {
		if _, err := tx.Exec(ctx, `
			INSERT INTO account_lockouts (account, consecutive_failures)
			VALUES ($1, 0)
			ON CONFLICT (account) DO UPDATE SET consecutive_failures = 0
		`, a.Account); err != nil {
			return 0, err
		}
	} else {
		err := tx.QueryRow(ctx, `
			INSERT INTO account_lockouts (account, consecutive_failures)
			VALUES ($1, 1)
			ON CONFLICT (account)
			DO UPDATE SET consecutive_failures = account_lockouts.consecutive_failures + 1
			RETURNING consecutive_failures
		`, a.Account).Scan(&fails)
		if err != nil {
			return 0, err
		}
	}
	return fails, tx.Commit(ctx)
}

func (s *Store) CountSince(ctx context.Context, identifier string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM login_attempts
		WHERE identifier = $1 AND attempted_at >= $2
	`, identifier, since).Scan(&n)
	return n, err
}

func (s *Store) OldestSince(ctx context.Context, identifier string, since time.Time) (time.Time, bool, error) {
	var oldest *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT MIN(attempted_at) FROM login_attempts
		WHERE identifier = $1 AND attempted_at >= $2
	`, identifier, since).Scan(&oldest)
	if err != nil {
		return time.Time{}, false, err
	}
	if oldest == nil {
		return time.Time{}, false, nil
	}
	return *oldest, true, nil
}

func (s *Store) ClearAttempts(ctx context.Context, identifier string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE identifier = $1`, identifier)
	return err
}

func (s *Store) SetLockout(ctx context.Context, account string, until time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account_lockouts (account, consecutive_failures, locked_until)
		VALUES ($1, 0, $2)
		ON CONFLICT (account) DO UPDATE SET locked_until = EXCLUDED.locked_until
	`, account, until)
	return err
}

func (s *Store) GetLockout(ctx context.Context, account string) (time.Time, bool, error) {
	var until *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT locked_until FROM account_lockouts WHERE account = $1`, account).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		// sin fila = sin lockout
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	if until == nil {
		return time.Time{}, false, nil
	}
	return *until, true, nil
}

func (s *Store) ClearLockout(ctx context.Context, account string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE account_lockouts
		SET locked_until = NULL, consecutive_failures = 0
		WHERE account = $1
	`, account)
	return err
}

// PruneAttempts borra intentos más viejos que `olderThan`. Lo corre el loop de
// mantenimiento del serve.
func (s *Store) PruneAttempts(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM login_attempts WHERE attempted_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
