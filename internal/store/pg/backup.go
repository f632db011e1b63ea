package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ReplaceUnused borra los hashes sin usar e inserta la tanda nueva en una
// transacción. Los usados quedan, son parte del rastro de auditoría.
func (s *Store) ReplaceUnused(ctx context.Context, accountID string, hashes []string, at time.Time) error {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM recovery_codes WHERE account_id = $1 AND used_at IS NULL`, uid); err != nil {
		return err
	}
	var b pgx.Batch
	for _, h := range hashes {
		b.Queue(`INSERT INTO recovery_codes (account_id, code_hash, created_at) VALUES ($1, $2, $3)`,
			uid, h, at)
	}
	br := tx.SendBatch(ctx, &b)
	for range hashes {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) ListUnused(ctx context.Context, accountID string) ([]string, error) {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT code_hash FROM recovery_codes WHERE account_id = $1 AND used_at IS NULL ORDER BY id`, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// ConsumeCode es el compare-and-set: el WHERE used_at IS NULL garantiza que de
// dos requests concurrentes con el mismo código solo uno afecta la fila.
func (s *Store) ConsumeCode(ctx context.Context, accountID, hash string, at time.Time) (bool, error) {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return false, err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE recovery_codes
		SET used_at = $3
		WHERE account_id = $1 AND code_hash = $2 AND used_at IS NULL
	`, uid, hash, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CountUnused(ctx context.Context, accountID string) (int, error) {
	uid, err := uuid.Parse(accountID)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recovery_codes WHERE account_id = $1 AND used_at IS NULL`, uid).Scan(&n)
	return n, err
}
