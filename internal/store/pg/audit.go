package pg

import (
	"context"
	"encoding/json"

	"github.com/dropDatabas3/shelfguard/internal/audit"
)

// Append inserta el evento. Un error acá nunca llega al usuario final, lo
// absorbe audit.Log.
func (s *Store) Append(ctx context.Context, ev audit.Event) error {
	var detail []byte
	if len(ev.Detail) > 0 {
		b, err := json.Marshal(ev.Detail)
		if err != nil {
			return err
		}
		detail = b
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, event_type, subject_id, source_ip, user_agent, occurred_at, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ev.ID, ev.Type, ev.SubjectID, ev.SourceIP, ev.UserAgent, ev.Timestamp, detail)
	return err
}

// Recent retorna los últimos n eventos, del más nuevo al más viejo.
func (s *Store) Recent(ctx context.Context, n int) ([]audit.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, subject_id, source_ip, user_agent, occurred_at, detail
		FROM audit_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var ev audit.Event
		var detail []byte
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.SubjectID, &ev.SourceIP,
			&ev.UserAgent, &ev.Timestamp, &detail); err != nil {
			return nil, err
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &ev.Detail)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
