// Package audit implementa el registro append-only de eventos de seguridad.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/observability/metrics"
)

// Tipos de evento. El contrato es estable: dashboards y alertas filtran por
// estos strings.
const (
	TypeLoginSuccess               = "LOGIN_SUCCESS"
	TypeLoginFailed                = "LOGIN_FAILED"
	TypeRateLimitExceeded          = "RATE_LIMIT_EXCEEDED"
	TypeTwoFactorFailed            = "TWO_FACTOR_FAILED"
	TypeTwoFactorEnabled           = "TWO_FACTOR_ENABLED"
	TypeTwoFactorDisabled          = "TWO_FACTOR_DISABLED"
	TypeBackupCodesRegenerated     = "BACKUP_CODES_REGENERATED"
	TypeCSRFValidationFailed       = "CSRF_VALIDATION_FAILED"
	TypeSessionFingerprintMismatch = "SESSION_FINGERPRINT_MISMATCH"
	TypeSessionRotated             = "SESSION_ROTATED"
	TypeSessionExpired             = "SESSION_EXPIRED"
	TypeLogout                     = "LOGOUT"
)

// Event es un evento de seguridad inmutable.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	SubjectID string         `json:"subject_id"`
	SourceIP  string         `json:"source_ip"`
	UserAgent string         `json:"user_agent"`
	Timestamp time.Time      `json:"timestamp"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Store es el destino append-only (memoria, Postgres, stream externo).
type Store interface {
	Append(ctx context.Context, ev Event) error
	Recent(ctx context.Context, n int) ([]Event, error)
}

// Log escribe eventos sin fallar jamás la operación del caller: un sink roto
// se reporta por log + métrica y nada más.
type Log struct {
	store Store
}

func New(store Store) *Log {
	return &Log{store: store}
}

// Record completa ID/Timestamp y apendea el evento.
func (l *Log) Record(ctx context.Context, ev Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := l.store.Append(ctx, ev); err != nil {
		metrics.AuditSinkErrors.Inc()
		logger.From(ctx).Error("audit sink append failed",
			logger.Component("audit"),
			logger.EventType(ev.Type),
			logger.Err(err),
		)
	}
}

// Recent retorna los últimos n eventos, del más nuevo al más viejo.
func (l *Log) Recent(ctx context.Context, n int) ([]Event, error) {
	if n <= 0 {
		n = 50
	}
	return l.store.Recent(ctx, n)
}
