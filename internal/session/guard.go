package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/cache"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/observability/metrics"
	tokens "github.com/dropDatabas3/shelfguard/internal/security/token"
)

// Guard opera sesiones sobre un cache inyectado (memoria o Redis).
type Guard struct {
	cache cache.Client
	audit *audit.Log
	cfg   Config
	now   func() time.Time
}

func NewGuard(c cache.Client, auditLog *audit.Log, cfg Config) *Guard {
	cfg.applyDefaults()
	return &Guard{cache: c, audit: auditLog, cfg: cfg, now: time.Now}
}

func sessionKey(id string) string { return "sess:" + tokens.SHA256Base64URL(id) }

// Start crea la sesión y retorna el ID opaco para el cookie.
func (g *Guard) Start(ctx context.Context, accountID string, fp Fingerprint, sourceIP string) (string, *Record, error) {
	id, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", nil, err
	}
	csrfKey, err := tokens.GenerateOpaqueToken(16)
	if err != nil {
		return "", nil, err
	}
	now := g.now().UTC()
	rec := &Record{
		AccountID:       accountID,
		CreatedAt:       now,
		LastActivityAt:  now,
		LastRotationAt:  now,
		FingerprintHash: fp.Hash(),
		CsrfKey:         csrfKey,
	}
	if err := g.save(ctx, id, rec); err != nil {
		return "", nil, err
	}
	logger.From(ctx).Debug("session started",
		logger.Component("session"),
		logger.AccountID(accountID),
		logger.SessionID(tokens.SHA256Base64URL(id)),
	)
	return id, rec, nil
}

// Touch valida y refresca la sesión en cada request autenticado:
//
//  1. idle timeout vencido o lifetime absoluto superado ⇒ destruir
//  2. fingerprint distinto ⇒ destruir + evento de seguridad
//  3. rotación vencida ⇒ nuevo ID (mitiga fixation), el viejo muere ya
//
// newID es "" si el ID sigue siendo el mismo.
func (g *Guard) Touch(ctx context.Context, id string, fp Fingerprint, sourceIP string) (rec *Record, newID string, err error) {
	rec, err = g.load(ctx, id)
	if err != nil {
		return nil, "", err
	}
	now := g.now().UTC()

	if now.Sub(rec.LastActivityAt) > g.cfg.IdleTimeout || now.Sub(rec.CreatedAt) > g.cfg.MaxLifetime {
		_ = g.Destroy(ctx, id)
		metrics.SessionsDestroyed.WithLabelValues("idle_timeout").Inc()
		g.audit.Record(ctx, audit.Event{
			Type:      audit.TypeSessionExpired,
			SubjectID: rec.AccountID,
			SourceIP:  sourceIP,
			UserAgent: fp.UserAgent,
		})
		return nil, "", ErrExpired
	}

	if fp.Hash() != rec.FingerprintHash {
		_ = g.Destroy(ctx, id)
		metrics.SessionsDestroyed.WithLabelValues("fingerprint_mismatch").Inc()
		g.audit.Record(ctx, audit.Event{
			Type:      audit.TypeSessionFingerprintMismatch,
			SubjectID: rec.AccountID,
			SourceIP:  sourceIP,
			UserAgent: fp.UserAgent,
		})
		logger.From(ctx).Warn("session fingerprint mismatch, session destroyed",
			logger.Component("session"),
			logger.AccountID(rec.AccountID),
			logger.SourceIP(sourceIP),
		)
		return nil, "", ErrFingerprintMismatch
	}

	rec.LastActivityAt = now

	if now.Sub(rec.LastRotationAt) > g.cfg.RotationInterval {
		rotated, rerr := tokens.GenerateOpaqueToken(32)
		if rerr != nil {
			return nil, "", rerr
		}
		rec.LastRotationAt = now
		if err := g.save(ctx, rotated, rec); err != nil {
			return nil, "", err
		}
		_ = g.cache.Delete(ctx, sessionKey(id))
		g.audit.Record(ctx, audit.Event{
			Type:      audit.TypeSessionRotated,
			SubjectID: rec.AccountID,
			SourceIP:  sourceIP,
			UserAgent: fp.UserAgent,
		})
		return rec, rotated, nil
	}

	if err := g.save(ctx, id, rec); err != nil {
		return nil, "", err
	}
	return rec, "", nil
}

// Destroy elimina todo el estado server-side. Expirar el cookie de transporte
// es responsabilidad del caller.
func (g *Guard) Destroy(ctx context.Context, id string) error {
	return g.cache.Delete(ctx, sessionKey(id))
}

func (g *Guard) load(ctx context.Context, id string) (*Record, error) {
	b, err := g.cache.Get(ctx, sessionKey(id))
	if cache.IsNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (g *Guard) save(ctx context.Context, id string, rec *Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	// TTL = idle timeout; cada touch lo renueva (sliding)
	return g.cache.Set(ctx, sessionKey(id), b, g.cfg.IdleTimeout)
}
