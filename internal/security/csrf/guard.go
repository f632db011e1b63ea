// Package csrf emite y valida tokens anti-forgery single-use atados a una
// sesión. El scope es la clave csrf estable del Record, no el ID rotante.
package csrf

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/cache"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/observability/metrics"
	tokens "github.com/dropDatabas3/shelfguard/internal/security/token"
)

// ErrValidationFailed cubre token faltante, vencido o que no matchea. El
// caller recibe siempre este error genérico; el detalle va al audit log.
var ErrValidationFailed = errors.New("csrf: validation failed")

// Guard guarda un token por sesión. Emitir pisa el anterior; validar lo
// consume, matchee o no: ningún token valida dos veces.
type Guard struct {
	cache cache.Client
	audit *audit.Log
	ttl   time.Duration
}

func NewGuard(c cache.Client, auditLog *audit.Log, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Guard{cache: c, audit: auditLog, ttl: ttl}
}

func tokenKey(scope string) string { return "csrf:" + tokens.SHA256Base64URL(scope) }

// Issue genera un token de 256 bits scoped a la sesión.
func (g *Guard) Issue(ctx context.Context, scope string) (string, error) {
	tok, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	if err := g.cache.Set(ctx, tokenKey(scope), []byte(tok), g.ttl); err != nil {
		return "", err
	}
	return tok, nil
}

// Validate compara en tiempo constante y consume el token almacenado pase lo
// que pase. Un fallo se escala como violación de seguridad.
func (g *Guard) Validate(ctx context.Context, scope, candidate, sourceIP, userAgent string) error {
	stored, err := g.cache.GetDel(ctx, tokenKey(scope))
	if err != nil || subtle.ConstantTimeCompare(stored, []byte(candidate)) != 1 {
		metrics.CSRFFailures.Inc()
		g.audit.Record(ctx, audit.Event{
			Type:      audit.TypeCSRFValidationFailed,
			SourceIP:  sourceIP,
			UserAgent: userAgent,
		})
		logger.From(ctx).Warn("csrf validation failed",
			logger.Component("csrf"),
			logger.SourceIP(sourceIP),
		)
		return ErrValidationFailed
	}
	return nil
}
