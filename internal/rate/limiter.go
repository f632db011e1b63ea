// Package rate implementa el rate limiting de login con ventana deslizante y
// lockout por fallos consecutivos.
package rate

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/observability/metrics"
)

// ErrStoreUnavailable indica que el backing store no pudo consultarse.
// La política es fail-closed: ante este error se deniega el intento.
var ErrStoreUnavailable = errors.New("rate: store unavailable")

// Attempt es un intento de login registrado.
type Attempt struct {
	Identifier string // cuenta + dirección de origen
	Account    string // clave del lockout (solo cuenta)
	SourceIP   string
	At         time.Time
	Success    bool
}

// Store es el backing store compartido entre instancias.
//
// AppendAttempt debe ser atómico: el incremento del contador de fallos
// consecutivos y su lectura ocurren en una sola operación, para que dos
// requests concurrentes no crucen juntos el umbral de lockout.
type Store interface {
	// AppendAttempt registra el intento y retorna los fallos consecutivos
	// acumulados de la cuenta (0 si Success).
	AppendAttempt(ctx context.Context, a Attempt) (consecutiveFailures int, err error)

	// CountSince cuenta intentos del identifier desde `since`.
	CountSince(ctx context.Context, identifier string, since time.Time) (int, error)

	// OldestSince retorna el timestamp del intento más viejo dentro de la
	// ventana; ok=false si no hay intentos.
	OldestSince(ctx context.Context, identifier string, since time.Time) (t time.Time, ok bool, err error)

	// ClearAttempts borra los intentos del identifier (tras un éxito).
	ClearAttempts(ctx context.Context, identifier string) error

	SetLockout(ctx context.Context, account string, until time.Time) error
	GetLockout(ctx context.Context, account string) (until time.Time, ok bool, err error)
	ClearLockout(ctx context.Context, account string) error
}

// Config son los parámetros del limiter, con defaults del producto.
type Config struct {
	MaxAttempts      int           // default 5
	Window           time.Duration // default 15m
	LockoutThreshold int           // fallos consecutivos, default 5
	LockoutDuration  time.Duration // default 15m
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Window <= 0 {
		c.Window = 15 * time.Minute
	}
	if c.LockoutThreshold <= 0 {
		c.LockoutThreshold = 5
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 15 * time.Minute
	}
}

// Limiter aplica la política sobre un Store inyectado; no hay estado global.
type Limiter struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func New(store Store, cfg Config) *Limiter {
	cfg.applyDefaults()
	return &Limiter{store: store, cfg: cfg, now: time.Now}
}

// CheckLimit permite el intento sii los intentos dentro de la ventana son
// menos que MaxAttempts. Error del store ⇒ denegar (fail-closed).
func (l *Limiter) CheckLimit(ctx context.Context, identifier string) (bool, error) {
	since := l.now().Add(-l.cfg.Window)
	n, err := l.store.CountSince(ctx, identifier, since)
	if err != nil {
		logger.From(ctx).Error("rate store unavailable, denying",
			logger.Component("rate"), logger.Op("CheckLimit"), logger.Err(err))
		return false, ErrStoreUnavailable
	}
	return n < l.cfg.MaxAttempts, nil
}

// LockoutCheck se evalúa ANTES de verificar credenciales para mantener timing
// y mensajes uniformes exista o no la cuenta.
func (l *Limiter) LockoutCheck(ctx context.Context, account string) (locked bool, until time.Time, err error) {
	until, ok, err := l.store.GetLockout(ctx, account)
	if err != nil {
		logger.From(ctx).Error("lockout store unavailable, denying",
			logger.Component("rate"), logger.Op("LockoutCheck"), logger.Err(err))
		return true, time.Time{}, ErrStoreUnavailable
	}
	if !ok || !until.After(l.now()) {
		return false, time.Time{}, nil
	}
	return true, until, nil
}

// RecordAttempt registra el intento sea cual sea el resultado. Un éxito
// limpia contador y lockout; LockoutThreshold fallos consecutivos activan
// locked_until = now + LockoutDuration.
func (l *Limiter) RecordAttempt(ctx context.Context, identifier, account, sourceIP string, success bool) error {
	fails, err := l.store.AppendAttempt(ctx, Attempt{
		Identifier: identifier,
		Account:    account,
		SourceIP:   sourceIP,
		At:         l.now(),
		Success:    success,
	})
	if err != nil {
		return err
	}

	if success {
		if err := l.store.ClearAttempts(ctx, identifier); err != nil {
			return err
		}
		return l.store.ClearLockout(ctx, account)
	}

	if fails >= l.cfg.LockoutThreshold {
		metrics.LockoutsActivated.Inc()
		logger.From(ctx).Warn("account locked out",
			logger.Component("rate"),
			logger.Identifier(account),
			logger.Count(fails),
		)
		return l.store.SetLockout(ctx, account, l.now().Add(l.cfg.LockoutDuration))
	}
	return nil
}

// GetRemainingAttempts es un helper read-only para mensajes de UI.
func (l *Limiter) GetRemainingAttempts(ctx context.Context, identifier string) (int, error) {
	since := l.now().Add(-l.cfg.Window)
	n, err := l.store.CountSince(ctx, identifier, since)
	if err != nil {
		return 0, ErrStoreUnavailable
	}
	rem := l.cfg.MaxAttempts - n
	if rem < 0 {
		rem = 0
	}
	return rem, nil
}

// GetTimeUntilReset indica cuánto falta para que el intento más viejo salga
// de la ventana.
func (l *Limiter) GetTimeUntilReset(ctx context.Context, identifier string) (time.Duration, error) {
	since := l.now().Add(-l.cfg.Window)
	oldest, ok, err := l.store.OldestSince(ctx, identifier, since)
	if err != nil {
		return 0, ErrStoreUnavailable
	}
	if !ok {
		return 0, nil
	}
	d := oldest.Add(l.cfg.Window).Sub(l.now())
	if d < 0 {
		d = 0
	}
	return d, nil
}
