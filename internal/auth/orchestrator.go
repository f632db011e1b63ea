// Package auth orquesta el login completo: rate limiting, credenciales,
// segundo factor y emisión de sesión, en ese orden estricto.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/observability/metrics"
	"github.com/dropDatabas3/shelfguard/internal/rate"
	"github.com/dropDatabas3/shelfguard/internal/security/backup"
	"github.com/dropDatabas3/shelfguard/internal/security/password"
	"github.com/dropDatabas3/shelfguard/internal/security/totp"
	"github.com/dropDatabas3/shelfguard/internal/session"
)

// Config del orquestador.
type Config struct {
	TotpWindow int    // pasos de tolerancia a cada lado, default 1
	Issuer     string // label del otpauth://, default "Shelf"
}

func (c *Config) applyDefaults() {
	if c.TotpWindow <= 0 {
		c.TotpWindow = 1
	}
	if c.Issuer == "" {
		c.Issuer = "Shelf"
	}
}

// Orchestrator coordina los guards. No tiene estado propio: todo vive en los
// stores inyectados.
type Orchestrator struct {
	users    UserStore
	limiter  *rate.Limiter
	vault    *backup.Vault
	sessions *session.Guard
	audit    *audit.Log
	cfg      Config
	now      func() time.Time
}

func NewOrchestrator(users UserStore, limiter *rate.Limiter, vault *backup.Vault, sessions *session.Guard, auditLog *audit.Log, cfg Config) *Orchestrator {
	cfg.applyDefaults()
	return &Orchestrator{
		users:    users,
		limiter:  limiter,
		vault:    vault,
		sessions: sessions,
		audit:    auditLog,
		cfg:      cfg,
		now:      time.Now,
	}
}

// LoginInput es el request de login ya parseado por la capa HTTP.
type LoginInput struct {
	Identifier    string
	Password      string
	TwoFactorCode string // vacío si el cliente todavía no lo mandó
	SourceIP      string
	Fingerprint   session.Fingerprint
}

// LoginResult es el resultado de un login exitoso.
type LoginResult struct {
	SessionID            string
	AccountID            string
	UsedTwoFactor        bool
	UsedBackupCode       bool
	BackupCodesRemaining int // -1 si no se usó backup code
}

// rateKey compone la clave de ventana deslizante: cuenta + origen, para que un
// atacante distribuido no queme el presupuesto de la víctima desde una sola IP
// ni una IP compartida bloquee a todos.
func rateKey(identifier, sourceIP string) string {
	return identifier + "|" + sourceIP
}

// Login ejecuta la máquina de estados completa.
//
// Orden no negociable: lockout y ventana se chequean ANTES de tocar el user
// store, para que el timing no delate si la cuenta existe. Cuenta inexistente,
// password malo y bloqueo administrativo devuelven exactamente el mismo error.
//
// Un código 2FA ausente en una cuenta con 2FA es un resultado blando: se pide
// el código sin consumir presupuesto de rate limit.
func (o *Orchestrator) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	key := rateKey(in.Identifier, in.SourceIP)

	locked, until, err := o.limiter.LockoutCheck(ctx, in.Identifier)
	if err != nil {
		// fail-closed: store caído ⇒ denegar sin mirar credenciales
		return nil, o.denyRateLimited(ctx, in, 0)
	}
	if locked {
		return nil, o.denyRateLimited(ctx, in, until.Sub(o.now()))
	}

	allowed, err := o.limiter.CheckLimit(ctx, key)
	if err != nil || !allowed {
		retry, rerr := o.limiter.GetTimeUntilReset(ctx, key)
		if rerr != nil {
			retry = 0
		}
		return nil, o.denyRateLimited(ctx, in, retry)
	}

	user, err := o.users.FindByIdentifier(ctx, in.Identifier)
	if errors.Is(err, ErrUserNotFound) {
		return nil, o.denyInvalidCredentials(ctx, in, "", "unknown_identifier")
	}
	if err != nil {
		return nil, err
	}

	if !password.Verify(in.Password, user.PasswordHash) {
		return nil, o.denyInvalidCredentials(ctx, in, user.ID, "bad_password")
	}
	if user.Locked {
		return nil, o.denyInvalidCredentials(ctx, in, user.ID, "admin_lock")
	}

	res := &LoginResult{AccountID: user.ID, BackupCodesRemaining: -1}

	if user.TwoFactorEnabled {
		code := strings.TrimSpace(in.TwoFactorCode)
		if code == "" {
			metrics.LoginAttempts.WithLabelValues("two_factor_required").Inc()
			return nil, ErrTwoFactorRequired
		}

		ok, verr := totp.Verify(user.TwoFactorSecret, code, o.now(), o.cfg.TotpWindow)
		if verr != nil {
			// secreto corrupto en el store: se loguea y se trata como no-match
			logger.From(ctx).Error("stored totp secret is malformed",
				logger.Component("auth"), logger.AccountID(user.ID), logger.Err(verr))
			ok = false
		}
		if ok {
			res.UsedTwoFactor = true
		} else {
			bok, berr := o.vault.Verify(ctx, user.ID, code)
			if berr != nil {
				return nil, berr
			}
			if bok {
				res.UsedTwoFactor = true
				res.UsedBackupCode = true
				if rem, cerr := o.vault.RemainingCount(ctx, user.ID); cerr == nil {
					res.BackupCodesRemaining = rem
				}
			}
		}

		if !res.UsedTwoFactor {
			o.recordFailure(ctx, key, in)
			metrics.LoginAttempts.WithLabelValues("invalid_two_factor").Inc()
			o.audit.Record(ctx, audit.Event{
				Type:      audit.TypeTwoFactorFailed,
				SubjectID: user.ID,
				SourceIP:  in.SourceIP,
				UserAgent: in.Fingerprint.UserAgent,
			})
			return nil, ErrInvalidTwoFactorCode
		}
	}

	if err := o.limiter.RecordAttempt(ctx, key, in.Identifier, in.SourceIP, true); err != nil {
		logger.From(ctx).Error("could not clear rate window after success",
			logger.Component("auth"), logger.Err(err))
	}
	if err := o.users.SetLastLogin(ctx, user.ID, o.now().UTC()); err != nil {
		logger.From(ctx).Error("could not persist last login",
			logger.Component("auth"), logger.AccountID(user.ID), logger.Err(err))
	}

	sid, _, err := o.sessions.Start(ctx, user.ID, in.Fingerprint, in.SourceIP)
	if err != nil {
		return nil, err
	}
	res.SessionID = sid

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeLoginSuccess,
		SubjectID: user.ID,
		SourceIP:  in.SourceIP,
		UserAgent: in.Fingerprint.UserAgent,
		Detail: map[string]any{
			"used_two_factor":  res.UsedTwoFactor,
			"used_backup_code": res.UsedBackupCode,
		},
	})
	return res, nil
}

// Logout destruye la sesión y deja rastro. Idempotente.
func (o *Orchestrator) Logout(ctx context.Context, sessionID, accountID, sourceIP, userAgent string) error {
	if err := o.sessions.Destroy(ctx, sessionID); err != nil {
		return err
	}
	metrics.SessionsDestroyed.WithLabelValues("logout").Inc()
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeLogout,
		SubjectID: accountID,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
	})
	return nil
}

func (o *Orchestrator) denyRateLimited(ctx context.Context, in LoginInput, retry time.Duration) error {
	metrics.LoginAttempts.WithLabelValues("rate_limited").Inc()
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeRateLimitExceeded,
		SourceIP:  in.SourceIP,
		UserAgent: in.Fingerprint.UserAgent,
		Detail:    map[string]any{"identifier": in.Identifier},
	})
	return &RateLimitedError{RetryAfter: retry}
}

func (o *Orchestrator) denyInvalidCredentials(ctx context.Context, in LoginInput, accountID, reason string) error {
	o.recordFailure(ctx, rateKey(in.Identifier, in.SourceIP), in)
	metrics.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeLoginFailed,
		SubjectID: accountID,
		SourceIP:  in.SourceIP,
		UserAgent: in.Fingerprint.UserAgent,
		Detail:    map[string]any{"identifier": in.Identifier, "reason": reason},
	})
	return ErrInvalidCredentials
}

func (o *Orchestrator) recordFailure(ctx context.Context, key string, in LoginInput) {
	if err := o.limiter.RecordAttempt(ctx, key, in.Identifier, in.SourceIP, false); err != nil {
		logger.From(ctx).Error("could not record failed attempt",
			logger.Component("auth"), logger.Err(err))
	}
}
