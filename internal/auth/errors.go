package auth

import (
	"errors"
	"fmt"
	"time"
)

// Errores del flujo de autenticación. Lockout, cuenta inexistente y password
// malo colapsan todos en ErrInvalidCredentials hacia el cliente; el motivo
// real queda solo en el audit log.
var (
	ErrRateLimitExceeded    = errors.New("auth: rate limit exceeded")
	ErrAccountLocked        = errors.New("auth: account locked")
	ErrInvalidCredentials   = errors.New("auth: invalid credentials")
	ErrTwoFactorRequired    = errors.New("auth: two factor required")
	ErrInvalidTwoFactorCode = errors.New("auth: invalid two factor code")
	ErrTwoFactorNotEnabled  = errors.New("auth: two factor not enabled")
	ErrEnrollmentPending    = errors.New("auth: two factor enrollment already active or pending")
	ErrNoPendingEnrollment  = errors.New("auth: no pending two factor enrollment")
	ErrUserNotFound         = errors.New("auth: user not found")
)

// RateLimitedError agrega el retry-after al rechazo por ventana deslizante.
// errors.Is(err, ErrRateLimitExceeded) sigue funcionando.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("auth: rate limit exceeded, retry in %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimitExceeded }
