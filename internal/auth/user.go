package auth

import (
	"context"
	"time"
)

// User es la vista de cuenta que necesita la autenticación. El resto del
// perfil vive en el dominio de catálogo y no pasa por acá.
type User struct {
	ID                     string
	Identifier             string // email o username, según cómo se registró
	PasswordHash           string // PHC argon2id
	TwoFactorEnabled       bool
	TwoFactorSecret        string // base32, solo si TwoFactorEnabled
	PendingTwoFactorSecret string // enrolamiento iniciado pero sin confirmar
	Locked                 bool   // bloqueo administrativo
	Admin                  bool   // habilita los endpoints de operación
}

// UserStore es el contrato contra el almacenamiento de cuentas.
type UserStore interface {
	// FindByIdentifier retorna ErrUserNotFound si no existe.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// SetPendingTwoFactorSecret guarda el secreto provisorio del enrolamiento.
	SetPendingTwoFactorSecret(ctx context.Context, accountID, secret string) error

	// ActivateTwoFactor promueve el secreto pendiente a activo.
	ActivateTwoFactor(ctx context.Context, accountID string) error

	// DisableTwoFactor limpia secreto activo y pendiente.
	DisableTwoFactor(ctx context.Context, accountID string) error

	SetLastLogin(ctx context.Context, accountID string, at time.Time) error
}
