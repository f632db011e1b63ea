package auth

import (
	"context"
	"strings"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/security/totp"
)

// Enrollment es el material que ve el usuario al iniciar el enrolamiento.
// El secreto viaja una sola vez; después solo se aceptan códigos.
type Enrollment struct {
	Secret string
	URL    string // otpauth:// para render de QR en el cliente
}

// StartEnrollment genera un secreto nuevo y lo deja pendiente de confirmar.
// Repetir la llamada pisa el pendiente anterior; una cuenta con 2FA activo
// tiene que deshabilitarlo primero.
func (o *Orchestrator) StartEnrollment(ctx context.Context, accountID string) (*Enrollment, error) {
	user, err := o.users.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrEnrollmentPending
	}
	secret, err := totp.GenerateSecret(0)
	if err != nil {
		return nil, err
	}
	if err := o.users.SetPendingTwoFactorSecret(ctx, accountID, secret); err != nil {
		return nil, err
	}
	return &Enrollment{
		Secret: secret,
		URL:    totp.EnrollmentURL(o.cfg.Issuer, user.Identifier, secret),
	}, nil
}

// ConfirmEnrollment activa 2FA con el primer código válido del secreto
// pendiente y retorna la tanda inicial de backup codes en claro.
func (o *Orchestrator) ConfirmEnrollment(ctx context.Context, accountID, code string) ([]string, error) {
	user, err := o.users.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if user.PendingTwoFactorSecret == "" {
		return nil, ErrNoPendingEnrollment
	}

	ok, err := totp.Verify(user.PendingTwoFactorSecret, strings.TrimSpace(code), o.now(), o.cfg.TotpWindow)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTwoFactorCode
	}

	if err := o.users.ActivateTwoFactor(ctx, accountID); err != nil {
		return nil, err
	}
	codes, err := o.vault.Generate(ctx, accountID, 0)
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeTwoFactorEnabled,
		SubjectID: accountID,
	})
	return codes, nil
}

// DisableTwoFactor apaga 2FA previa prueba de posesión: un código TOTP
// vigente o un backup code sin usar.
func (o *Orchestrator) DisableTwoFactor(ctx context.Context, accountID, code string) error {
	user, err := o.users.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return ErrTwoFactorNotEnabled
	}

	ok, err := o.verifySecondFactor(ctx, user, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if !ok {
		o.audit.Record(ctx, audit.Event{
			Type:      audit.TypeTwoFactorFailed,
			SubjectID: accountID,
			Detail:    map[string]any{"op": "disable"},
		})
		return ErrInvalidTwoFactorCode
	}

	if err := o.users.DisableTwoFactor(ctx, accountID); err != nil {
		return err
	}
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeTwoFactorDisabled,
		SubjectID: accountID,
	})
	return nil
}

// RotateBackupCodes invalida los códigos sin usar y entrega una tanda nueva.
func (o *Orchestrator) RotateBackupCodes(ctx context.Context, accountID string) ([]string, error) {
	user, err := o.users.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled {
		return nil, ErrTwoFactorNotEnabled
	}
	codes, err := o.vault.Generate(ctx, accountID, 0)
	if err != nil {
		return nil, err
	}
	o.audit.Record(ctx, audit.Event{
		Type:      audit.TypeBackupCodesRegenerated,
		SubjectID: accountID,
		Detail:    map[string]any{"count": len(codes)},
	})
	return codes, nil
}

// BackupCodesRemaining expone el contador para el aviso de pocos códigos.
func (o *Orchestrator) BackupCodesRemaining(ctx context.Context, accountID string) (int, error) {
	return o.vault.RemainingCount(ctx, accountID)
}

func (o *Orchestrator) verifySecondFactor(ctx context.Context, user *User, code string) (bool, error) {
	ok, err := totp.Verify(user.TwoFactorSecret, code, o.now(), o.cfg.TotpWindow)
	if err == nil && ok {
		return true, nil
	}
	return o.vault.Verify(ctx, user.ID, code)
}
