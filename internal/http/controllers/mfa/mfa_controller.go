// Package mfa contiene los controllers del flujo de verificación en dos
// pasos: enrolamiento, confirmación, deshabilitación y rotación de backup
// codes.
package mfa

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/shelfguard/internal/auth"
	dto "github.com/dropDatabas3/shelfguard/internal/http/dto/mfa"
	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/http/middlewares"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"go.uber.org/zap"
)

// Controller agrupa los endpoints /v1/mfa/*.
type Controller struct {
	orch *auth.Orchestrator
}

func New(orch *auth.Orchestrator) *Controller {
	return &Controller{orch: orch}
}

// Enroll maneja POST /v1/mfa/enroll. La respuesta contiene el secreto, sale
// con no-store y no se repite: después solo se aceptan códigos.
func (c *Controller) Enroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.enroll"))

	enr, err := c.orch.StartEnrollment(ctx, middlewares.GetAccountID(ctx))
	if err != nil {
		c.writeError(w, err, log)
		return
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, dto.EnrollResponse{
		SecretBase32: enr.Secret,
		OTPAuthURL:   enr.URL,
	})
}

// Confirm maneja POST /v1/mfa/confirm: el primer código válido activa 2FA y
// entrega los backup codes iniciales.
func (c *Controller) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.confirm"))

	var req dto.ConfirmRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("code es obligatorio"))
		return
	}

	codes, err := c.orch.ConfirmEnrollment(ctx, middlewares.GetAccountID(ctx), req.Code)
	if err != nil {
		c.writeError(w, err, log)
		return
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, dto.ConfirmResponse{BackupCodes: codes})
}

// Disable maneja POST /v1/mfa/disable. Exige un código TOTP vigente o un
// backup code sin usar como prueba de posesión.
func (c *Controller) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.disable"))

	var req dto.DisableRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("code es obligatorio"))
		return
	}

	if err := c.orch.DisableTwoFactor(ctx, middlewares.GetAccountID(ctx), req.Code); err != nil {
		c.writeError(w, err, log)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Rotate maneja POST /v1/mfa/recovery/rotate: invalida los backup codes sin
// usar y entrega una tanda nueva.
func (c *Controller) Rotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("mfa.rotate"))

	codes, err := c.orch.RotateBackupCodes(ctx, middlewares.GetAccountID(ctx))
	if err != nil {
		c.writeError(w, err, log)
		return
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, dto.RotateResponse{BackupCodes: codes})
}

func (c *Controller) writeError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch {
	case errors.Is(err, auth.ErrEnrollmentPending):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("la verificación en dos pasos ya está activa"))
	case errors.Is(err, auth.ErrNoPendingEnrollment):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("no hay un enrolamiento pendiente"))
	case errors.Is(err, auth.ErrTwoFactorNotEnabled):
		httperrors.WriteError(w, httperrors.ErrConflict.WithDetail("la verificación en dos pasos no está activa"))
	case errors.Is(err, auth.ErrInvalidTwoFactorCode):
		httperrors.WriteError(w, httperrors.ErrInvalidTwoFactorCode)
	case errors.Is(err, auth.ErrUserNotFound):
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
	default:
		log.Error("mfa operation failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
