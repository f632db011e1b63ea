// Package security contiene el controller de tokens anti-forgery.
package security

import (
	"net/http"

	dto "github.com/dropDatabas3/shelfguard/internal/http/dto/security"
	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/http/middlewares"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"github.com/dropDatabas3/shelfguard/internal/security/csrf"
)

// CsrfController maneja GET /v1/csrf.
type CsrfController struct {
	guard *csrf.Guard
}

func NewCsrfController(guard *csrf.Guard) *CsrfController {
	return &CsrfController{guard: guard}
}

// Issue emite un token nuevo para la sesión (pisa el anterior). El cliente lo
// manda de vuelta en X-CSRF-Token; cada token vale una sola validación.
func (c *CsrfController) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := middlewares.GetCsrfScope(ctx)

	token, err := c.guard.Issue(ctx, scope)
	if err != nil {
		logger.From(ctx).Error("csrf issue failed",
			logger.Layer("controller"), logger.Op("security.csrf"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, dto.CsrfResponse{Token: token})
}
