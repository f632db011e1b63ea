package session

import (
	"net/http"

	"github.com/dropDatabas3/shelfguard/internal/auth"
	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/http/middlewares"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
)

// LogoutController maneja POST /v1/session/logout.
type LogoutController struct {
	orch   *auth.Orchestrator
	cookie helpers.CookieConfig
}

func NewLogoutController(orch *auth.Orchestrator, cookie helpers.CookieConfig) *LogoutController {
	return &LogoutController{orch: orch, cookie: cookie}
}

func (c *LogoutController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sid := middlewares.GetSessionID(ctx)
	accountID := middlewares.GetAccountID(ctx)

	if err := c.orch.Logout(ctx, sid, accountID, helpers.ClientIP(r), r.UserAgent()); err != nil {
		logger.From(ctx).Error("logout failed",
			logger.Layer("controller"), logger.Op("session.logout"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	http.SetCookie(w, helpers.ExpireSessionCookie(c.cookie))
	w.WriteHeader(http.StatusNoContent)
}
