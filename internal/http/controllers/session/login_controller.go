// Package session contiene los controllers de login y logout.
package session

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/shelfguard/internal/auth"
	dto "github.com/dropDatabas3/shelfguard/internal/http/dto/session"
	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
	"go.uber.org/zap"
)

// LoginController maneja POST /v1/session/login.
type LoginController struct {
	orch   *auth.Orchestrator
	cookie helpers.CookieConfig
}

func NewLoginController(orch *auth.Orchestrator, cookie helpers.CookieConfig) *LoginController {
	return &LoginController{orch: orch, cookie: cookie}
}

func (c *LoginController) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("session.login"))

	var req dto.LoginRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.Identifier == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("identifier y password son obligatorios"))
		return
	}

	res, err := c.orch.Login(ctx, auth.LoginInput{
		Identifier:    req.Identifier,
		Password:      req.Password,
		TwoFactorCode: req.TwoFactorCode,
		SourceIP:      helpers.ClientIP(r),
		Fingerprint:   helpers.FingerprintFrom(r),
	})
	if err != nil {
		c.writeLoginError(w, err, log)
		return
	}

	http.SetCookie(w, helpers.BuildSessionCookie(c.cookie, res.SessionID))
	helpers.NoStore(w)

	resp := dto.LoginResponse{
		AccountID:      res.AccountID,
		UsedTwoFactor:  res.UsedTwoFactor,
		UsedBackupCode: res.UsedBackupCode,
	}
	if res.UsedBackupCode && res.BackupCodesRemaining >= 0 {
		resp.BackupCodesRemaining = &res.BackupCodesRemaining
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

func (c *LoginController) writeLoginError(w http.ResponseWriter, err error, log *zap.Logger) {
	var rl *auth.RateLimitedError
	switch {
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter/time.Second)+1))
		}
		httperrors.WriteError(w, httperrors.ErrRateLimited)
	case errors.Is(err, auth.ErrRateLimitExceeded):
		httperrors.WriteError(w, httperrors.ErrRateLimited)
	case errors.Is(err, auth.ErrTwoFactorRequired):
		httperrors.WriteError(w, httperrors.ErrTwoFactorRequired)
	case errors.Is(err, auth.ErrInvalidTwoFactorCode):
		httperrors.WriteError(w, httperrors.ErrInvalidTwoFactorCode)
	case errors.Is(err, auth.ErrInvalidCredentials):
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	default:
		log.Error("login failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
