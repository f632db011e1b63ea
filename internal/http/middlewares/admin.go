package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/shelfguard/internal/auth"
	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
)

// WithAdmin exige que la cuenta autenticada tenga el flag admin. Corre
// después de WithSession. Cualquier problema al cargar la cuenta cierra
// en 403, nunca abre.
func WithAdmin(users auth.UserStore) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			accountID := GetAccountID(ctx)
			if accountID == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			u, err := users.FindByID(ctx, accountID)
			if err != nil || !u.Admin {
				logger.From(ctx).Warn("admin endpoint denied",
					logger.Component("http"),
					logger.AccountID(accountID),
				)
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
