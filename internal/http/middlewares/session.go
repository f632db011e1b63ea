package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/session"
)

// WithSession exige una sesión válida. Cada request autenticado pasa por
// Touch: renueva actividad, chequea fingerprint y rota el ID cuando toca; si
// hubo rotación el cookie nuevo sale en esta misma respuesta.
// Sin sesión válida: 401 y cookie expirado.
func WithSession(guard *session.Guard, cookie helpers.CookieConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookie.Name)
			if err != nil || c.Value == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			sid := c.Value
			rec, newID, err := guard.Touch(r.Context(), sid, helpers.FingerprintFrom(r), helpers.ClientIP(r))
			if err != nil {
				http.SetCookie(w, helpers.ExpireSessionCookie(cookie))
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if newID != "" {
				sid = newID
				http.SetCookie(w, helpers.BuildSessionCookie(cookie, newID))
			}

			// registros anteriores a la clave csrf caen al ID de sesión
			scope := rec.CsrfKey
			if scope == "" {
				scope = sid
			}
			ctx := setSession(r.Context(), rec.AccountID, sid, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
