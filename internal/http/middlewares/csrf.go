package middlewares

import (
	"net/http"

	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/security/csrf"
)

// CSRFHeader es el header donde viaja el token anti-forgery. Para clientes
// que no pueden setear headers se acepta también el query param CSRFField.
const (
	CSRFHeader = "X-CSRF-Token"
	CSRFField  = "csrf_token"
)

// WithCSRF valida (y consume) el token anti-forgery de los endpoints
// mutantes. Corre después de WithSession: necesita la sesión en contexto.
// El cliente tiene que pedir un token nuevo en GET /v1/csrf tras cada uso.
func WithCSRF(guard *csrf.Guard) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// el scope es la clave estable de la sesión, no el ID: un token
			// emitido antes de una rotación sigue validando después
			scope := GetCsrfScope(r.Context())
			if scope == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			token := r.Header.Get(CSRFHeader)
			if token == "" {
				token = r.URL.Query().Get(CSRFField)
			}
			if err := guard.Validate(r.Context(), scope, token, helpers.ClientIP(r), r.UserAgent()); err != nil {
				httperrors.WriteError(w, httperrors.ErrCSRF)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
