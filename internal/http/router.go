// Package http arma el router y el server del servicio.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/shelfguard/internal/auth"
	auditctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/audit"
	healthctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/health"
	mfactl "github.com/dropDatabas3/shelfguard/internal/http/controllers/mfa"
	securityctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/security"
	sessionctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/session"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	mw "github.com/dropDatabas3/shelfguard/internal/http/middlewares"
	"github.com/dropDatabas3/shelfguard/internal/security/csrf"
	"github.com/dropDatabas3/shelfguard/internal/session"
)

// RouterDeps son las dependencias ya construidas del router.
type RouterDeps struct {
	Login  *sessionctl.LoginController
	Logout *sessionctl.LogoutController
	Csrf   *securityctl.CsrfController
	MFA    *mfactl.Controller
	Audit  *auditctl.Controller
	Health *healthctl.Controller

	Sessions *session.Guard
	CsrfG    *csrf.Guard
	Users    auth.UserStore
	Cookie   helpers.CookieConfig
}

// NewRouter arma el árbol de rutas completo.
//
// Convención: todo lo que muta estado y corre con sesión pasa por el
// middleware CSRF; el login no (todavía no hay sesión que proteger).
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithRecover())
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithMetrics())

	r.Get("/healthz", d.Health.Healthz)
	r.Get("/readyz", d.Health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/session/login", d.Login.Login)

		// autenticado
		r.Group(func(r chi.Router) {
			r.Use(mw.WithSession(d.Sessions, d.Cookie))

			r.Get("/csrf", d.Csrf.Issue)

			// solo cuentas admin leen la auditoría
			r.Method(http.MethodGet, "/audit/recent",
				mw.Chain(http.HandlerFunc(d.Audit.Recent), mw.WithAdmin(d.Users)))

			// autenticado + anti-forgery
			r.Group(func(r chi.Router) {
				r.Use(mw.WithCSRF(d.CsrfG))

				r.Post("/session/logout", d.Logout.Logout)
				r.Post("/mfa/enroll", d.MFA.Enroll)
				r.Post("/mfa/confirm", d.MFA.Confirm)
				r.Post("/mfa/disable", d.MFA.Disable)
				r.Post("/mfa/recovery/rotate", d.MFA.Rotate)
			})
		})
	})

	return r
}
