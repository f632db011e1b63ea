// Package metrics registra los contadores Prometheus del servicio.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts cuenta intentos de login por resultado:
	// success | invalid_credentials | rate_limited | two_factor_required | invalid_two_factor.
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfguard_login_attempts_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})

	// LockoutsActivated cuenta activaciones de lockout por fallos consecutivos.
	LockoutsActivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfguard_lockouts_activated_total",
		Help: "Account lockouts triggered by consecutive failures.",
	})

	// SessionsDestroyed cuenta sesiones destruidas por causa:
	// logout | idle_timeout | fingerprint_mismatch | rotation.
	SessionsDestroyed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfguard_sessions_destroyed_total",
		Help: "Sessions destroyed by cause.",
	}, []string{"cause"})

	// CSRFFailures cuenta validaciones CSRF fallidas.
	CSRFFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfguard_csrf_failures_total",
		Help: "Failed CSRF validations.",
	})

	// AuditSinkErrors cuenta errores del sink de auditoría (el caller nunca
	// ve estos errores, solo quedan acá y en el log).
	AuditSinkErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shelfguard_audit_sink_errors_total",
		Help: "Errors writing audit events to the sink.",
	})

	// HTTPRequests cuenta requests HTTP por método, ruta y status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shelfguard_http_requests_total",
		Help: "HTTP requests.",
	}, []string{"method", "path", "status"})

	// HTTPDuration mide la latencia por ruta.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shelfguard_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)
