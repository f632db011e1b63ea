// Package health contiene los endpoints de liveness y readiness.
package health

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
)

// Pinger es lo mínimo que un backend tiene que responder para estar "ready".
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller maneja /healthz y /readyz.
type Controller struct {
	deps map[string]Pinger
}

// New recibe los backends a chequear por nombre (ej: "postgres", "cache").
func New(deps map[string]Pinger) *Controller {
	return &Controller{deps: deps}
}

// Healthz es liveness puro: el proceso responde.
func (c *Controller) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz chequea cada backend; cualquiera caído ⇒ 503 con el detalle.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	checks := make(map[string]string, len(c.deps))

	for name, p := range c.deps {
		if err := p.Ping(ctx); err != nil {
			logger.From(ctx).Warn("readiness check failed",
				logger.Component("health"), logger.String("backend", name), logger.Err(err))
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	helpers.WriteJSON(w, status, map[string]any{
		"status": http.StatusText(status),
		"checks": checks,
	})
}
