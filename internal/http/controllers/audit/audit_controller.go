// Package audit contiene el controller de consulta del registro de eventos.
package audit

import (
	"net/http"
	"strconv"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	httperrors "github.com/dropDatabas3/shelfguard/internal/http/errors"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/observability/logger"
)

// Controller maneja GET /v1/audit/recent.
type Controller struct {
	log *audit.Log
}

func New(log *audit.Log) *Controller {
	return &Controller{log: log}
}

// Recent retorna los últimos eventos, del más nuevo al más viejo.
// ?limit=n (default 50, tope 500).
func (c *Controller) Recent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("limit inválido"))
			return
		}
		limit = n
	}
	if limit > 500 {
		limit = 500
	}

	events, err := c.log.Recent(ctx, limit)
	if err != nil {
		logger.From(ctx).Error("audit query failed",
			logger.Layer("controller"), logger.Op("audit.recent"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}
