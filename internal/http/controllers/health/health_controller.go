// Package health contiene healthz, readyz y el JWKS público.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/kidplay/internal/http/dto"
	"github.com/dropDatabas3/kidplay/internal/http/helpers"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

// Checker es una dependencia que readyz consulta.
type Checker interface {
	Ping(ctx context.Context) error
}

// KeySource expone el JWKS.
type KeySource interface {
	JWKS() []byte
}

type Controller struct {
	checks  map[string]Checker
	keys    KeySource
	timeout time.Duration
}

func NewController(checks map[string]Checker, keys KeySource) *Controller {
	return &Controller{checks: checks, keys: keys, timeout: 2 * time.Second}
}

// Healthz: el proceso está vivo.
func (c *Controller) Healthz(w http.ResponseWriter, _ *http.Request) {
	helpers.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// Readyz consulta cada dependencia; cualquier fallo es 503.
func (c *Controller) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Readyz"))

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := dto.HealthResponse{Status: "ok", Components: make(map[string]string, len(names))}
	status := http.StatusOK
	for _, name := range names {
		if err := c.checks[name].Ping(ctx); err != nil {
			log.Warn("dependency not ready", logger.Component(name), logger.Err(err))
			resp.Components[name] = "unavailable"
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Components[name] = "ok"
	}
	helpers.WriteJSON(w, status, resp)
}

// JWKS maneja GET /.well-known/jwks.json
func (c *Controller) JWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.keys.JWKS())
}
