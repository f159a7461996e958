// Package router arma el árbol de rutas HTTP sobre chi.
package router

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/kidplay/internal/gateway"
	authctrl "github.com/dropDatabas3/kidplay/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/kidplay/internal/http/controllers/health"
	profilectrl "github.com/dropDatabas3/kidplay/internal/http/controllers/profile"
	watchctrl "github.com/dropDatabas3/kidplay/internal/http/controllers/watch"
	httperrors "github.com/dropDatabas3/kidplay/internal/http/errors"
	mw "github.com/dropDatabas3/kidplay/internal/http/middlewares"
	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/rate"
	"github.com/go-chi/chi/v5"
)

// Deps contiene las dependencias del router. Los limiters son opcionales.
type Deps struct {
	Gateway *gateway.Gateway
	Keys    healthctrl.KeySource
	Metrics *metrics.Metrics
	Checks  map[string]healthctrl.Checker

	LoginLimiter   rate.Limiter
	RefreshLimiter rate.Limiter
	ScanLimiter    rate.Limiter

	// Now: reloj de los controllers de reproducción. nil = time.Now.
	Now func() time.Time
}

// New construye el handler raíz.
func New(deps Deps) http.Handler {
	auth := authctrl.NewController(deps.Gateway)
	watch := watchctrl.NewController(deps.Gateway, deps.Now)
	profile := profilectrl.NewController(deps.Gateway, deps.Now)
	health := healthctrl.NewController(deps.Checks, deps.Keys)

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithSecurityHeaders(),
	)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.WithMetrics)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// Health / observabilidad
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	r.With(mw.WithCacheControl("public, max-age=300")).Get("/.well-known/jwks.json", health.JWKS)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(mw.WithNoStore())
			login := mw.WithRateLimit(deps.LoginLimiter, mw.IPPathRateKey)
			r.With(login).Post("/register", auth.Register)
			r.With(login).Post("/login", auth.Login)
			r.With(mw.WithRateLimit(deps.RefreshLimiter, mw.IPPathRateKey)).Post("/refresh", auth.Refresh)
			r.Post("/logout", auth.Logout)
		})

		r.Route("/watch", func(r chi.Router) {
			r.Use(mw.WithNoStore())
			r.With(mw.WithRateLimit(deps.ScanLimiter, mw.IPPathRateKey)).Post("/scan", watch.Scan)
			r.Post("/heartbeat", watch.Heartbeat)
			r.Post("/end", watch.End)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.WithNoStore(), mw.RequireAuth(deps.Gateway))
			r.Post("/profiles", profile.Create)
			r.Post("/profiles/{id}/chips", profile.BindChip)
			r.Get("/profiles/{id}/usage", profile.Usage)
		})
	})

	return r
}
