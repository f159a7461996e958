// Package profile contiene los controllers de perfiles de niños (requieren
// access token del padre).
package profile

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/gateway"
	"github.com/dropDatabas3/kidplay/internal/http/dto"
	httperrors "github.com/dropDatabas3/kidplay/internal/http/errors"
	"github.com/dropDatabas3/kidplay/internal/http/helpers"
	mw "github.com/dropDatabas3/kidplay/internal/http/middlewares"
	"github.com/dropDatabas3/kidplay/internal/watch"
	"github.com/go-chi/chi/v5"
)

type Service interface {
	CreateProfile(ctx context.Context, p gateway.Principal, name string, dailyLimitMinutes int) (*repository.Profile, error)
	BindChip(ctx context.Context, p gateway.Principal, profileID, chipToken string) error
	Usage(ctx context.Context, p gateway.Principal, profileID string, now time.Time) (watch.Usage, error)
}

type Controller struct {
	svc Service
	now func() time.Time
}

func NewController(svc Service, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{svc: svc, now: now}
}

func principal(w http.ResponseWriter, r *http.Request) (gateway.Principal, bool) {
	p, ok := mw.GetPrincipal(r.Context())
	if !ok {
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
	}
	return p, ok
}

// Create maneja POST /v1/profiles
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.CreateProfileRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	prof, err := c.svc.CreateProfile(r.Context(), p, req.Name, req.DailyLimitMinutes)
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.ProfileResponse{
		ID:                prof.ID,
		Name:              prof.Name,
		DailyLimitMinutes: prof.DailyLimitMinutes,
		CreatedAt:         prof.CreatedAt,
	})
}

// BindChip maneja POST /v1/profiles/{id}/chips
func (c *Controller) BindChip(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req dto.BindChipRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.BindChip(r.Context(), p, chi.URLParam(r, "id"), req.ChipToken); err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// Usage maneja GET /v1/profiles/{id}/usage
func (c *Controller) Usage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	u, err := c.svc.Usage(r.Context(), p, chi.URLParam(r, "id"), c.now())
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.UsageResponse{
		ProfileID:        u.ProfileID,
		Date:             u.Date,
		UsedSeconds:      u.UsedSeconds,
		CeilingSeconds:   u.CeilingSeconds,
		RemainingSeconds: u.RemainingSeconds,
	})
}
