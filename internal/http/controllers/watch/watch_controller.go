// Package watch contiene los controllers de reproducción: scan, heartbeat y
// fin de reproducción.
package watch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/kidplay/internal/gateway"
	"github.com/dropDatabas3/kidplay/internal/http/dto"
	httperrors "github.com/dropDatabas3/kidplay/internal/http/errors"
	"github.com/dropDatabas3/kidplay/internal/http/helpers"
	domain "github.com/dropDatabas3/kidplay/internal/watch"
)

type Service interface {
	Scan(ctx context.Context, chipToken string, interval time.Duration, now time.Time) (gateway.ScanResult, error)
	Heartbeat(ctx context.Context, sessionID string, now time.Time) (domain.HeartbeatResult, error)
	EndPlayback(ctx context.Context, sessionID string, now time.Time) error
}

type Controller struct {
	svc Service
	now func() time.Time
}

// NewController: now nil usa time.Now.
func NewController(svc Service, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{svc: svc, now: now}
}

// Scan maneja POST /v1/watch/scan.
// limit_reached es 200 con allowed=false; chip desconocido es 403.
func (c *Controller) Scan(w http.ResponseWriter, r *http.Request) {
	var req dto.ScanRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if req.HeartbeatIntervalSeconds < 0 {
		httperrors.WriteError(w, httperrors.ErrInvalidFormat.WithDetail("heartbeat_interval_seconds"))
		return
	}

	res, err := c.svc.Scan(r.Context(), req.ChipToken, time.Duration(req.HeartbeatIntervalSeconds)*time.Second, c.now())
	if errors.Is(err, gateway.ErrUnknownChip) {
		helpers.WriteJSON(w, http.StatusForbidden, dto.ScanResponse{Allowed: false, Reason: "unknown_chip"})
		return
	}
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	if !res.Allowed {
		helpers.WriteJSON(w, http.StatusOK, dto.ScanResponse{Allowed: false, Reason: string(res.Reason)})
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ScanResponse{
		SessionID:                res.SessionID,
		Allowed:                  true,
		HeartbeatIntervalSeconds: int(res.Interval / time.Second),
		TimeoutSeconds:           int(res.Window / time.Second),
		RemainingSeconds:         res.RemainingSeconds,
	})
}

// Heartbeat maneja POST /v1/watch/heartbeat
func (c *Controller) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req dto.SessionRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.svc.Heartbeat(r.Context(), req.SessionID, c.now())
	if err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.HeartbeatResponse{
		Continue:         res.Continue,
		Reason:           string(res.Reason),
		RemainingSeconds: res.RemainingSeconds,
	})
}

// End maneja POST /v1/watch/end. Acepta bodies de sendBeacon y también
// ?session_id= en la query.
func (c *Controller) End(w http.ResponseWriter, r *http.Request) {
	var req dto.SessionRequest
	if !helpers.ReadBeacon(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		req.SessionID = r.URL.Query().Get("session_id")
	}
	if err := c.svc.EndPlayback(r.Context(), req.SessionID, c.now()); err != nil {
		httperrors.WriteError(w, httperrors.Map(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
