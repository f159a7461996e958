package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dropDatabas3/kidplay/internal/heartbeat"
	"github.com/dropDatabas3/kidplay/internal/http/dto"
)

// player simula un reproductor: escanea el chip, late cada intervalo y
// avisa el fin al salir.
type player struct {
	cl      *client
	backoff heartbeat.Backoff
	after   func(time.Duration) <-chan time.Time
}

func newPlayer(cl *client) *player {
	return &player{cl: cl, backoff: heartbeat.DefaultBackoff, after: time.After}
}

// Run devuelve el motivo de cierre ("normal" cuando ctx se cancela).
func (p *player) Run(ctx context.Context, chip string, interval time.Duration) (string, error) {
	var scan dto.ScanResponse
	err := p.cl.call(ctx, http.MethodPost, "/v1/watch/scan",
		dto.ScanRequest{ChipToken: chip, HeartbeatIntervalSeconds: int(interval / time.Second)}, &scan, false)
	var ae *apiError
	if errors.As(err, &ae) && ae.Status == http.StatusForbidden {
		return "unknown_chip", nil
	}
	if err != nil {
		return "", err
	}
	if !scan.Allowed {
		return scan.Reason, nil
	}

	every := time.Duration(scan.HeartbeatIntervalSeconds) * time.Second
	p.cl.logf("playing session=%s interval=%s remaining=%ds", scan.SessionID, every, scan.RemainingSeconds)

	failures := 0
	wait := every
	for {
		select {
		case <-ctx.Done():
			p.end(scan.SessionID)
			return "normal", nil
		case <-p.after(wait):
		}

		var hb dto.HeartbeatResponse
		err := p.cl.call(ctx, http.MethodPost, "/v1/watch/heartbeat", dto.SessionRequest{SessionID: scan.SessionID}, &hb, false)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			// 4xx no se reintenta
			if errors.As(err, &ae) && ae.Status < 500 {
				return "", err
			}
			wait = p.backoff.Delay(failures)
			failures++
			p.cl.logf("heartbeat failed (%v), retry in %s", err, wait)
			continue
		}
		failures, wait = 0, every
		if !hb.Continue {
			return hb.Reason, nil
		}
		p.cl.logf("heartbeat ok remaining=%ds", hb.RemainingSeconds)
	}
}

// end usa un contexto propio: el del comando ya está cancelado.
func (p *player) end(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.cl.call(ctx, http.MethodPost, "/v1/watch/end", dto.SessionRequest{SessionID: sessionID}, nil, false); err != nil {
		p.cl.logf("end failed: %v", err)
	}
}
