package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	tokens "github.com/dropDatabas3/kidplay/internal/security/token"
	"github.com/dropDatabas3/kidplay/internal/watch"
)

// Scan resuelve el chip a un perfil y pide al ledger abrir sesión.
// Chip desconocido y chip sin perfil son indistinguibles: ErrUnknownChip.
func (g *Gateway) Scan(ctx context.Context, chipToken string, interval time.Duration, now time.Time) (ScanResult, error) {
	log := g.log(ctx, "gateway.watch", "Scan")

	chipToken = strings.TrimSpace(chipToken)
	if chipToken == "" {
		g.deps.Metrics.ScanDenied("unknown_chip")
		return ScanResult{}, ErrUnknownChip
	}

	profileID, err := g.deps.Profiles.ResolveChip(ctx, tokens.SHA256Base64URL(chipToken))
	if repository.IsNotFound(err) {
		g.deps.Metrics.ScanDenied("unknown_chip")
		log.Info("scan denied", logger.Reason("unknown_chip"))
		return ScanResult{}, ErrUnknownChip
	}
	if err != nil {
		return ScanResult{}, fmt.Errorf("gateway: scan: %w", err)
	}

	res, err := g.deps.Ledger.TryOpen(ctx, profileID, interval, now)
	if errors.Is(err, watch.ErrProfileNotFound) {
		g.deps.Metrics.ScanDenied("unknown_chip")
		return ScanResult{}, ErrUnknownChip
	}
	if err != nil {
		return ScanResult{}, err
	}
	if !res.Allowed {
		g.deps.Metrics.ScanDenied(string(res.Reason))
		return ScanResult{Allowed: false, Reason: res.Reason}, nil
	}
	return ScanResult{
		Allowed:          true,
		SessionID:        res.Session.ID,
		Existing:         res.Existing,
		Interval:         res.Interval,
		Window:           res.Window,
		RemainingSeconds: res.RemainingSeconds,
	}, nil
}

func (g *Gateway) Heartbeat(ctx context.Context, sessionID string, now time.Time) (watch.HeartbeatResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return watch.HeartbeatResult{}, watch.ErrSessionNotFound
	}
	return g.deps.Ledger.Heartbeat(ctx, sessionID, now)
}

// EndPlayback es el cierre explícito (botón stop, pagehide).
func (g *Gateway) EndPlayback(ctx context.Context, sessionID string, now time.Time) error {
	if strings.TrimSpace(sessionID) == "" {
		return watch.ErrSessionNotFound
	}
	return g.deps.Ledger.Close(ctx, sessionID, watch.ReasonNormal, now)
}
