package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/kidplay/internal/audit"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	tokens "github.com/dropDatabas3/kidplay/internal/security/token"
	"github.com/dropDatabas3/kidplay/internal/watch"
)

// CreateProfile crea un perfil de niño para el padre autenticado.
// dailyLimitMinutes == 0 usa el techo por defecto.
func (g *Gateway) CreateProfile(ctx context.Context, p Principal, name string, dailyLimitMinutes int) (*repository.Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" || dailyLimitMinutes < 0 || dailyLimitMinutes > g.deps.MaxDailyMinutes {
		return nil, ErrInvalidInput
	}
	prof, err := g.deps.Profiles.CreateProfile(ctx, repository.CreateProfileInput{
		OwnerID:           p.IdentityID,
		Name:              name,
		DailyLimitMinutes: dailyLimitMinutes,
	})
	if repository.IsNotFound(err) {
		// la cuenta del token ya no existe
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: create profile: %w", err)
	}
	g.log(ctx, "gateway.profile", "CreateProfile").Info("profile created",
		logger.IdentityID(p.IdentityID), logger.ProfileID(prof.ID))
	return prof, nil
}

// BindChip asocia un chip a un perfil del padre. Se guarda solo el hash.
func (g *Gateway) BindChip(ctx context.Context, p Principal, profileID, chipToken string) error {
	prof, err := g.owned(ctx, p, profileID)
	if err != nil {
		return err
	}
	chipToken = strings.TrimSpace(chipToken)
	if chipToken == "" {
		return ErrInvalidInput
	}
	err = g.deps.Profiles.BindChip(ctx, repository.ChipBinding{
		ChipHash:  tokens.SHA256Base64URL(chipToken),
		ProfileID: prof.ID,
		OwnerID:   prof.OwnerID,
	})
	switch {
	case repository.IsConflict(err):
		return ErrChipTaken
	case repository.IsNotFound(err):
		return watch.ErrProfileNotFound
	case err != nil:
		return fmt.Errorf("gateway: bind chip: %w", err)
	}
	audit.Log(ctx, audit.EventChipBound, logger.IdentityID(p.IdentityID), logger.ProfileID(prof.ID))
	return nil
}

// Usage devuelve el consumo de hoy de un perfil del padre.
func (g *Gateway) Usage(ctx context.Context, p Principal, profileID string, now time.Time) (watch.Usage, error) {
	if _, err := g.owned(ctx, p, profileID); err != nil {
		return watch.Usage{}, err
	}
	return g.deps.Ledger.Usage(ctx, profileID, now)
}

func (g *Gateway) owned(ctx context.Context, p Principal, profileID string) (*repository.Profile, error) {
	prof, err := g.deps.Profiles.GetProfile(ctx, strings.TrimSpace(profileID))
	if repository.IsNotFound(err) {
		return nil, watch.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("gateway: profile: %w", err)
	}
	if prof.OwnerID != p.IdentityID {
		return nil, ErrForbidden
	}
	return prof, nil
}
