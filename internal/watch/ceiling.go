package watch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dropDatabas3/kidplay/internal/cache"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	"golang.org/x/sync/singleflight"
)

const ceilingPrefix = "ceiling:"

// CeilingResolver resuelve el techo diario (en segundos) de un perfil.
// Cachea el resultado y colapsa lecturas concurrentes del mismo perfil.
type CeilingResolver struct {
	profiles       repository.ProfileRepository
	cache          cache.Client
	ttl            time.Duration
	defaultMinutes int
	sf             singleflight.Group
}

func NewCeilingResolver(profiles repository.ProfileRepository, c cache.Client, defaultMinutes int, ttl time.Duration) *CeilingResolver {
	if defaultMinutes <= 0 {
		defaultMinutes = 60
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CeilingResolver{profiles: profiles, cache: c, ttl: ttl, defaultMinutes: defaultMinutes}
}

func (r *CeilingResolver) Resolve(ctx context.Context, profileID string) (int64, error) {
	if r.cache != nil {
		if v, err := r.cache.Get(ctx, ceilingPrefix+profileID); err == nil {
			if secs, perr := strconv.ParseInt(v, 10, 64); perr == nil {
				return secs, nil
			}
		}
	}

	v, err, _ := r.sf.Do(profileID, func() (any, error) {
		p, err := r.profiles.GetProfile(ctx, profileID)
		if repository.IsNotFound(err) {
			return int64(0), ErrProfileNotFound
		}
		if err != nil {
			return int64(0), fmt.Errorf("watch: ceiling: %w", err)
		}
		minutes := p.DailyLimitMinutes
		if minutes <= 0 {
			minutes = r.defaultMinutes
		}
		secs := int64(minutes) * 60
		if r.cache != nil {
			if err := r.cache.Set(ctx, ceilingPrefix+profileID, strconv.FormatInt(secs, 10), r.ttl); err != nil {
				logger.From(ctx).Warn("ceiling cache set failed", logger.ProfileID(profileID), logger.Err(err))
			}
		}
		return secs, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}
