// Package revocation es el denylist de credenciales: consulta puntual por
// jti, alta idempotente y limpieza de entradas vencidas.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/kidplay/internal/cache"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

const cachePrefix = "revoked:"

// Store combina el repositorio con un cache positivo: solo se cachean los
// jti revocados, hasta su expiración original. Un "no revocado" siempre va
// a storage.
type Store struct {
	repo  repository.RevocationRepository
	cache cache.Client
	now   func() time.Time
}

// NewStore crea el store. c puede ser nil.
func NewStore(repo repository.RevocationRepository, c cache.Client) *Store {
	return &Store{repo: repo, cache: c, now: time.Now}
}

// IsRevoked retorna error solo si storage no pudo responder. Un fallo del
// cache nunca se convierte en error: se loguea y se consulta storage.
func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Component("revocation"), logger.JTI(jti))

	if s.cache != nil {
		_, err := s.cache.Get(ctx, cachePrefix+jti)
		if err == nil {
			return true, nil
		}
		if !cache.IsNotFound(err) {
			log.Warn("revocation cache get failed, falling back to storage", logger.Err(err))
		}
	}

	entry, err := s.repo.Get(ctx, jti)
	if repository.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revocation: lookup: %w", err)
	}
	s.remember(ctx, entry)
	return true, nil
}

// Add es idempotente por jti.
func (s *Store) Add(ctx context.Context, entry repository.RevocationEntry) error {
	if entry.JTI == "" {
		return fmt.Errorf("revocation: add: %w", repository.ErrInvalidInput)
	}
	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = s.now().UTC()
	}
	if err := s.repo.Add(ctx, entry); err != nil {
		return fmt.Errorf("revocation: add: %w", err)
	}
	s.remember(ctx, &entry)
	return nil
}

// Prune borra las entradas vencidas a now.
func (s *Store) Prune(ctx context.Context, now time.Time) (int, error) {
	n, err := s.repo.Prune(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("revocation: prune: %w", err)
	}
	return n, nil
}

func (s *Store) remember(ctx context.Context, entry *repository.RevocationEntry) {
	if s.cache == nil {
		return
	}
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, cachePrefix+entry.JTI, entry.IdentityID, ttl); err != nil {
		logger.From(ctx).Warn("revocation cache set failed",
			logger.Component("revocation"), logger.JTI(entry.JTI), logger.Err(err))
	}
}
