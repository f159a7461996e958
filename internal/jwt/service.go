// Package jwt emite, verifica, rota y revoca credenciales firmadas (EdDSA).
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RevocationStore es lo que el service necesita del denylist.
type RevocationStore interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Add(ctx context.Context, entry repository.RevocationEntry) error
}

// IdentityLookup confirma que una cuenta sigue existiendo.
type IdentityLookup interface {
	GetByID(ctx context.Context, id string) (*repository.Identity, error)
}

type Config struct {
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Service struct {
	cfg         Config
	keys        *KeySet
	revocations RevocationStore
	identities  IdentityLookup
	metrics     *metrics.Metrics

	// Now es el reloj para iat/exp y validación. Reemplazable en tests.
	Now func() time.Time
}

func NewService(cfg Config, keys *KeySet, rev RevocationStore, ids IdentityLookup, m *metrics.Metrics) *Service {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "kidplay"
	}
	return &Service{
		cfg:         cfg,
		keys:        keys,
		revocations: rev,
		identities:  ids,
		metrics:     m,
		Now:         time.Now,
	}
}

// JWKS devuelve la clave pública en formato JWKS.
func (s *Service) JWKS() []byte { return s.keys.JWKSJSON() }

func (s *Service) ttl(kind Kind) time.Duration {
	if kind == KindRefresh {
		return s.cfg.RefreshTTL
	}
	return s.cfg.AccessTTL
}

// Issue firma una credencial nueva con jti aleatorio.
func (s *Service) Issue(identityID string, kind Kind) (Credential, error) {
	if identityID == "" || !kind.Valid() {
		return Credential{}, fmt.Errorf("jwt: issue: %w", repository.ErrInvalidInput)
	}
	now := s.Now().UTC().Truncate(time.Second)
	exp := now.Add(s.ttl(kind))
	jti := uuid.NewString()

	claims := Claims{
		IdentityID: identityID,
		Kind:       kind,
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        jti,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = s.keys.KID
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(s.keys.Priv)
	if err != nil {
		return Credential{}, fmt.Errorf("jwt: sign: %w", err)
	}
	s.metrics.TokenIssued(string(kind))
	return Credential{
		Token:      signed,
		Kind:       kind,
		JTI:        jti,
		IdentityID: identityID,
		IssuedAt:   now,
		ExpiresAt:  exp,
	}, nil
}

// parse valida firma, estructura, iss y exp. No consulta el denylist.
func (s *Service) parse(raw string) (*Claims, error) {
	if raw == "" {
		return nil, ErrMalformed
	}
	claims := &Claims{}
	_, err := jwtv5.ParseWithClaims(raw, claims, s.keyfunc,
		jwtv5.WithValidMethods([]string{s.keys.Alg}),
		jwtv5.WithIssuer(s.cfg.Issuer),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithIssuedAt(),
		jwtv5.WithTimeFunc(s.Now),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	if claims.IdentityID == "" || claims.ID == "" || !claims.Kind.Valid() {
		return nil, ErrMalformed
	}
	return claims, nil
}

func (s *Service) keyfunc(t *jwtv5.Token) (any, error) {
	if kid, _ := t.Header["kid"].(string); kid != "" && kid != s.keys.KID {
		return nil, errors.New("unknown kid")
	}
	return s.keys.Pub, nil
}

// Verify valida la credencial para el kind esperado y consulta el denylist.
//
// Si el denylist falla devuelve las claims junto con
// ErrRevocationCheckUnavailable; la política la decide el caller.
func (s *Service) Verify(ctx context.Context, raw string, expected Kind) (*Claims, error) {
	claims, err := s.parse(raw)
	if err != nil {
		s.metrics.VerifyFailed(reasonOf(err))
		return nil, err
	}
	if claims.Kind != expected {
		s.metrics.VerifyFailed(reasonOf(ErrWrongKind))
		return nil, ErrWrongKind
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		logger.From(ctx).Warn("revocation lookup failed",
			logger.Layer("service"), logger.Component("jwt"), logger.Op("Verify"),
			logger.JTI(claims.ID), logger.Err(err),
		)
		return claims, fmt.Errorf("%w: %w", ErrRevocationCheckUnavailable, err)
	}
	if revoked {
		s.metrics.VerifyFailed(reasonOf(ErrRevoked))
		return nil, ErrRevoked
	}
	return claims, nil
}

// Rotate verifica el refresh, confirma que la cuenta existe y emite un
// access nuevo. El refresh sigue siendo válido.
//
// En modo degradado (denylist caído) devuelve la credencial junto con
// ErrRevocationCheckUnavailable.
func (s *Service) Rotate(ctx context.Context, refreshRaw string) (Credential, error) {
	claims, verr := s.Verify(ctx, refreshRaw, KindRefresh)
	if verr != nil && !errors.Is(verr, ErrRevocationCheckUnavailable) {
		return Credential{}, verr
	}

	if _, err := s.identities.GetByID(ctx, claims.IdentityID); err != nil {
		if repository.IsNotFound(err) {
			return Credential{}, ErrIdentityGone
		}
		return Credential{}, fmt.Errorf("jwt: rotate: identity lookup: %w", err)
	}

	access, err := s.Issue(claims.IdentityID, KindAccess)
	if err != nil {
		return Credential{}, err
	}
	return access, verr
}

// Revoke agrega la credencial al denylist con su expiración original.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	entry := repository.RevocationEntry{
		JTI:        claims.ID,
		IdentityID: claims.IdentityID,
		ExpiresAt:  claims.Expiry().UTC(),
		RevokedAt:  s.Now().UTC(),
	}
	if err := s.revocations.Add(ctx, entry); err != nil {
		return fmt.Errorf("jwt: revoke: %w", err)
	}
	return nil
}

// RevokeToken revoca una credencial cruda del kind indicado. Una credencial
// vencida ya no sirve y no necesita entrada en el denylist.
func (s *Service) RevokeToken(ctx context.Context, raw string, kind Kind) error {
	claims, err := s.parse(raw)
	if errors.Is(err, ErrExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if claims.Kind != kind {
		return ErrWrongKind
	}
	return s.Revoke(ctx, claims)
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrWrongKind):
		return "wrong_kind"
	case errors.Is(err, ErrRevoked):
		return "revoked"
	default:
		return "malformed"
	}
}
