package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/kidplay/internal/alert"
	"github.com/dropDatabas3/kidplay/internal/audit"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/jwt"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	"github.com/dropDatabas3/kidplay/internal/security/password"
	"go.uber.org/zap"
)

func (g *Gateway) log(ctx context.Context, component, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Component(component), logger.Op(op))
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\r\n")
}

// Register crea la cuenta del padre y devuelve su primer par de credenciales.
func (g *Gateway) Register(ctx context.Context, email, plain string) (TokenPair, error) {
	log := g.log(ctx, "gateway.auth", "Register")

	email = normalizeEmail(email)
	if !validEmail(email) {
		return TokenPair{}, ErrInvalidInput
	}
	if ok, reasons := g.deps.Policy.Validate(plain); !ok {
		return TokenPair{}, &PolicyError{Reasons: reasons}
	}

	hash, err := password.Hash(g.deps.Hash, plain)
	if err != nil {
		return TokenPair{}, fmt.Errorf("gateway: register: %w", err)
	}
	ident, err := g.deps.Identities.Create(ctx, repository.CreateIdentityInput{Email: email, PasswordHash: hash})
	if repository.IsConflict(err) {
		return TokenPair{}, ErrEmailTaken
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("gateway: register: %w", err)
	}

	log.Info("identity registered", logger.IdentityID(ident.ID))
	audit.Log(ctx, audit.EventRegister, logger.IdentityID(ident.ID), audit.Email(email))
	return g.issuePair(ident.ID)
}

// Login verifica email+password. Un email desconocido verifica contra un hash
// dummy para que el tiempo de respuesta no revele si la cuenta existe.
func (g *Gateway) Login(ctx context.Context, email, plain string) (TokenPair, error) {
	log := g.log(ctx, "gateway.auth", "Login")

	email = normalizeEmail(email)
	if email == "" || plain == "" {
		return TokenPair{}, ErrInvalidCredentials
	}

	ident, err := g.deps.Identities.GetByEmail(ctx, email)
	switch {
	case repository.IsNotFound(err):
		_ = password.Verify(plain, password.DummyHash())
		log.Debug("unknown email")
		audit.Log(ctx, audit.EventLoginFailed, audit.Email(email), logger.Reason("unknown_email"))
		return TokenPair{}, ErrInvalidCredentials
	case err != nil:
		return TokenPair{}, fmt.Errorf("gateway: login: %w", err)
	}

	if !password.Verify(plain, ident.PasswordHash) {
		log.Debug("bad password", logger.IdentityID(ident.ID))
		audit.Log(ctx, audit.EventLoginFailed, logger.IdentityID(ident.ID), logger.Reason("bad_password"))
		return TokenPair{}, ErrInvalidCredentials
	}
	audit.Log(ctx, audit.EventLogin, logger.IdentityID(ident.ID))
	return g.issuePair(ident.ID)
}

func (g *Gateway) issuePair(identityID string) (TokenPair, error) {
	access, err := g.deps.Tokens.Issue(identityID, jwt.KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := g.deps.Tokens.Issue(identityID, jwt.KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// RefreshAccess rota un refresh en un access nuevo. Con el denylist caído
// emite igual, marca Degraded y levanta una alerta.
func (g *Gateway) RefreshAccess(ctx context.Context, refresh string) (Refreshed, error) {
	refresh = strings.TrimSpace(refresh)
	if refresh == "" {
		return Refreshed{}, ErrMissingCredential
	}

	access, err := g.deps.Tokens.Rotate(ctx, refresh)
	if errors.Is(err, jwt.ErrRevocationCheckUnavailable) {
		g.degraded(ctx, "RefreshAccess", access.IdentityID, err)
		return Refreshed{Access: access, Degraded: true}, nil
	}
	if err != nil {
		return Refreshed{}, err
	}
	return Refreshed{Access: access}, nil
}

// Logout revoca cada credencial presente que verifique. Es best-effort:
// siempre retorna nil.
func (g *Gateway) Logout(ctx context.Context, access, refresh string) error {
	log := g.log(ctx, "gateway.auth", "Logout")

	revoked := 0
	for _, c := range []struct {
		raw  string
		kind jwt.Kind
	}{
		{strings.TrimSpace(access), jwt.KindAccess},
		{strings.TrimSpace(refresh), jwt.KindRefresh},
	} {
		if c.raw == "" {
			continue
		}
		if err := g.deps.Tokens.RevokeToken(ctx, c.raw, c.kind); err != nil {
			log.Debug("credential not revoked", logger.Kind(string(c.kind)), logger.Err(err))
			continue
		}
		revoked++
	}
	audit.Log(ctx, audit.EventLogout, logger.Count(revoked))
	return nil
}

// Authenticate valida un access. Si el denylist no responde deja pasar con
// Degraded=true y levanta una alerta de operador.
func (g *Gateway) Authenticate(ctx context.Context, access string) (Principal, error) {
	access = strings.TrimSpace(access)
	if access == "" {
		return Principal{}, ErrMissingCredential
	}

	claims, err := g.deps.Tokens.Verify(ctx, access, jwt.KindAccess)
	if errors.Is(err, jwt.ErrRevocationCheckUnavailable) {
		g.degraded(ctx, "Authenticate", claims.IdentityID, err)
		return Principal{IdentityID: claims.IdentityID, Degraded: true}, nil
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{IdentityID: claims.IdentityID}, nil
}

func (g *Gateway) degraded(ctx context.Context, op, identityID string, cause error) {
	g.log(ctx, "gateway.auth", op).Error("revocation check unavailable, allowing",
		logger.IdentityID(identityID), logger.Err(cause))
	audit.Log(ctx, audit.EventDegradedAccess, logger.IdentityID(identityID), logger.Op(op))
	g.deps.Alerts.Raise(ctx, alert.Alert{
		Kind:   alert.KindRevocationUnavailable,
		Detail: fmt.Sprintf("%s allowed without revocation check: %v", op, cause),
	})
}
