// Package gateway es la superficie de casos de uso: scan de chip, heartbeats,
// login/refresh/logout y la autenticación de los endpoints del padre.
//
// Los controllers HTTP y el CLI hablan solo con Gateway.
package gateway

import (
	"errors"
	"time"

	"github.com/dropDatabas3/kidplay/internal/alert"
	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/jwt"
	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/security/password"
	"github.com/dropDatabas3/kidplay/internal/watch"
)

var (
	ErrUnknownChip        = errors.New("gateway: unknown chip")
	ErrInvalidCredentials = errors.New("gateway: invalid credentials")
	ErrEmailTaken         = errors.New("gateway: email already registered")
	ErrWeakPassword       = errors.New("gateway: password does not meet policy")
	ErrInvalidInput       = errors.New("gateway: invalid input")
	ErrMissingCredential  = errors.New("gateway: missing credential")
	ErrForbidden          = errors.New("gateway: forbidden")
	ErrChipTaken          = errors.New("gateway: chip already bound")
)

// PolicyError detalla por qué un password no pasa la política.
type PolicyError struct {
	Reasons []string
}

func (e *PolicyError) Error() string { return ErrWeakPassword.Error() }

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

// Deps contiene las dependencias del gateway.
type Deps struct {
	Identities repository.IdentityRepository
	Profiles   repository.ProfileRepository
	Tokens     *jwt.Service
	Ledger     *watch.Ledger
	Alerts     *alert.Alerter   // nil = sin alertas
	Metrics    *metrics.Metrics // nil = sin métricas

	Policy          password.Policy
	Hash            password.Params
	MaxDailyMinutes int // tope de daily_limit_minutes, default 1440
}

type Gateway struct {
	deps Deps
}

func New(deps Deps) *Gateway {
	if deps.Policy.MinLength == 0 && deps.Policy.MaxLength == 0 {
		deps.Policy = password.DefaultPolicy
	}
	if deps.Hash.KeyLen == 0 {
		deps.Hash = password.Default
	}
	if deps.MaxDailyMinutes <= 0 {
		deps.MaxDailyMinutes = 24 * 60
	}
	return &Gateway{deps: deps}
}

// TokenPair es el resultado de register/login.
type TokenPair struct {
	Access  jwt.Credential
	Refresh jwt.Credential
}

// Refreshed es un access rotado. Degraded indica que el denylist no respondió.
type Refreshed struct {
	Access   jwt.Credential
	Degraded bool
}

// Principal es la identidad autenticada de un request.
type Principal struct {
	IdentityID string
	// Degraded: la credencial verificó pero no se pudo consultar el denylist.
	Degraded bool
}

// ScanResult es la decisión de un scan de chip.
type ScanResult struct {
	Allowed          bool
	Reason           watch.Reason
	SessionID        string
	Existing         bool
	Interval         time.Duration
	Window           time.Duration
	RemainingSeconds int64
}
