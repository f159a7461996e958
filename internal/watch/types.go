package watch

import (
	"errors"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
)

var (
	ErrSessionNotFound = errors.New("watch: session not found")
	ErrProfileNotFound = errors.New("watch: profile not found")
	ErrInvalidReason   = errors.New("watch: invalid close reason")
)

// Reason es el motivo de cierre de una sesión.
type Reason string

const (
	ReasonNormal       Reason = "normal"
	ReasonTimeout      Reason = "timeout"
	ReasonLimitReached Reason = "limit_reached"
)

func (r Reason) state() (repository.SessionState, bool) {
	switch r {
	case ReasonNormal:
		return repository.SessionClosedNormal, true
	case ReasonTimeout:
		return repository.SessionClosedTimeout, true
	case ReasonLimitReached:
		return repository.SessionClosedLimitReached, true
	}
	return "", false
}

func reasonOf(state repository.SessionState) Reason {
	switch state {
	case repository.SessionClosedNormal:
		return ReasonNormal
	case repository.SessionClosedTimeout:
		return ReasonTimeout
	case repository.SessionClosedLimitReached:
		return ReasonLimitReached
	}
	return ""
}

// Tracker es la vista del supervisor de heartbeats que usa el ledger.
type Tracker interface {
	Track(sessionID string, interval time.Duration, last time.Time)
	Touch(sessionID string, at time.Time)
	Untrack(sessionID string)
	Window(interval time.Duration) time.Duration
	ClampInterval(d time.Duration) time.Duration
}

// OpenResult es la decisión de TryOpen. Allowed=false solo por límite diario.
type OpenResult struct {
	Allowed bool
	Reason  Reason // ReasonLimitReached cuando !Allowed
	Session *repository.WatchSession
	// Existing: el perfil ya tenía esta sesión abierta (re-scan idempotente).
	Existing         bool
	Interval         time.Duration
	Window           time.Duration
	RemainingSeconds int64
}

// HeartbeatResult indica si el cliente debe seguir reproduciendo.
type HeartbeatResult struct {
	Continue         bool
	Reason           Reason // motivo de cierre cuando !Continue
	RemainingSeconds int64
}

// Usage es el consumo del día para un perfil.
type Usage struct {
	ProfileID        string `json:"profile_id"`
	Date             string `json:"date"`
	UsedSeconds      int64  `json:"used_seconds"`
	CeilingSeconds   int64  `json:"ceiling_seconds"`
	RemainingSeconds int64  `json:"remaining_seconds"`
}
