package repository

import (
	"context"
	"time"
)

// SessionState es el estado persistido de una WatchSession.
type SessionState string

const (
	SessionOpen               SessionState = "open"
	SessionClosedNormal       SessionState = "closed_normal"
	SessionClosedTimeout      SessionState = "closed_timeout"
	SessionClosedLimitReached SessionState = "closed_limit_reached"
)

// WatchSession es un período continuo de reproducción para un perfil.
type WatchSession struct {
	ID                 string
	ProfileID          string
	State              SessionState
	StartedAt          time.Time
	LastHeartbeat      time.Time
	AccumulatedSeconds int64
	// IntervalSeconds es el intervalo de heartbeat declarado (ya acotado).
	IntervalSeconds int
	ClosedAt        *time.Time
}

// Interval devuelve el intervalo declarado como duración.
func (s *WatchSession) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// WatchRepository persiste sesiones y acumulados diarios.
type WatchRepository interface {
	// WithProfileLock ejecuta fn serializado respecto de cualquier otra
	// llamada para el mismo perfil (en todas las instancias). Si fn retorna
	// error no se persiste nada de lo hecho a través de tx.
	WithProfileLock(ctx context.Context, profileID string, fn func(ctx context.Context, tx WatchTx) error) error

	// GetSession lee una sesión sin lock; ErrNotFound si no existe.
	GetSession(ctx context.Context, sessionID string) (*WatchSession, error)

	// ListOpenSessions retorna todas las sesiones en estado open.
	ListOpenSessions(ctx context.Context) ([]WatchSession, error)

	// DailySeconds lee el acumulado de un perfil para una fecha (YYYY-MM-DD).
	DailySeconds(ctx context.Context, profileID, day string) (int64, error)
}

// WatchTx son las operaciones disponibles dentro de WithProfileLock.
type WatchTx interface {
	// OpenSession retorna la sesión abierta del perfil o ErrNotFound.
	OpenSession(ctx context.Context, profileID string) (*WatchSession, error)
	GetSession(ctx context.Context, sessionID string) (*WatchSession, error)
	// InsertSession retorna ErrConflict si el perfil ya tiene una sesión abierta.
	InsertSession(ctx context.Context, s *WatchSession) error
	UpdateSession(ctx context.Context, s *WatchSession) error
	DailySeconds(ctx context.Context, profileID, day string) (int64, error)
	AddDailySeconds(ctx context.Context, profileID, day string, seconds int64) error
}
