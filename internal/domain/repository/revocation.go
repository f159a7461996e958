package repository

import (
	"context"
	"time"
)

// RevocationEntry es una entrada del denylist de credenciales.
type RevocationEntry struct {
	JTI        string
	IdentityID string
	// ExpiresAt es la expiración original de la credencial; pasada esta fecha
	// la entrada puede borrarse.
	ExpiresAt time.Time
	RevokedAt time.Time
}

// RevocationRepository persiste el denylist.
type RevocationRepository interface {
	// Get retorna ErrNotFound si el jti no está revocado.
	// Cualquier otro error es de infraestructura.
	Get(ctx context.Context, jti string) (*RevocationEntry, error)

	// Add es idempotente por jti.
	Add(ctx context.Context, entry RevocationEntry) error

	// Prune borra las entradas con ExpiresAt <= now y retorna cuántas borró.
	Prune(ctx context.Context, now time.Time) (int, error)
}
