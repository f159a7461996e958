package repository

import (
	"context"
	"time"
)

// Identity es una cuenta padre. ID es el único identificador que existe:
// es lo que se firma dentro de cada credencial.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateIdentityInput contiene los datos para registrar una cuenta.
type CreateIdentityInput struct {
	Email        string
	PasswordHash string
}

// IdentityRepository define operaciones sobre cuentas padre.
type IdentityRepository interface {
	// Create registra una cuenta. Retorna ErrConflict si el email ya existe.
	Create(ctx context.Context, input CreateIdentityInput) (*Identity, error)

	// GetByID retorna ErrNotFound si la cuenta no existe (o fue borrada).
	GetByID(ctx context.Context, id string) (*Identity, error)

	// GetByEmail busca por email normalizado (lowercase).
	GetByEmail(ctx context.Context, email string) (*Identity, error)
}
