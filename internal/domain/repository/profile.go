package repository

import (
	"context"
	"time"
)

// Profile es un perfil infantil; pertenece a exactamente una Identity.
type Profile struct {
	ID      string
	OwnerID string
	Name    string
	// DailyLimitMinutes es el techo diario configurado. 0 = usar el default.
	DailyLimitMinutes int
	CreatedAt         time.Time
}

// CreateProfileInput contiene los datos para crear un perfil.
type CreateProfileInput struct {
	OwnerID           string
	Name              string
	DailyLimitMinutes int
}

// ChipBinding asocia el hash de un chip a un perfil.
type ChipBinding struct {
	ChipHash  string
	ProfileID string
	OwnerID   string
	CreatedAt time.Time
}

// ProfileRepository define operaciones sobre perfiles y chips.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, input CreateProfileInput) (*Profile, error)

	// GetProfile retorna ErrNotFound si el perfil no existe.
	GetProfile(ctx context.Context, profileID string) (*Profile, error)

	// BindChip retorna ErrConflict si el chip ya está asociado a un perfil.
	BindChip(ctx context.Context, binding ChipBinding) error

	// ResolveChip retorna el profileID asociado al hash del chip o ErrNotFound.
	ResolveChip(ctx context.Context, chipHash string) (string, error)
}
