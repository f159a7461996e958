package pg

import (
	"context"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type profileRepo struct{ pool *pgxpool.Pool }

func (r *profileRepo) CreateProfile(ctx context.Context, in repository.CreateProfileInput) (*repository.Profile, error) {
	if in.OwnerID == "" || in.DailyLimitMinutes < 0 {
		return nil, repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO profile (id, owner_id, name, daily_limit_minutes)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	p := repository.Profile{
		ID:                uuid.NewString(),
		OwnerID:           in.OwnerID,
		Name:              in.Name,
		DailyLimitMinutes: in.DailyLimitMinutes,
	}
	if err := r.pool.QueryRow(ctx, q, p.ID, p.OwnerID, p.Name, p.DailyLimitMinutes).Scan(&p.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *profileRepo) GetProfile(ctx context.Context, id string) (*repository.Profile, error) {
	const q = `
		SELECT id::text, owner_id::text, name, daily_limit_minutes, created_at
		FROM profile WHERE id = $1`

	var p repository.Profile
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.OwnerID, &p.Name, &p.DailyLimitMinutes, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *profileRepo) BindChip(ctx context.Context, b repository.ChipBinding) error {
	if b.ChipHash == "" || b.ProfileID == "" {
		return repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO chip_binding (chip_hash, profile_id, owner_id)
		SELECT $1, p.id, p.owner_id FROM profile p WHERE p.id = $2`

	tag, err := r.pool.Exec(ctx, q, b.ChipHash, b.ProfileID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *profileRepo) ResolveChip(ctx context.Context, chipHash string) (string, error) {
	const q = `SELECT profile_id::text FROM chip_binding WHERE chip_hash = $1`
	var profileID string
	if err := r.pool.QueryRow(ctx, q, chipHash).Scan(&profileID); err != nil {
		return "", mapErr(err)
	}
	return profileID, nil
}
