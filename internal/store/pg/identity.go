package pg

import (
	"context"
	"strings"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type identityRepo struct{ pool *pgxpool.Pool }

func (r *identityRepo) Create(ctx context.Context, in repository.CreateIdentityInput) (*repository.Identity, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.PasswordHash == "" {
		return nil, repository.ErrInvalidInput
	}
	const q = `
		INSERT INTO identity (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`

	id := repository.Identity{ID: uuid.NewString(), Email: email, PasswordHash: in.PasswordHash}
	if err := r.pool.QueryRow(ctx, q, id.ID, id.Email, id.PasswordHash).Scan(&id.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &id, nil
}

func (r *identityRepo) GetByID(ctx context.Context, id string) (*repository.Identity, error) {
	const q = `SELECT id::text, email, password_hash, created_at FROM identity WHERE id = $1`
	return r.scanOne(ctx, q, id)
}

func (r *identityRepo) GetByEmail(ctx context.Context, email string) (*repository.Identity, error) {
	const q = `SELECT id::text, email, password_hash, created_at FROM identity WHERE email = $1`
	return r.scanOne(ctx, q, strings.ToLower(strings.TrimSpace(email)))
}

func (r *identityRepo) scanOne(ctx context.Context, q string, arg any) (*repository.Identity, error) {
	var id repository.Identity
	err := r.pool.QueryRow(ctx, q, arg).Scan(&id.ID, &id.Email, &id.PasswordHash, &id.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &id, nil
}
