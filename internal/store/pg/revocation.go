package pg

import (
	"context"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

type revocationRepo struct{ pool *pgxpool.Pool }

func (r *revocationRepo) Get(ctx context.Context, jti string) (*repository.RevocationEntry, error) {
	const q = `
		SELECT jti, identity_id::text, expires_at, revoked_at
		FROM revoked_token WHERE jti = $1`

	var e repository.RevocationEntry
	if err := r.pool.QueryRow(ctx, q, jti).Scan(&e.JTI, &e.IdentityID, &e.ExpiresAt, &e.RevokedAt); err != nil {
		// Ojo: solo ErrNoRows es "no revocado"; una tabla faltante es infraestructura.
		return nil, mapLookupErr(err)
	}
	return &e, nil
}

func (r *revocationRepo) Add(ctx context.Context, e repository.RevocationEntry) error {
	const q = `
		INSERT INTO revoked_token (jti, identity_id, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING`

	if e.RevokedAt.IsZero() {
		e.RevokedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, q, e.JTI, e.IdentityID, e.ExpiresAt, e.RevokedAt)
	return mapErr(err)
}

func (r *revocationRepo) Prune(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM revoked_token WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
