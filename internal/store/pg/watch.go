package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dayLayout = "2006-01-02"

type watchRepo struct{ pool *pgxpool.Pool }

const sessionColumns = `id::text, profile_id::text, state, started_at, last_heartbeat,
	accumulated_seconds, interval_seconds, closed_at`

func scanSession(row pgx.Row) (*repository.WatchSession, error) {
	var s repository.WatchSession
	var state string
	err := row.Scan(&s.ID, &s.ProfileID, &state, &s.StartedAt, &s.LastHeartbeat,
		&s.AccumulatedSeconds, &s.IntervalSeconds, &s.ClosedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	s.State = repository.SessionState(state)
	return &s, nil
}

func parseDay(day string) (time.Time, error) {
	d, err := time.Parse(dayLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q", repository.ErrInvalidInput, day)
	}
	return d, nil
}

// WithProfileLock abre una transacción y toma pg_advisory_xact_lock sobre el
// perfil; el lock se libera con el commit/rollback.
func (r *watchRepo) WithProfileLock(ctx context.Context, profileID string, fn func(ctx context.Context, tx repository.WatchTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pg: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "watch:"+profileID); err != nil {
		return fmt.Errorf("pg: advisory lock: %w", err)
	}
	if err := fn(ctx, &watchTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func (r *watchRepo) GetSession(ctx context.Context, id string) (*repository.WatchSession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM watch_session WHERE id = $1`, id))
}

func (r *watchRepo) ListOpenSessions(ctx context.Context) ([]repository.WatchSession, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+` FROM watch_session WHERE state = 'open' ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.WatchSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *watchRepo) DailySeconds(ctx context.Context, profileID, day string) (int64, error) {
	return dailySeconds(ctx, r.pool, profileID, day)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func dailySeconds(ctx context.Context, q querier, profileID, day string) (int64, error) {
	d, err := parseDay(day)
	if err != nil {
		return 0, err
	}
	var secs int64
	err = q.QueryRow(ctx, `SELECT seconds FROM daily_watch WHERE profile_id = $1 AND day = $2`, profileID, d).Scan(&secs)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return secs, nil
}

// ─── WatchTx ───

type watchTx struct{ tx pgx.Tx }

func (t *watchTx) OpenSession(ctx context.Context, profileID string) (*repository.WatchSession, error) {
	return scanSession(t.tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM watch_session WHERE profile_id = $1 AND state = 'open'`, profileID))
}

func (t *watchTx) GetSession(ctx context.Context, id string) (*repository.WatchSession, error) {
	return scanSession(t.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM watch_session WHERE id = $1 FOR UPDATE`, id))
}

func (t *watchTx) InsertSession(ctx context.Context, s *repository.WatchSession) error {
	const q = `
		INSERT INTO watch_session (id, profile_id, state, started_at, last_heartbeat,
			accumulated_seconds, interval_seconds, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.Exec(ctx, q, s.ID, s.ProfileID, string(s.State), s.StartedAt, s.LastHeartbeat,
		s.AccumulatedSeconds, s.IntervalSeconds, s.ClosedAt)
	return mapErr(err)
}

func (t *watchTx) UpdateSession(ctx context.Context, s *repository.WatchSession) error {
	const q = `
		UPDATE watch_session
		SET state = $2, last_heartbeat = $3, accumulated_seconds = $4, closed_at = $5
		WHERE id = $1`

	tag, err := t.tx.Exec(ctx, q, s.ID, string(s.State), s.LastHeartbeat, s.AccumulatedSeconds, s.ClosedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (t *watchTx) DailySeconds(ctx context.Context, profileID, day string) (int64, error) {
	return dailySeconds(ctx, t.tx, profileID, day)
}

func (t *watchTx) AddDailySeconds(ctx context.Context, profileID, day string, seconds int64) error {
	if seconds < 0 {
		return repository.ErrInvalidInput
	}
	d, err := parseDay(day)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO daily_watch (profile_id, day, seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (profile_id, day)
		DO UPDATE SET seconds = daily_watch.seconds + EXCLUDED.seconds, updated_at = NOW()`

	_, err = t.tx.Exec(ctx, q, profileID, d, seconds)
	return mapErr(err)
}
