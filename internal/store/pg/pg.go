// Package pg implementa los repositorios sobre PostgreSQL con pgxpool.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config de conexión.
type Config struct {
	DSN             string
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

// Connection es un pool activo más sus repositorios.
type Connection struct {
	pool *pgxpool.Pool
}

// Connect abre el pool y verifica la conexión.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pg: parse DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	} else {
		poolCfg.MaxConns = 10
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping failed: %w", err)
	}
	return &Connection{pool: pool}, nil
}

func (c *Connection) Name() string { return "postgres" }

// Pool expone el pool (migraciones).
func (c *Connection) Pool() *pgxpool.Pool { return c.pool }

func (c *Connection) Ping(ctx context.Context) error { return c.pool.Ping(ctx) }

func (c *Connection) Close() error {
	c.pool.Close()
	return nil
}

// ─── Repositorios ───

func (c *Connection) Identities() repository.IdentityRepository { return &identityRepo{pool: c.pool} }

func (c *Connection) Profiles() repository.ProfileRepository { return &profileRepo{pool: c.pool} }

func (c *Connection) Revocations() repository.RevocationRepository {
	return &revocationRepo{pool: c.pool}
}

func (c *Connection) Watch() repository.WatchRepository { return &watchRepo{pool: c.pool} }

// mapErr traduce errores de pgx a los del dominio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", repository.ErrNotFound, pgErr.ConstraintName)
		case "22P02": // invalid_text_representation (uuid mal formado)
			return repository.ErrNotFound
		case "23514": // check_violation
			return fmt.Errorf("%w: %s", repository.ErrInvalidInput, pgErr.ConstraintName)
		}
	}
	return err
}

// mapLookupErr solo reconoce "no existe"; el resto sale tal cual.
func mapLookupErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
