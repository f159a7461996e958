// Package store abre la conexión de storage configurada (memory | postgres)
// y expone los repositorios del dominio.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/kidplay/internal/domain/repository"
	"github.com/dropDatabas3/kidplay/internal/store/memory"
	"github.com/dropDatabas3/kidplay/internal/store/pg"
	migrations "github.com/dropDatabas3/kidplay/migrations/postgres"
)

// Connection es lo que ven los services.
type Connection interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error

	Identities() repository.IdentityRepository
	Profiles() repository.ProfileRepository
	Revocations() repository.RevocationRepository
	Watch() repository.WatchRepository
}

type Config struct {
	Driver          string // "memory" | "postgres"
	DSN             string
	MaxConns        int
	ConnMaxLifetime time.Duration
	// AutoMigrate aplica las migraciones embebidas al conectar (postgres).
	AutoMigrate bool
}

// Open crea la conexión según cfg.Driver.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	switch cfg.Driver {
	case "", "memory":
		return memory.New(), nil
	case "postgres", "pg":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: postgres requires a DSN")
		}
		conn, err := pg.Connect(ctx, pg.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns, ConnMaxLifetime: cfg.ConnMaxLifetime})
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if _, err := Migrate(ctx, conn); err != nil {
				_ = conn.Close()
				return nil, err
			}
		}
		return conn, nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// Migrate aplica las migraciones embebidas.
func Migrate(ctx context.Context, conn *pg.Connection) (*pg.MigrationResult, error) {
	res, err := pg.NewMigrator(migrations.FS, migrations.Dir).Run(ctx, conn.Pool())
	if err != nil {
		return res, fmt.Errorf("store: migrate: %w", err)
	}
	return res, nil
}
