package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/dropDatabas3/kidplay/internal/config"
	"github.com/dropDatabas3/kidplay/internal/store"
	"github.com/dropDatabas3/kidplay/internal/store/pg"
)

// Aplica las migraciones embebidas de migrations/postgres. Solo "up": las
// migraciones ya aplicadas se saltean.
func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (vacío = env/defaults)")
		envFile    = flag.String("env-file", ".env", "Path to .env")
		dsn        = flag.String("dsn", "", "Postgres DSN (override de storage.dsn)")
		timeout    = flag.Duration("timeout", 2*time.Minute, "Timeout total")
	)
	flag.Parse()

	if _, err := os.Stat(*envFile); err == nil {
		_ = godotenv.Load(*envFile)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	target := cfg.Storage.DSN
	if *dsn != "" {
		target = *dsn
	}
	if target == "" {
		log.Fatal("no DSN: set storage.dsn, STORAGE_DSN or -dsn")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, err := pg.Connect(ctx, pg.Config{DSN: target, MaxConns: 2})
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	res, err := store.Migrate(ctx, conn)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	if len(res.Applied) == 0 {
		log.Printf("Nothing to do (%d already applied).", len(res.Skipped))
		return
	}
	log.Printf("Applied %d migration(s) %v in %s.", len(res.Applied), res.Applied, res.Duration.Truncate(time.Millisecond))
}
