package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dropDatabas3/kidplay/internal/app"
	"github.com/dropDatabas3/kidplay/internal/config"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
)

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func main() {
	var (
		flagEnvFile = flag.String("env-file", ".env", "ruta a .env (opcional)")
		flagConfig  = flag.String("config", "", "ruta a config.yaml (vacío = solo env/defaults)")
	)
	flag.Parse()

	if fileExists(*flagEnvFile) {
		_ = godotenv.Load(*flagEnvFile)
	}

	path := *flagConfig
	if path == "" && fileExists("configs/config.yaml") {
		path = "configs/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, ServiceName: "kidplay"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, log)

	a, err := app.New(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatal("wiring failed", logger.Err(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close failed", logger.Err(err))
		}
	}()

	log.Info("kidplay starting", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))
	if err := a.Run(ctx); err != nil {
		log.Error("service stopped with error", logger.Err(err))
		return
	}
	log.Info("bye")
}
