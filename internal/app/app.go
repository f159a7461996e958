// Package app arma el servicio completo a partir de la configuración:
// storage, cache, tokens, ledger, supervisor, gateway y HTTP.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dropDatabas3/kidplay/internal/alert"
	"github.com/dropDatabas3/kidplay/internal/cache"
	"github.com/dropDatabas3/kidplay/internal/config"
	"github.com/dropDatabas3/kidplay/internal/gateway"
	"github.com/dropDatabas3/kidplay/internal/heartbeat"
	healthctrl "github.com/dropDatabas3/kidplay/internal/http/controllers/health"
	"github.com/dropDatabas3/kidplay/internal/http/router"
	"github.com/dropDatabas3/kidplay/internal/http/server"
	"github.com/dropDatabas3/kidplay/internal/jwt"
	"github.com/dropDatabas3/kidplay/internal/metrics"
	"github.com/dropDatabas3/kidplay/internal/observability/logger"
	"github.com/dropDatabas3/kidplay/internal/rate"
	"github.com/dropDatabas3/kidplay/internal/revocation"
	"github.com/dropDatabas3/kidplay/internal/store"
	"github.com/dropDatabas3/kidplay/internal/util"
	"github.com/dropDatabas3/kidplay/internal/watch"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// App es el servicio cableado.
type App struct {
	Config     *config.Config
	Store      store.Connection
	Cache      cache.Client
	Metrics    *metrics.Metrics
	Tokens     *jwt.Service
	Ledger     *watch.Ledger
	Supervisor *heartbeat.Supervisor
	Gateway    *gateway.Gateway
	Handler    http.Handler

	pruner *revocation.Pruner
}

// New construye la App. reg nil usa un registry propio.
func New(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*App, error) {
	log := logger.From(ctx).With(logger.Layer("app"))
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m, err := metrics.New(reg)
	if err != nil {
		return nil, fmt.Errorf("app: metrics: %w", err)
	}

	conn, err := store.Open(ctx, store.Config{
		Driver:          cfg.Storage.Driver,
		DSN:             cfg.Storage.DSN,
		MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		AutoMigrate:     cfg.Storage.AutoMigrate,
	})
	if err != nil {
		return nil, err
	}

	cc, err := cache.New(ctx, cache.Config{
		Kind:     cfg.Cache.Kind,
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
	})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	keys, err := signingKeys(cfg)
	if err != nil {
		_ = cc.Close()
		_ = conn.Close()
		return nil, err
	}
	if cfg.JWT.SigningKey == "" {
		log.Warn("jwt signing key not configured, using an ephemeral key")
	}

	var sinks []alert.Sink
	if cfg.Alerts.SMTP.Enabled() {
		sinks = append(sinks, alert.NewSMTPSink(cfg.Alerts.SMTP))
	}
	alerter := alert.New(m, cfg.AlertThrottle(), sinks...)

	revs := revocation.NewStore(conn.Revocations(), cc)
	tokens := jwt.NewService(jwt.Config{
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}, keys, revs, conn.Identities(), m)

	sup := heartbeat.NewSupervisor(heartbeat.Config{
		Multiplier:      cfg.Watch.HeartbeatMultiplier,
		MinInterval:     cfg.MinInterval(),
		MaxInterval:     cfg.MaxInterval(),
		DefaultInterval: cfg.DefaultInterval(),
	}, heartbeat.RealClock{}, m)
	ceilings := watch.NewCeilingResolver(conn.Profiles(), cc, cfg.Watch.DefaultDailyMinutes, cfg.CeilingCacheTTL())
	ledger := watch.NewLedger(watch.Config{Location: cfg.Location()}, conn.Watch(), ceilings, sup, m)
	sup.Bind(ledger)

	gw := gateway.New(gateway.Deps{
		Identities: conn.Identities(),
		Profiles:   conn.Profiles(),
		Tokens:     tokens,
		Ledger:     ledger,
		Alerts:     alerter,
		Metrics:    m,
	})

	a := &App{
		Config:     cfg,
		Store:      conn,
		Cache:      cc,
		Metrics:    m,
		Tokens:     tokens,
		Ledger:     ledger,
		Supervisor: sup,
		Gateway:    gw,
		pruner: &revocation.Pruner{
			Store:    revs,
			Interval: cfg.PruneInterval(),
			Metrics:  m,
		},
	}

	rd := router.Deps{
		Gateway: gw,
		Keys:    tokens,
		Metrics: m,
		Checks: map[string]healthctrl.Checker{
			"storage": conn,
			"cache":   cc,
		},
	}
	if cfg.Rate.Enabled {
		rd.LoginLimiter = a.limiter("login", cfg.Rate.Login)
		rd.RefreshLimiter = a.limiter("refresh", cfg.Rate.Refresh)
		rd.ScanLimiter = a.limiter("scan", cfg.Rate.Scan)
	}
	a.Handler = router.New(rd)

	log.Info("app wired",
		logger.String("storage", conn.Name()),
		logger.String("dsn", util.MaskDSN(cfg.Storage.DSN)),
		logger.String("cache", cfg.Cache.Kind),
		logger.Bool("rate_limit", cfg.Rate.Enabled),
		logger.Bool("smtp_alerts", len(sinks) > 0),
	)
	return a, nil
}

func signingKeys(cfg *config.Config) (*jwt.KeySet, error) {
	if cfg.JWT.SigningKey != "" {
		return jwt.KeySetFromSeed(cfg.JWT.SigningKey)
	}
	if cfg.IsProd() {
		return nil, fmt.Errorf("app: jwt.signing_key is required in prod")
	}
	return jwt.NewEphemeralEd25519()
}

// limiter usa redis si el cache es redis; si no, go-cache en proceso.
func (a *App) limiter(name string, l config.Limit) rate.Limiter {
	if l.Limit <= 0 {
		return nil
	}
	if rc, ok := cache.Redis(a.Cache); ok {
		return rate.NewRedisLimiter(rc, a.Config.Cache.Redis.Prefix+"rl:"+name+":", l.Limit, l.WindowDuration())
	}
	return rate.NewMemoryLimiter(l.Limit, l.WindowDuration())
}

// Run recupera las sesiones abiertas, arranca el pruner y sirve HTTP hasta que
// ctx se cancela.
func (a *App) Run(ctx context.Context) error {
	log := logger.From(ctx).With(logger.Layer("app"))

	tracked, closed, err := a.Ledger.Recover(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("app: recover sessions: %w", err)
	}
	log.Info("open sessions recovered", logger.Int("tracked", tracked), logger.Int("closed", closed))

	srv := server.New(server.Config{
		Addr:            a.Config.Server.Addr,
		ReadTimeout:     a.Config.ReadTimeout(),
		WriteTimeout:    a.Config.WriteTimeout(),
		ShutdownTimeout: a.Config.ShutdownTimeout(),
	}, a.Handler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return a.pruner.Run(gctx) })
	return g.Wait()
}

// Close libera recursos. Los timers pendientes del supervisor se descartan:
// el próximo arranque los recupera desde storage.
func (a *App) Close() error {
	a.Supervisor.Stop()
	cerr := a.Cache.Close()
	if err := a.Store.Close(); err != nil {
		return err
	}
	return cerr
}
