// Package config carga la configuración del servicio: YAML opcional, defaults
// y overrides por variables de entorno (en ese orden).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/kidplay/internal/alert"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		Driver      string `yaml:"driver"` // memory | postgres
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
		Postgres    struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	JWT struct {
		Issuer string `yaml:"issuer"`
		// SigningKey: seed Ed25519 de 32 bytes en base64. Vacío = clave efímera.
		SigningKey string `yaml:"signing_key"`
		AccessTTL  string `yaml:"access_ttl"`
		RefreshTTL string `yaml:"refresh_ttl"`
	} `yaml:"jwt"`

	Watch struct {
		DefaultDailyMinutes int     `yaml:"default_daily_minutes"`
		HeartbeatMultiplier float64 `yaml:"heartbeat_multiplier"`
		MinInterval         string  `yaml:"min_interval"`
		MaxInterval         string  `yaml:"max_interval"`
		DefaultInterval     string  `yaml:"default_interval"`
		Timezone            string  `yaml:"timezone"`
		CeilingCacheTTL     string  `yaml:"ceiling_cache_ttl"`
	} `yaml:"watch"`

	Revocation struct {
		PruneInterval string `yaml:"prune_interval"`
	} `yaml:"revocation"`

	Rate struct {
		Enabled bool  `yaml:"enabled"`
		Login   Limit `yaml:"login"`
		Refresh Limit `yaml:"refresh"`
		Scan    Limit `yaml:"scan"`
	} `yaml:"rate"`

	Alerts struct {
		Throttle string           `yaml:"throttle"`
		SMTP     alert.SMTPConfig `yaml:"smtp"`
	} `yaml:"alerts"`

	Log struct {
		Env   string `yaml:"env"`   // dev | prod
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`
}

// Limit es un fixed window: Limit requests por Window.
type Limit struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// Load lee path (si no es vacío), aplica defaults y overrides de entorno y
// valida. Un path inexistente es error; path vacío arranca solo con defaults.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	c.applyEnvOverrides()
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefault(dst *string, v string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	setDefault(&c.App.Env, "dev")
	setDefault(&c.Server.Addr, ":8080")
	setDefault(&c.Server.ReadTimeout, "10s")
	setDefault(&c.Server.WriteTimeout, "30s")
	setDefault(&c.Server.ShutdownTimeout, "15s")

	setDefault(&c.Storage.Driver, "memory")
	setDefault(&c.Storage.Postgres.ConnMaxLifetime, "30m")
	if c.Storage.Postgres.MaxOpenConns == 0 {
		c.Storage.Postgres.MaxOpenConns = 10
	}

	setDefault(&c.Cache.Kind, "memory")
	setDefault(&c.Cache.Redis.Prefix, "kidplay:")

	setDefault(&c.JWT.Issuer, "kidplay")
	setDefault(&c.JWT.AccessTTL, "15m")
	setDefault(&c.JWT.RefreshTTL, "168h")

	if c.Watch.DefaultDailyMinutes == 0 {
		c.Watch.DefaultDailyMinutes = 60
	}
	if c.Watch.HeartbeatMultiplier == 0 {
		c.Watch.HeartbeatMultiplier = 2.5
	}
	setDefault(&c.Watch.MinInterval, "30s")
	setDefault(&c.Watch.MaxInterval, "120s")
	setDefault(&c.Watch.DefaultInterval, "60s")
	setDefault(&c.Watch.Timezone, "UTC")
	setDefault(&c.Watch.CeilingCacheTTL, "1m")

	setDefault(&c.Revocation.PruneInterval, "10m")

	if c.Rate.Login.Limit == 0 {
		c.Rate.Login.Limit = 10
	}
	setDefault(&c.Rate.Login.Window, "1m")
	if c.Rate.Refresh.Limit == 0 {
		c.Rate.Refresh.Limit = 30
	}
	setDefault(&c.Rate.Refresh.Window, "1m")
	if c.Rate.Scan.Limit == 0 {
		c.Rate.Scan.Limit = 60
	}
	setDefault(&c.Rate.Scan.Window, "1m")

	setDefault(&c.Alerts.Throttle, "5m")
	setDefault(&c.Alerts.SMTP.TLSMode, "auto")

	setDefault(&c.Log.Env, c.App.Env)
	setDefault(&c.Log.Level, "info")
}

// ─── env ───

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, strings.TrimSpace(v) != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func getEnvFloat(key string) (float64, bool) {
	if s, ok := getEnvStr(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvCSV(key string) ([]string, bool) {
	s, ok := getEnvStr(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, len(out) > 0
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}

	// SERVER
	if v, ok := getEnvStr("KIDPLAY_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvBool("STORAGE_AUTO_MIGRATE"); ok {
		c.Storage.AutoMigrate = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
		// REDIS_ADDR solo tiene sentido con cache redis
		if _, explicit := getEnvStr("CACHE_KIND"); !explicit {
			c.Cache.Kind = "redis"
		}
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_ISSUER"); ok {
		c.JWT.Issuer = v
	}
	if v, ok := getEnvStr("JWT_SIGNING_KEY"); ok {
		c.JWT.SigningKey = v
	}
	if v, ok := getEnvStr("ACCESS_TTL"); ok {
		c.JWT.AccessTTL = v
	}
	if v, ok := getEnvStr("REFRESH_TTL"); ok {
		c.JWT.RefreshTTL = v
	}

	// WATCH
	if v, ok := getEnvFloat("HEARTBEAT_MULTIPLIER"); ok {
		c.Watch.HeartbeatMultiplier = v
	}
	if v, ok := getEnvInt("DEFAULT_DAILY_MINUTES"); ok {
		c.Watch.DefaultDailyMinutes = v
	}
	if v, ok := getEnvStr("WATCH_TIMEZONE"); ok {
		c.Watch.Timezone = v
	}

	// REVOCATION
	if v, ok := getEnvStr("REVOCATION_PRUNE_INTERVAL"); ok {
		c.Revocation.PruneInterval = v
	}

	// RATE
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}
	if v, ok := getEnvInt("RATE_LOGIN_LIMIT"); ok {
		c.Rate.Login.Limit = v
	}
	if v, ok := getEnvStr("RATE_LOGIN_WINDOW"); ok {
		c.Rate.Login.Window = v
	}

	// ALERTS
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.Alerts.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.Alerts.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USER"); ok {
		c.Alerts.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASS"); ok {
		c.Alerts.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.Alerts.SMTP.From = v
	}
	if v, ok := getEnvCSV("ALERT_EMAIL_TO"); ok {
		c.Alerts.SMTP.To = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("LOG_ENV"); ok {
		c.Log.Env = v
	}
}

// ─── validación ───

// Validate chequea valores que rompen el arranque. Los errores se juntan.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, a ...any) { errs = append(errs, fmt.Errorf(format, a...)) }

	durations := map[string]string{
		"server.read_timeout":                c.Server.ReadTimeout,
		"server.write_timeout":               c.Server.WriteTimeout,
		"server.shutdown_timeout":            c.Server.ShutdownTimeout,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
		"jwt.access_ttl":                     c.JWT.AccessTTL,
		"jwt.refresh_ttl":                    c.JWT.RefreshTTL,
		"watch.min_interval":                 c.Watch.MinInterval,
		"watch.max_interval":                 c.Watch.MaxInterval,
		"watch.default_interval":             c.Watch.DefaultInterval,
		"watch.ceiling_cache_ttl":            c.Watch.CeilingCacheTTL,
		"revocation.prune_interval":          c.Revocation.PruneInterval,
		"rate.login.window":                  c.Rate.Login.Window,
		"rate.refresh.window":                c.Rate.Refresh.Window,
		"rate.scan.window":                   c.Rate.Scan.Window,
		"alerts.throttle":                    c.Alerts.Throttle,
	}
	for key, v := range durations {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			add("config: %s: invalid duration %q", key, v)
		}
	}

	switch strings.ToLower(c.Storage.Driver) {
	case "memory":
	case "postgres", "pg":
		if c.Storage.DSN == "" {
			add("config: storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		add("config: storage.driver: unsupported %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.Cache.Kind) {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			add("config: cache.redis.addr is required for redis cache")
		}
	default:
		add("config: cache.kind: unsupported %q", c.Cache.Kind)
	}

	if c.Watch.HeartbeatMultiplier < 1 {
		add("config: watch.heartbeat_multiplier must be >= 1, got %v", c.Watch.HeartbeatMultiplier)
	}
	if c.Watch.DefaultDailyMinutes < 0 || c.Watch.DefaultDailyMinutes > 24*60 {
		add("config: watch.default_daily_minutes out of range: %d", c.Watch.DefaultDailyMinutes)
	}
	minI, maxI, defI := parse(c.Watch.MinInterval), parse(c.Watch.MaxInterval), parse(c.Watch.DefaultInterval)
	if minI > 0 && maxI > 0 && (minI > maxI || defI < minI || defI > maxI) {
		add("config: watch intervals must satisfy min <= default <= max")
	}
	if _, err := time.LoadLocation(c.Watch.Timezone); err != nil {
		add("config: watch.timezone: %v", err)
	}

	return errors.Join(errs...)
}

func parse(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// ─── getters tipados (asumen Validate ok) ───

func (c *Config) ReadTimeout() time.Duration     { return parse(c.Server.ReadTimeout) }
func (c *Config) WriteTimeout() time.Duration    { return parse(c.Server.WriteTimeout) }
func (c *Config) ShutdownTimeout() time.Duration { return parse(c.Server.ShutdownTimeout) }
func (c *Config) ConnMaxLifetime() time.Duration { return parse(c.Storage.Postgres.ConnMaxLifetime) }
func (c *Config) AccessTTL() time.Duration       { return parse(c.JWT.AccessTTL) }
func (c *Config) RefreshTTL() time.Duration      { return parse(c.JWT.RefreshTTL) }
func (c *Config) MinInterval() time.Duration     { return parse(c.Watch.MinInterval) }
func (c *Config) MaxInterval() time.Duration     { return parse(c.Watch.MaxInterval) }
func (c *Config) DefaultInterval() time.Duration { return parse(c.Watch.DefaultInterval) }
func (c *Config) CeilingCacheTTL() time.Duration { return parse(c.Watch.CeilingCacheTTL) }
func (c *Config) PruneInterval() time.Duration   { return parse(c.Revocation.PruneInterval) }
func (c *Config) AlertThrottle() time.Duration   { return parse(c.Alerts.Throttle) }

// Window del límite.
func (l Limit) WindowDuration() time.Duration { return parse(l.Window) }

// Location es la zona donde cae la medianoche del acumulado diario.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Watch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }
