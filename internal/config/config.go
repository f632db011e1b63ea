// Package config carga la configuración del servicio desde YAML con overrides
// por variables de entorno.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Las duraciones viajan como strings "15m"/"2h" en el YAML y se validan en
// Load; los getters *Duration entregan el valor ya parseado.
type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr            string `yaml:"addr"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Storage struct {
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Auth struct {
		Issuer     string `yaml:"issuer"`      // label del otpauth://
		TotpWindow int    `yaml:"totp_window"` // pasos de tolerancia a cada lado

		Session struct {
			CookieName       string `yaml:"cookie_name"`
			Domain           string `yaml:"domain"`
			SameSite         string `yaml:"samesite"` // strict | lax
			Secure           bool   `yaml:"secure"`
			IdleTimeout      string `yaml:"idle_timeout"`
			RotationInterval string `yaml:"rotation_interval"`
			MaxLifetime      string `yaml:"max_lifetime"`
		} `yaml:"session"`

		Csrf struct {
			TTL string `yaml:"ttl"`
		} `yaml:"csrf"`
	} `yaml:"auth"`

	Rate struct {
		MaxAttempts      int    `yaml:"max_attempts"`
		Window           string `yaml:"window"`
		LockoutThreshold int    `yaml:"lockout_threshold"`
		LockoutDuration  string `yaml:"lockout_duration"`
	} `yaml:"rate"`

	Audit struct {
		// pg | memory. Con pg los eventos quedan en audit_events.
		Sink           string `yaml:"sink"`
		MemoryCapacity int    `yaml:"memory_capacity"`
	} `yaml:"audit"`
}

// Load lee el YAML, aplica defaults, pisa con env y valida.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return finish(&c)
}

// FromEnv arma la configuración solo con defaults + variables de entorno,
// para correr sin archivo (containers).
func FromEnv() (*Config, error) {
	return finish(&Config{})
}

func finish(c *Config) (*Config, error) {
	c.applyDefaults()
	c.applyEnvOverrides()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == "" {
		c.Server.ReadTimeout = "10s"
	}
	if c.Server.WriteTimeout == "" {
		c.Server.WriteTimeout = "15s"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2h"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "shelfguard:"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "Shelf"
	}
	if c.Auth.TotpWindow == 0 {
		c.Auth.TotpWindow = 1
	}
	if c.Auth.Session.CookieName == "" {
		c.Auth.Session.CookieName = "shelf_session"
	}
	if c.Auth.Session.SameSite == "" {
		c.Auth.Session.SameSite = "strict"
	}
	if c.Auth.Session.IdleTimeout == "" {
		c.Auth.Session.IdleTimeout = "2h"
	}
	if c.Auth.Session.RotationInterval == "" {
		c.Auth.Session.RotationInterval = "30m"
	}
	if c.Auth.Session.MaxLifetime == "" {
		c.Auth.Session.MaxLifetime = "24h"
	}
	if c.Auth.Csrf.TTL == "" {
		c.Auth.Csrf.TTL = "30m"
	}
	if c.Rate.MaxAttempts == 0 {
		c.Rate.MaxAttempts = 5
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "15m"
	}
	if c.Rate.LockoutThreshold == 0 {
		c.Rate.LockoutThreshold = 5
	}
	if c.Rate.LockoutDuration == "" {
		c.Rate.LockoutDuration = "15m"
	}
	if c.Audit.Sink == "" {
		c.Audit.Sink = "pg"
	}
	if c.Audit.MemoryCapacity == 0 {
		c.Audit.MemoryCapacity = 1000
	}
}

// Validate chequea que todo lo que se parsea después parsee ahora.
func (c *Config) Validate() error {
	durations := map[string]string{
		"server.read_timeout":            c.Server.ReadTimeout,
		"server.write_timeout":           c.Server.WriteTimeout,
		"server.shutdown_timeout":        c.Server.ShutdownTimeout,
		"cache.memory.default_ttl":       c.Cache.Memory.DefaultTTL,
		"auth.session.idle_timeout":      c.Auth.Session.IdleTimeout,
		"auth.session.rotation_interval": c.Auth.Session.RotationInterval,
		"auth.session.max_lifetime":      c.Auth.Session.MaxLifetime,
		"auth.csrf.ttl":                  c.Auth.Csrf.TTL,
		"rate.window":                    c.Rate.Window,
		"rate.lockout_duration":          c.Rate.LockoutDuration,
	}
	for field, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return fmt.Errorf("config: storage.postgres.conn_max_lifetime: %w", err)
		}
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind %q (expected memory or redis)", c.Cache.Kind)
	}
	switch c.Audit.Sink {
	case "pg", "memory":
	default:
		return fmt.Errorf("config: audit.sink %q (expected pg or memory)", c.Audit.Sink)
	}
	switch strings.ToLower(c.Auth.Session.SameSite) {
	case "strict", "lax":
	default:
		return fmt.Errorf("config: auth.session.samesite %q (expected strict or lax)", c.Auth.Session.SameSite)
	}
	return nil
}

// Dur parsea una duración ya validada.
func Dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// IsProd reporta si corremos en prod (gobierna formato de logs y Secure del
// cookie).
func (c *Config) IsProd() bool { return strings.EqualFold(c.App.Env, "prod") }

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
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

// applyEnvOverrides pisa el YAML con variables de entorno SHELFGUARD_*.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("SHELFGUARD_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SHELFGUARD_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("SHELFGUARD_PG_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("SHELFGUARD_CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("SHELFGUARD_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("SHELFGUARD_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("SHELFGUARD_COOKIE_DOMAIN"); ok {
		c.Auth.Session.Domain = v
	}
	if v, ok := getEnvBool("SHELFGUARD_COOKIE_SECURE"); ok {
		c.Auth.Session.Secure = v
	}
	if v, ok := getEnvInt("SHELFGUARD_RATE_MAX_ATTEMPTS"); ok {
		c.Rate.MaxAttempts = v
	}
	if v, ok := getEnvStr("SHELFGUARD_RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("SHELFGUARD_LOCKOUT_DURATION"); ok {
		c.Rate.LockoutDuration = v
	}
	if v, ok := getEnvInt("SHELFGUARD_TOTP_WINDOW"); ok {
		c.Auth.TotpWindow = v
	}

	// en prod el cookie siempre viaja Secure, sin importar el YAML
	if c.IsProd() {
		c.Auth.Session.Secure = true
	}
}
