package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`

	// Frontend hosts the verification pages the callback redirects to.
	Frontend struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"frontend"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
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
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Rate struct {
		Enabled bool `yaml:"enabled"`

		Callback struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"callback"`

		AdminLogin struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"admin_login"`
	} `yaml:"rate"`

	// ───────── Discord provider ─────────
	Discord struct {
		APIBase        string   `yaml:"api_base"` // default https://discord.com/api/v10
		ClientID       string   `yaml:"client_id"`
		ClientSecret   string   `yaml:"client_secret"`
		RedirectURL    string   `yaml:"redirect_url"`
		Scopes         []string `yaml:"scopes"` // default: identify, guilds.join
		BotToken       string   `yaml:"bot_token"`
		VerifiedRoleID string   `yaml:"verified_role_id"`
	} `yaml:"discord"`

	Admin struct {
		JWTSecret  string `yaml:"jwt_secret"`
		SessionTTL string `yaml:"session_ttl"` // default 1h
		// LoginKeys mapea hash argon2id → rol (admin | owner).
		LoginKeys []struct {
			KeyHash string `yaml:"key_hash"`
			Role    string `yaml:"role"`
		} `yaml:"login_keys"`
	} `yaml:"admin"`

	Reconcile struct {
		// Pacer: "delay" (sleep fijo entre usuarios) o "bucket" (token bucket).
		Pacer        string `yaml:"pacer"`
		Delay        string `yaml:"delay"`          // pacer=delay; default 1s
		PerSecond    int    `yaml:"per_second"`     // pacer=bucket; default 1
		Burst        int    `yaml:"burst"`          // pacer=bucket; default 1
		BatchTimeout string `yaml:"batch_timeout"`  // 0 = sin timeout
		ReportEmail  string `yaml:"report_email"`   // si está seteado, se manda el reporte por mail
	} `yaml:"reconcile"`

	Kafka struct {
		Enabled  bool   `yaml:"enabled"`
		Broker   string `yaml:"broker"`
		Topic    string `yaml:"topic"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"kafka"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"` // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	} `yaml:"smtp"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Discord.APIBase == "" {
		c.Discord.APIBase = "https://discord.com/api/v10"
	}
	if len(c.Discord.Scopes) == 0 {
		c.Discord.Scopes = []string{"identify", "guilds.join"}
	}
	if c.Admin.SessionTTL == "" {
		c.Admin.SessionTTL = "1h"
	}
	if c.Reconcile.Pacer == "" {
		c.Reconcile.Pacer = "delay"
	}
	if c.Reconcile.Delay == "" {
		c.Reconcile.Delay = "1s"
	}
	if c.Reconcile.PerSecond == 0 {
		c.Reconcile.PerSecond = 1
	}
	if c.Reconcile.Burst == 0 {
		c.Reconcile.Burst = 1
	}
	if c.Rate.Callback.Limit == 0 {
		c.Rate.Callback.Limit = 30
	}
	if c.Rate.Callback.Window == "" {
		c.Rate.Callback.Window = "1m"
	}
	if c.Rate.AdminLogin.Limit == 0 {
		c.Rate.AdminLogin.Limit = 10
	}
	if c.Rate.AdminLogin.Window == "" {
		c.Rate.AdminLogin.Window = "1m"
	}

	c.applyEnvOverrides()

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.dsn requerido con driver postgres")
		}
	default:
		return fmt.Errorf("config: storage.driver desconocido %q", c.Storage.Driver)
	}
	if c.Kafka.Enabled && strings.TrimSpace(c.Kafka.Broker) == "" {
		return fmt.Errorf("config: kafka.broker requerido con kafka.enabled")
	}
	return nil
}

// SessionTTLDuration parsea Admin.SessionTTL (fallback 1h).
func (c *Config) SessionTTLDuration() time.Duration {
	if d, err := time.ParseDuration(c.Admin.SessionTTL); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

// ReconcileDelay parsea Reconcile.Delay (fallback 1s).
func (c *Config) ReconcileDelay() time.Duration {
	if d, err := time.ParseDuration(c.Reconcile.Delay); err == nil && d >= 0 {
		return d
	}
	return time.Second
}

// CallbackWindow parsea Rate.Callback.Window (fallback 1m).
func (c *Config) CallbackWindow() time.Duration {
	if d, err := time.ParseDuration(c.Rate.Callback.Window); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// AdminLoginWindow parsea Rate.AdminLogin.Window (fallback 1m).
func (c *Config) AdminLoginWindow() time.Duration {
	if d, err := time.ParseDuration(c.Rate.AdminLogin.Window); err == nil && d > 0 {
		return d
	}
	return time.Minute
}

// BatchTimeout parsea Reconcile.BatchTimeout (0 = deshabilitado).
func (c *Config) BatchTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Reconcile.BatchTimeout); err == nil && d > 0 {
		return d
	}
	return 0
}

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

// applyEnvOverrides: pisa config.yaml con variables de entorno.
// Los secretos (client secret, bot token, jwt) normalmente vienen por env.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("FRONTEND_BASE_URL"); ok {
		c.Frontend.BaseURL = v
	}

	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}

	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}

	if v, ok := getEnvStr("DISCORD_CLIENT_ID"); ok {
		c.Discord.ClientID = v
	}
	if v, ok := getEnvStr("DISCORD_CLIENT_SECRET"); ok {
		c.Discord.ClientSecret = v
	}
	if v, ok := getEnvStr("DISCORD_REDIRECT_URL"); ok {
		c.Discord.RedirectURL = v
	}
	if v, ok := getEnvStr("DISCORD_BOT_TOKEN"); ok {
		c.Discord.BotToken = v
	}
	if v, ok := getEnvStr("DISCORD_VERIFIED_ROLE_ID"); ok {
		c.Discord.VerifiedRoleID = v
	}

	if v, ok := getEnvStr("ADMIN_JWT_SECRET"); ok {
		c.Admin.JWTSecret = v
	}

	if v, ok := getEnvBool("KAFKA_ENABLED"); ok {
		c.Kafka.Enabled = v
	}
	if v, ok := getEnvStr("KAFKA_BROKER"); ok {
		c.Kafka.Broker = v
	}

	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
}
