package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	minCacheTTL = time.Second
	maxCacheTTL = time.Minute
)

type HTTPConfig struct {
	Host            string
	Port            int
	RateLimit       int
	RateLimitWindow time.Duration
}

type DBConfig struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	AccessSecret string
}

type SheetConfig struct {
	WorkbookPath     string
	CacheTTL         time.Duration
	RateLimitRetries int
	RateLimitBackoff time.Duration
}

type CacheConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type DispatchConfig struct {
	DonePolicy string
}

type Config struct {
	Environment string
	LogLevel    string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Sheet       SheetConfig
	Cache       CacheConfig
	Dispatch    DispatchConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")

	v.AutomaticEnv()

	_ = v.ReadInConfig()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		HTTP: HTTPConfig{
			Host:            v.GetString("HTTP_HOST"),
			Port:            v.GetInt("HTTP_PORT"),
			RateLimit:       v.GetInt("HTTP_RATE_LIMIT"),
			RateLimitWindow: v.GetDuration("HTTP_RATE_WINDOW"),
		},
		DB: DBConfig{
			Driver:          strings.ToLower(strings.TrimSpace(v.GetString("DB_DRIVER"))),
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Sheet: SheetConfig{
			WorkbookPath:     v.GetString("SHEET_WORKBOOK_PATH"),
			CacheTTL:         v.GetDuration("SHEET_CACHE_TTL"),
			RateLimitRetries: v.GetInt("SHEET_RATE_LIMIT_RETRIES"),
			RateLimitBackoff: v.GetDuration("SHEET_RATE_LIMIT_BACKOFF"),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(strings.TrimSpace(v.GetString("CACHE_BACKEND"))),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Dispatch: DispatchConfig{
			DonePolicy: strings.ToLower(strings.TrimSpace(v.GetString("DISPATCH_DONE_POLICY"))),
		},
	}

	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 7090
	}
	if !v.IsSet("HTTP_RATE_LIMIT") {
		cfg.HTTP.RateLimit = 120
	}
	if cfg.HTTP.RateLimitWindow <= 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = "sqlite"
	}
	if cfg.DB.DSN == "" && cfg.DB.Driver == "sqlite" {
		cfg.DB.DSN = "dispatch.db"
	}
	if cfg.Sheet.WorkbookPath == "" {
		cfg.Sheet.WorkbookPath = "dispatch.xlsx"
	}
	if cfg.Sheet.CacheTTL == 0 {
		cfg.Sheet.CacheTTL = 30 * time.Second
	}
	cfg.Sheet.CacheTTL = clampDuration(cfg.Sheet.CacheTTL, minCacheTTL, maxCacheTTL)
	if !v.IsSet("SHEET_RATE_LIMIT_RETRIES") {
		cfg.Sheet.RateLimitRetries = 2
	}
	if cfg.Sheet.RateLimitBackoff <= 0 {
		cfg.Sheet.RateLimitBackoff = 2 * time.Second
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = "localhost:6379"
	}
	if cfg.Dispatch.DonePolicy == "" {
		cfg.Dispatch.DonePolicy = "delete"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

func validate(cfg *Config) error {
	switch cfg.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.DB.Driver)
	}
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", cfg.Cache.Backend)
	}
	switch cfg.Dispatch.DonePolicy {
	case "delete", "retain":
	default:
		return fmt.Errorf("DISPATCH_DONE_POLICY must be delete or retain, got %q", cfg.Dispatch.DonePolicy)
	}
	if cfg.Sheet.RateLimitRetries < 0 {
		return fmt.Errorf("SHEET_RATE_LIMIT_RETRIES must not be negative")
	}
	return nil
}
