package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary         Primary               `koanf:"primary"`
	Server          ServerConfig          `koanf:"server"`
	Database        DatabaseConfig        `koanf:"database"`
	Redis           RedisConfig           `koanf:"redis"`
	IntentGateway   IntentGatewayConfig   `koanf:"intent_gateway"`
	RedirectGateway RedirectGatewayConfig `koanf:"redirect_gateway"`
	Webhook         WebhookConfig         `koanf:"webhook"`
	Reconciler      ReconcilerConfig      `koanf:"reconciler"`
	Worker          WorkerConfig          `koanf:"worker"`
	Logger          LoggerConfig          `koanf:"logger"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
	// PublicBaseURL is this service's externally reachable address,
	// used to build redirect callback and IPN URLs.
	PublicBaseURL string `koanf:"public_base_url" validate:"required"`
	// ClientStatusURL is the browser-facing page redirect callbacks
	// land the payer on.
	ClientStatusURL string `koanf:"client_status_url" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// PgxConfig builds the pgxpool configuration from the database settings.
func (c DatabaseConfig) PgxConfig() (*pgxpool.Config, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = c.MaxConns
	poolCfg.MinConns = c.MinConns
	poolCfg.MaxConnLifetime = c.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = c.ConnMaxIdleTime
	return poolCfg, nil
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type IntentGatewayConfig struct {
	BaseURL     string        `koanf:"base_url"`
	APIKey      string        `koanf:"api_key"`
	ConnTimeout time.Duration `koanf:"conn_timeout"`
}

type RedirectGatewayConfig struct {
	BaseURL     string        `koanf:"base_url"`
	StoreID     string        `koanf:"store_id"`
	StoreSecret string        `koanf:"store_secret"`
	ConnTimeout time.Duration `koanf:"conn_timeout"`
}

type WebhookConfig struct {
	Secret string `koanf:"secret" validate:"required"`
}

type ReconcilerConfig struct {
	// ValidationPolicy is "strict" or "lenient". Strict trusts only the
	// provider validate call; lenient additionally accepts a
	// callback-asserted success when the provider validator cannot find
	// the transaction but amount and correlation id line up. Keep
	// strict outside sandbox environments.
	ValidationPolicy string `koanf:"validation_policy" validate:"required,oneof=strict lenient"`
	ToleranceCents   int64  `koanf:"tolerance_cents"`
}

type WorkerConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
	// MinAge keeps the sweeper off payments a live request may still
	// be confirming.
	MinAge time.Duration `koanf:"min_age" validate:"required"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

// NewLogger builds the process logger from the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("ENROLLGW_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "ENROLLGW_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	applyDefaults(mainConfig)

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.MinConns == 0 {
		cfg.Database.MinConns = 2
	}
	if cfg.Reconciler.ValidationPolicy == "" {
		cfg.Reconciler.ValidationPolicy = "strict"
	}
	if cfg.Reconciler.ToleranceCents == 0 {
		cfg.Reconciler.ToleranceCents = 1
	}
	if cfg.IntentGateway.ConnTimeout == 0 {
		cfg.IntentGateway.ConnTimeout = 10 * time.Second
	}
	if cfg.RedirectGateway.ConnTimeout == 0 {
		cfg.RedirectGateway.ConnTimeout = 10 * time.Second
	}
}
