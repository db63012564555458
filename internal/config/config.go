package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress      string        `env:"SERVER_ADDRESS" envDefault:"0.0.0.0:8080"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"DEBUG"`
	BaseURL            string        `env:"BASE_URL" envDefault:"http://localhost:3000"`
	JWTSecret          string        `env:"JWT_SECRET"`
	EscalationInterval time.Duration `env:"ESCALATION_INTERVAL" envDefault:"5m"`
	PostgresConfig
	RedisConfig
	SMTPConfig
	TokenConfig
}

// NewConfig reads the environment, after loading a .env file if one is present.
func NewConfig() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	config := &Config{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewConfig: %w", err)
	}
	return config, err
}

type PostgresConfig struct {
	Conn            string `env:"POSTGRES_CONN" envDefault:"postgres://test:test@db:5432/test?sslmode=disable"`
	AutoMigrateUp   string `env:"AUTO_MIGRATE_UP" envDefault:"true"`
	AutoMigrateDown string `env:"AUTO_MIGRATE_DOWN" envDefault:"false"`
	MigrationsURL   string `env:"MIGRATIONS_URL" envDefault:"file://internal/repository/db/migrations"`
}

func NewPostgresConfig() (*PostgresConfig, error) {
	config := &PostgresConfig{}

	err := env.Parse(config)
	if err != nil {
		err = fmt.Errorf("config.NewPostgresConfig: %w", err)
	}
	return config, err
}

// RedisConfig is optional; an empty Addr disables the SLA queue and token guard.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// SMTPConfig is optional; without a host notifications are only logged.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"procurement@localhost"`
}

func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.Port > 0
}

const (
	TokenModeSigned = "signed"
	TokenModePlain  = "plain"
)

type TokenConfig struct {
	Mode   string        `env:"APPROVAL_TOKEN_MODE" envDefault:"signed"`
	Secret string        `env:"APPROVAL_TOKEN_SECRET"`
	TTL    time.Duration `env:"APPROVAL_TOKEN_TTL" envDefault:"168h"`
}

func loadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
