package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	HTTPPort           string        `envconfig:"HTTP_PORT" default:"8080" validate:"required,numeric"`
	MetricsPort        string        `envconfig:"METRICS_PORT" default:"9091" validate:"omitempty,numeric"`
	Env                string        `envconfig:"ENV" default:"development" validate:"oneof=development test staging production"`
	LogLevel           string        `envconfig:"LOG_LEVEL"`
	LogFormat          string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	TimeZone           string        `envconfig:"TIMEZONE" default:"UTC" validate:"required"`
	StorageDriver      string        `envconfig:"STORAGE_DRIVER" default:"postgres" validate:"oneof=postgres memory"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s" validate:"gt=0"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	DB                 DBConfig
}

// DBConfig keys carry the full variable name; envconfig falls back to the
// tag when the prefixed DB_DB_* key is unset.
type DBConfig struct {
	DSN             string        `envconfig:"DB_DSN"`
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"postgres"`
	Password        string        `envconfig:"DB_PASSWORD" default:"postgres"`
	Name            string        `envconfig:"DB_NAME" default:"gym_db"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	TimeZone        string        `envconfig:"DB_TIMEZONE" default:"UTC"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10" validate:"gte=0"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5" validate:"gte=0"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// Load reads an optional .env file and then the process environment.
// Variables already present in the environment win over the file.
func Load() (Config, error) {
	if _, err := loadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("read env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	if _, err := cfg.Location(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Location is the zone that decides which calendar month is "current".
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c Config) UsesMemoryStorage() bool {
	return c.StorageDriver == StorageDriverMemory
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}
