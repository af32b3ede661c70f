package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/readiness-backend/internal/data/cache"
	"github.com/yungbote/readiness-backend/internal/data/db"
	"github.com/yungbote/readiness-backend/internal/observability"
)

const (
	StoreMemory   = "memory"
	StorePostgres = db.DriverPostgres
	StoreSQLite   = db.DriverSQLite
)

type Config struct {
	LogMode         string        `env:"LOG_MODE" envDefault:"development"`
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"readiness-backend"`
	Environment     string        `env:"APP_ENV" envDefault:"development"`
	Version         string        `env:"APP_VERSION" envDefault:"dev"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	JWTSecretKey    string        `env:"JWT_SECRET_KEY"`
	CatalogSeedPath string        `env:"CATALOG_SEED_PATH"`
	RetentionPeriod time.Duration `env:"RETENTION_PERIOD" envDefault:"2160h"`

	Store    StoreConfig
	Postgres PostgresConfig `envPrefix:"POSTGRES_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Metrics  MetricsConfig  `envPrefix:"METRICS_"`
	OTel     OTelConfig     `envPrefix:"OTEL_"`
}

type StoreConfig struct {
	Driver     string        `env:"STORE_DRIVER" envDefault:"memory"`
	Timeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	SQLitePath string        `env:"SQLITE_PATH"`
	MaxOpen    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdle    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxLife    time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

type PostgresConfig struct {
	DSN      string `env:"DSN"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME" envDefault:"readiness"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

type RedisConfig struct {
	Addr           string        `env:"ADDR"`
	Password       string        `env:"PASSWORD"`
	DB             int           `env:"DB" envDefault:"0"`
	Prefix         string        `env:"PREFIX" envDefault:"readiness:results:"`
	ResultCacheTTL time.Duration `env:"RESULT_CACHE_TTL" envDefault:"24h"`
}

type MetricsConfig struct {
	Enabled         bool          `env:"ENABLED" envDefault:"false"`
	Addr            string        `env:"ADDR" envDefault:":9090"`
	CollectInterval time.Duration `env:"COLLECT_INTERVAL" envDefault:"15s"`
}

type OTelConfig struct {
	Enabled     bool    `env:"ENABLED" envDefault:"false"`
	Endpoint    string  `env:"EXPORTER_OTLP_ENDPOINT"`
	Headers     string  `env:"EXPORTER_OTLP_HEADERS"`
	Insecure    bool    `env:"EXPORTER_OTLP_INSECURE" envDefault:"false"`
	SampleRatio float64 `env:"TRACES_SAMPLER_RATIO" envDefault:"1"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case StoreMemory, StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, postgres, sqlite; got %q", c.Store.Driver)
	}
	if c.RetentionPeriod <= 0 {
		return fmt.Errorf("RETENTION_PERIOD must be positive")
	}
	if c.OTel.SampleRatio < 0 || c.OTel.SampleRatio > 1 {
		return fmt.Errorf("OTEL_TRACES_SAMPLER_RATIO must be within [0,1]")
	}
	return nil
}

func (c Config) dbConfig() db.Config {
	return db.Config{
		Driver: c.Store.Driver,
		Postgres: db.PostgresConfig{
			Host:     c.Postgres.Host,
			Port:     c.Postgres.Port,
			User:     c.Postgres.User,
			Password: c.Postgres.Password,
			Name:     c.Postgres.Name,
			SSLMode:  c.Postgres.SSLMode,
			DSN:      c.Postgres.DSN,
		},
		SQLitePath: c.Store.SQLitePath,
		MaxOpen:    c.Store.MaxOpen,
		MaxIdle:    c.Store.MaxIdle,
		MaxLife:    c.Store.MaxLife,
	}
}

func (c Config) redisConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		TTL:      c.Redis.ResultCacheTTL,
	}
}

func (c Config) otelConfig() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OTel.Enabled,
		ServiceName: c.ServiceName,
		Environment: c.Environment,
		Version:     c.Version,
		Endpoint:    c.OTel.Endpoint,
		Headers:     c.OTel.Headers,
		Insecure:    c.OTel.Insecure,
		SampleRatio: c.OTel.SampleRatio,
	}
}
