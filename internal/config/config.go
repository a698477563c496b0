package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"botevents-api/internal/logger"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	App       AppConfig
	Log       LogConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Retry     RetryConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Notify    NotifyConfig
	EventLog  EventLogConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"botevents-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	LoginKey    string `envconfig:"LOGIN_KEY" default:""` // Admin login key
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level     string `envconfig:"LOG_LEVEL" default:"info"`
	Format    string `envconfig:"LOG_FORMAT" default:"text"`
	AddSource bool   `envconfig:"LOG_ADD_SOURCE" default:"false"`
}

// AuthConfig holds the event authentication secrets and lockout policy.
type AuthConfig struct {
	// CodecSecret is the payload XOR key. XOR_KEY is accepted as a fallback.
	CodecSecret  string        `envconfig:"CODEC_SECRET"`
	SharedSecret string        `envconfig:"API_SHARED_SECRET"`
	Threshold    int           `envconfig:"AUTH_FAILURE_THRESHOLD" default:"3"`
	Lockout      time.Duration `envconfig:"AUTH_LOCKOUT" default:"30m"`
}

// DatabaseConfig holds inventory database settings.
type DatabaseConfig struct {
	Driver string `envconfig:"DATABASE_DRIVER" default:"sqlite"` // postgres, sqlite or mysql
	// URL is a postgres URL, a SQLite file path or a MySQL DSN.
	URL          string        `envconfig:"DATABASE_URL" default:"./data/inventory.db"`
	MaxOpenConns int           `envconfig:"DATABASE_MAX_OPEN_CONNS" default:"10"`
	MinConns     int           `envconfig:"DATABASE_MIN_CONNS" default:"1"`
	MaxConnLife  time.Duration `envconfig:"DATABASE_MAX_CONN_LIFETIME" default:"30m"`
	MaxConnIdle  time.Duration `envconfig:"DATABASE_MAX_CONN_IDLE" default:"5m"`
	AutoMigrate  bool          `envconfig:"DATABASE_AUTO_MIGRATE" default:"true"`
}

// RetryConfig holds storage retry settings.
type RetryConfig struct {
	MaxAttempts        int           `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`
	Backoff            time.Duration `envconfig:"RETRY_BACKOFF" default:"500ms"`
	ConnectMaxAttempts int           `envconfig:"CONNECT_MAX_ATTEMPTS" default:"5"`
	ConnectBackoff     time.Duration `envconfig:"CONNECT_BACKOFF" default:"2s"`
}

// CacheConfig holds Redis and in-process cache settings.
type CacheConfig struct {
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	CatalogSize int           `envconfig:"CATALOG_CACHE_SIZE" default:"1024"`
	CatalogTTL  time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
}

// RateLimitConfig selects the limiter store.
type RateLimitConfig struct {
	Store           string        `envconfig:"RATE_LIMIT_STORE" default:"memory"` // memory or redis
	KeyPrefix       string        `envconfig:"RATE_LIMIT_KEY_PREFIX" default:"botevents:authfail"`
	CleanupInterval time.Duration `envconfig:"RATE_LIMIT_CLEANUP_INTERVAL" default:"10m"`
}

// NotifyConfig holds outbound notification settings.
type NotifyConfig struct {
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL" default:""`
	Timeout           time.Duration `envconfig:"DISCORD_TIMEOUT" default:"10s"`
}

// EventLogConfig holds the audit log settings. An empty URI keeps the log in memory.
type EventLogConfig struct {
	MongoURI        string `envconfig:"MONGODB_URI" default:""`
	MongoDatabase   string `envconfig:"MONGODB_DATABASE" default:"botevents"`
	MongoCollection string `envconfig:"MONGODB_COLLECTION" default:"event_logs"`
	MemoryCapacity  int    `envconfig:"EVENT_LOG_MEMORY_CAPACITY" default:"1000"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"true"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Logger returns the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		ServiceName: c.App.Name,
		Version:     c.App.Version,
		Environment: c.App.Environment,
		AddSource:   c.Log.AddSource,
	}
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.CodecSecret == "" {
		errs = append(errs, errors.New("CODEC_SECRET (or XOR_KEY) is required"))
	}
	if c.Auth.SharedSecret == "" {
		errs = append(errs, errors.New("API_SHARED_SECRET is required"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}

	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not one of postgres, sqlite, mysql", c.Database.Driver))
	}

	switch c.RateLimit.Store {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("RATE_LIMIT_STORE %q is not one of memory, redis", c.RateLimit.Store))
	}

	if c.Retry.MaxAttempts < 1 || c.Retry.ConnectMaxAttempts < 1 {
		errs = append(errs, errors.New("retry attempts must be at least 1"))
	}
	if c.Auth.Threshold < 1 {
		errs = append(errs, errors.New("AUTH_FAILURE_THRESHOLD must be at least 1"))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	c.Auth.CodecSecret = redact(c.Auth.CodecSecret)
	c.Auth.SharedSecret = redact(c.Auth.SharedSecret)
	c.App.LoginKey = redact(c.App.LoginKey)
	c.Cache.RedisPassword = redact(c.Cache.RedisPassword)
	c.Database.URL = redact(c.Database.URL)
	c.EventLog.MongoURI = redact(c.EventLog.MongoURI)
	c.Notify.DiscordWebhookURL = redact(c.Notify.DiscordWebhookURL)
	return c
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Auth.CodecSecret == "" {
		cfg.Auth.CodecSecret = os.Getenv("XOR_KEY")
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.RateLimit.Store = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Store))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
