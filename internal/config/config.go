// Package config loads process configuration from flags, PROCTOR_ prefixed
// environment variables, an optional JSON config file, and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"

	"github.com/ahrav/go-proctor/internal/retry"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PROCTOR"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRemote   = "remote"
)

// Defaults used by DefaultConfig.
const (
	DefaultHTTPAddr          = ":8080"
	DefaultReadTimeout       = 15 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultRemoteTimeout     = 10 * time.Second
	DefaultRequestsPerSecond = 20
	DefaultBurst             = 10
	DefaultCatalogTTL        = 10 * time.Minute
	DefaultEventMaxLen       = 10000
	DefaultConcurrency       = 8
	DefaultTaskQueue         = "proctor-registration"
)

// Config holds the settings of the server, worker, and CLI.
type Config struct {
	// Store selects the data service backend.
	Store string `json:"store" validate:"oneof=memory postgres remote"`

	// Seed is a JSON file loaded into the memory store at startup.
	Seed string `json:"seed"`

	HTTP      HTTPConfig      `json:"http"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Remote    RemoteConfig    `json:"remote"`
	Retry     retry.Config    `json:"retry"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Temporal  TemporalConfig  `json:"temporal"`
	Log       LogConfig       `json:"log"`

	// Concurrency bounds the parallel store calls of reconciliation and
	// answer key saves.
	Concurrency int `json:"concurrency" validate:"gte=1,lte=64"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `json:"addr" validate:"required"`
	ReadTimeout     time.Duration `json:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `json:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig configures the PostgreSQL store.
type DatabaseConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port" validate:"gte=0,lte=65535"`
	User        string `json:"user"`
	Password    string `json:"-"`
	Name        string `json:"name"`
	SSLMode     string `json:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	AutoMigrate bool   `json:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode,
	)
}

// RedisConfig configures the catalog cache and the event stream.
// An empty Addr disables both.
type RedisConfig struct {
	Addr        string        `json:"addr"`
	Password    string        `json:"-"`
	DB          int           `json:"db" validate:"gte=0"`
	CatalogTTL  time.Duration `json:"catalog_ttl" validate:"gte=0"`
	EventStream string        `json:"event_stream"`
	EventMaxLen int64         `json:"event_max_len" validate:"gte=0"`
}

// Enabled reports whether a Redis server is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// RemoteConfig configures the HTTP data service client.
type RemoteConfig struct {
	BaseURL string        `json:"base_url" validate:"omitempty,url"`
	Token   string        `json:"-"`
	Timeout time.Duration `json:"timeout" validate:"gt=0"`
}

// RateLimitConfig bounds the request rate of the remote client.
type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second" validate:"gt=0"`
	Burst             int     `json:"burst" validate:"gte=1"`
}

// TemporalConfig configures the Temporal client. An empty HostPort disables
// workflow-backed bulk registration in the server.
type TemporalConfig struct {
	HostPort  string `json:"host_port"`
	Namespace string `json:"namespace"`
	TaskQueue string `json:"task_queue" validate:"required"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `json:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a configuration that runs the server against the
// in-memory store with no external services.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreMemory,
		HTTP: HTTPConfig{
			Addr:            DefaultHTTPAddr,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "proctor",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			CatalogTTL:  DefaultCatalogTTL,
			EventStream: "proctor:events",
			EventMaxLen: DefaultEventMaxLen,
		},
		Remote: RemoteConfig{
			Timeout: DefaultRemoteTimeout,
		},
		Retry: retry.DefaultConfig(),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: DefaultRequestsPerSecond,
			Burst:             DefaultBurst,
		},
		Temporal: TemporalConfig{
			Namespace: "default",
			TaskQueue: DefaultTaskQueue,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Concurrency: DefaultConcurrency,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the settings required by the
// selected store.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}
	switch c.Store {
	case StoreRemote:
		if c.Remote.BaseURL == "" {
			return errors.New("invalid configuration: remote store requires remote-url")
		}
	case StorePostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			return errors.New("invalid configuration: postgres store requires db-host and db-name")
		}
	}
	return nil
}

// RegisterFlags binds every setting of c to a flag of flags, using the current
// values of c as defaults.
func RegisterFlags(flags *flag.FlagSet, c *Config) {
	flags.StringVar(&c.Store, "store", c.Store, "data service backend (memory|postgres|remote)")
	flags.StringVar(&c.Seed, "seed", c.Seed, "JSON file seeding the memory store")
	flags.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "parallel store calls per reconciliation or answer key save")

	flags.StringVar(&c.HTTP.Addr, "http-addr", c.HTTP.Addr, "API listen address")
	flags.DurationVar(&c.HTTP.ReadTimeout, "http-read-timeout", c.HTTP.ReadTimeout, "API read timeout")
	flags.DurationVar(&c.HTTP.WriteTimeout, "http-write-timeout", c.HTTP.WriteTimeout, "API write timeout")
	flags.DurationVar(&c.HTTP.ShutdownTimeout, "http-shutdown-timeout", c.HTTP.ShutdownTimeout, "graceful shutdown limit")

	flags.StringVar(&c.Database.Host, "db-host", c.Database.Host, "PostgreSQL host")
	flags.IntVar(&c.Database.Port, "db-port", c.Database.Port, "PostgreSQL port")
	flags.StringVar(&c.Database.User, "db-user", c.Database.User, "PostgreSQL user")
	flags.StringVar(&c.Database.Password, "db-password", c.Database.Password, "PostgreSQL password")
	flags.StringVar(&c.Database.Name, "db-name", c.Database.Name, "PostgreSQL database")
	flags.StringVar(&c.Database.SSLMode, "db-sslmode", c.Database.SSLMode, "PostgreSQL sslmode")
	flags.BoolVar(&c.Database.AutoMigrate, "db-automigrate", c.Database.AutoMigrate, "create or update tables on start")

	flags.StringVar(&c.Redis.Addr, "redis-addr", c.Redis.Addr, "Redis address; empty disables the catalog cache and event stream")
	flags.StringVar(&c.Redis.Password, "redis-password", c.Redis.Password, "Redis password")
	flags.IntVar(&c.Redis.DB, "redis-db", c.Redis.DB, "Redis database")
	flags.DurationVar(&c.Redis.CatalogTTL, "catalog-ttl", c.Redis.CatalogTTL, "catalog cache TTL")
	flags.StringVar(&c.Redis.EventStream, "event-stream", c.Redis.EventStream, "Redis stream receiving events")
	flags.Int64Var(&c.Redis.EventMaxLen, "event-max-len", c.Redis.EventMaxLen, "approximate event stream length cap")

	flags.StringVar(&c.Remote.BaseURL, "remote-url", c.Remote.BaseURL, "base URL of the remote data service")
	flags.StringVar(&c.Remote.Token, "remote-token", c.Remote.Token, "bearer token for the remote data service")
	flags.DurationVar(&c.Remote.Timeout, "remote-timeout", c.Remote.Timeout, "per-request timeout of the remote data service")

	flags.IntVar(&c.Retry.MaxAttempts, "retry-max-attempts", c.Retry.MaxAttempts, "attempts per remote call")
	flags.DurationVar(&c.Retry.InitialInterval, "retry-initial-interval", c.Retry.InitialInterval, "first retry backoff")
	flags.DurationVar(&c.Retry.MaxInterval, "retry-max-interval", c.Retry.MaxInterval, "backoff cap")
	flags.Float64Var(&c.Retry.Multiplier, "retry-multiplier", c.Retry.Multiplier, "backoff multiplier")
	flags.DurationVar(&c.Retry.MaxElapsedTime, "retry-max-elapsed", c.Retry.MaxElapsedTime, "time budget across attempts; 0 disables")
	flags.BoolVar(&c.Retry.UseJitter, "retry-jitter", c.Retry.UseJitter, "randomize backoff")

	flags.Float64Var(&c.RateLimit.RequestsPerSecond, "remote-rps", c.RateLimit.RequestsPerSecond, "remote requests per second")
	flags.IntVar(&c.RateLimit.Burst, "remote-burst", c.RateLimit.Burst, "remote request burst")

	flags.StringVar(&c.Temporal.HostPort, "temporal-host", c.Temporal.HostPort, "Temporal frontend address; empty disables workflows")
	flags.StringVar(&c.Temporal.Namespace, "temporal-namespace", c.Temporal.Namespace, "Temporal namespace")
	flags.StringVar(&c.Temporal.TaskQueue, "temporal-task-queue", c.Temporal.TaskQueue, "Temporal task queue")

	flags.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level (debug|info|warn|error)")
	flags.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format (text|json)")
}

// Options returns the ff options shared by every binary.
func Options() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(EnvPrefix),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.JSONParser),
		ff.WithAllowMissingConfigFile(true),
	}
}

// LoadDotEnv loads .env into the environment when the file exists.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load parses args into a validated Config, starting from DefaultConfig.
func Load(name string, args []string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.String("config", "", "JSON config file (optional)")
	RegisterFlags(flags, cfg)

	if err := ff.Parse(flags, args, Options()...); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the process logger described by c.
func NewLogger(c LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
