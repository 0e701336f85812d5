// Package config loads runtime configuration.
//
// LAYERING:
// Values are merged in increasing priority:
//  1. built-in defaults
//  2. an optional YAML file (--config)
//  3. environment variables (a .env file in the working directory is read first)
//  4. command line flags that were explicitly set
//
// Everything lands in a single koanf instance and is unmarshalled into Config.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MinSecretLength = 16
)

type Config struct {
	Port      int    `koanf:"port"`
	Env       string `koanf:"env"`
	BodyLimit int64  `koanf:"body_limit"`

	Log          LogConfig          `koanf:"log"`
	DB           DBConfig           `koanf:"db"`
	JWT          JWTConfig          `koanf:"jwt"`
	RateLimit    RateLimitConfig    `koanf:"ratelimit"`
	Redis        RedisConfig        `koanf:"redis"`
	AMQP         AMQPConfig         `koanf:"amqp"`
	Ticketmaster TicketmasterConfig `koanf:"ticketmaster"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

type DBConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
	URL    string `koanf:"url"`
}

type JWTConfig struct {
	Secret string        `koanf:"secret"`
	TTL    time.Duration `koanf:"ttl"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// RedisConfig switches the rate limiter to a shared Redis window when Addr
// is set.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AMQPConfig struct {
	URL   string `koanf:"url"`
	Queue string `koanf:"queue"`
}

type TicketmasterConfig struct {
	Key     string        `koanf:"key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// IsDevelopment reports whether error bodies may carry internal detail.
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

var defaults = map[string]any{
	"port":                  3000,
	"env":                   EnvDevelopment,
	"body_limit":            10 << 10,
	"log.format":            "json",
	"log.level":             "info",
	"db.driver":             DriverSQLite,
	"db.path":               "data/tours.db",
	"jwt.ttl":               time.Hour,
	"ratelimit.requests":    100,
	"ratelimit.window":      15 * time.Minute,
	"amqp.queue":            "ticketmaster.events",
	"ticketmaster.base_url": "https://app.ticketmaster.com",
	"ticketmaster.timeout":  10 * time.Second,
	"metrics.enabled":       true,
}

// envKeys maps environment variables onto config keys. When several
// variables feed one key the first one set wins.
var envKeys = []struct {
	key  string
	vars []string
}{
	{"port", []string{"PORT"}},
	{"env", []string{"APP_ENV", "NODE_ENV"}},
	{"body_limit", []string{"BODY_LIMIT"}},
	{"log.format", []string{"LOG_FORMAT"}},
	{"log.level", []string{"LOG_LEVEL"}},
	{"db.driver", []string{"DB_DRIVER"}},
	{"db.path", []string{"DB_PATH"}},
	{"db.url", []string{"DATABASE_URL"}},
	{"jwt.secret", []string{"JWT_SECRET"}},
	{"jwt.ttl", []string{"JWT_TTL"}},
	{"ratelimit.requests", []string{"RATE_LIMIT_REQUESTS"}},
	{"ratelimit.window", []string{"RATE_LIMIT_WINDOW"}},
	{"redis.addr", []string{"REDIS_ADDR"}},
	{"redis.password", []string{"REDIS_PASSWORD"}},
	{"redis.db", []string{"REDIS_DB"}},
	{"amqp.url", []string{"AMQP_URL"}},
	{"amqp.queue", []string{"AMQP_QUEUE"}},
	{"ticketmaster.key", []string{"TM_API_KEY"}},
	{"ticketmaster.base_url", []string{"TM_BASE_URL"}},
	{"metrics.enabled", []string{"METRICS_ENABLED"}},
}

// RegisterFlags adds the flags Load understands to fs. Flag names use dashes
// where config keys use dots: --db-driver sets db.driver.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.Int("port", defaults["port"].(int), "HTTP listen port")
	fs.String("env", EnvDevelopment, "environment: development, production or test")
	fs.String("log-format", "json", "log format: json or text")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("db-driver", DriverSQLite, "storage driver: sqlite or postgres")
	fs.String("db-path", defaults["db.path"].(string), "SQLite database file")
	fs.String("db-url", "", "Postgres connection URL")
}

// Load builds a Config from defaults, the YAML file named by --config, the
// environment and fs. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return load(fs, os.LookupEnv)
}

func load(fs *pflag.FlagSet, lookup func(string) (string, bool)) (*Config, error) {
	k := koanf.New(".")

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("setting default %s: %w", key, err)
		}
	}

	if path := configPath(fs, lookup); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	for _, e := range envKeys {
		for _, name := range e.vars {
			if v, ok := lookup(name); ok && v != "" {
				if err := k.Set(e.key, v); err != nil {
					return nil, fmt.Errorf("setting %s from %s: %w", e.key, name, err)
				}
				break
			}
		}
	}

	if fs != nil {
		// Unchanged flags only fill keys nothing else has set.
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			if f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "."), posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("reading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func configPath(fs *pflag.FlagSet, lookup func(string) (string, bool)) string {
	if fs != nil {
		if p, err := fs.GetString("config"); err == nil && p != "" {
			return p
		}
	}
	if p, ok := lookup("CONFIG_FILE"); ok {
		return p
	}
	return ""
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	switch {
	case c.JWT.Secret == "":
		errs = append(errs, errors.New("jwt.secret is required (JWT_SECRET)"))
	case len(c.JWT.Secret) < MinSecretLength:
		errs = append(errs, fmt.Errorf("jwt.secret must be at least %d characters", MinSecretLength))
	}

	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DB.URL == "" {
			errs = append(errs, errors.New("db.url is required for the postgres driver (DATABASE_URL)"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not one of sqlite, postgres", c.DB.Driver))
	}

	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("env %q is not one of development, production, test", c.Env))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.requests and ratelimit.window must be positive"))
	}
	if c.BodyLimit <= 0 {
		errs = append(errs, errors.New("body_limit must be positive"))
	}

	return errors.Join(errs...)
}
