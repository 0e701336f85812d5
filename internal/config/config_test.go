package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef-secret"

func env(vars map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := vars[name]
		return v, ok
	}
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(nil, env(map[string]string{"JWT_SECRET": testSecret}))
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, int64(10240), cfg.BodyLimit)
	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "data/tours.db", cfg.DB.Path)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "ticketmaster.events", cfg.AMQP.Queue)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":3000", cfg.Addr())
}

func TestLoad_Environment(t *testing.T) {
	cfg, err := load(nil, env(map[string]string{
		"JWT_SECRET":        testSecret,
		"PORT":              "8081",
		"NODE_ENV":          "Production",
		"DB_DRIVER":         "postgres",
		"DATABASE_URL":      "postgres://u:p@localhost/tours",
		"RATE_LIMIT_WINDOW": "1m",
		"REDIS_ADDR":        "localhost:6379",
		"TM_API_KEY":        "tm-key",
		"METRICS_ENABLED":   "false",
	}))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, EnvProduction, cfg.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://u:p@localhost/tours", cfg.DB.URL)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "tm-key", cfg.Ticketmaster.Key)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_AppEnvBeatsNodeEnv(t *testing.T) {
	cfg, err := load(nil, env(map[string]string{
		"JWT_SECRET": testSecret,
		"APP_ENV":    "test",
		"NODE_ENV":   "production",
	}))
	require.NoError(t, err)
	assert.Equal(t, EnvTest, cfg.Env)
}

func TestLoad_FilePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tour-tracker.yaml")
	yaml := []byte(`
port: 4000
log:
  level: debug
jwt:
  secret: file-secret-long-enough
ratelimit:
  requests: 5
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	fs := newFlags(t, "--config", path, "--port", "5000")
	cfg, err := load(fs, env(map[string]string{"RATE_LIMIT_REQUESTS": "7"}))
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port, "explicit flag beats file")
	assert.Equal(t, "debug", cfg.Log.Level, "file beats default")
	assert.Equal(t, 7, cfg.RateLimit.Requests, "env beats file")
	assert.Equal(t, "file-secret-long-enough", cfg.JWT.Secret)
	assert.Equal(t, "json", cfg.Log.Format, "unset flag keeps the default")
}

func TestLoad_FlagsFillDottedKeys(t *testing.T) {
	fs := newFlags(t, "--db-driver", "postgres", "--db-url", "postgres://localhost/x", "--log-format", "text")
	cfg, err := load(fs, env(map[string]string{"JWT_SECRET": testSecret}))
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "postgres://localhost/x", cfg.DB.URL)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	fs := newFlags(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := load(fs, env(map[string]string{"JWT_SECRET": testSecret}))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"short secret", map[string]string{"JWT_SECRET": "short"}},
		{"unknown driver", map[string]string{"JWT_SECRET": testSecret, "DB_DRIVER": "mysql"}},
		{"postgres without url", map[string]string{"JWT_SECRET": testSecret, "DB_DRIVER": "postgres"}},
		{"unknown env", map[string]string{"JWT_SECRET": testSecret, "APP_ENV": "staging"}},
		{"bad port", map[string]string{"JWT_SECRET": testSecret, "PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(nil, env(tt.vars))
			assert.Error(t, err)
		})
	}
}
