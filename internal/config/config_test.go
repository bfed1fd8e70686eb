package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dealdesk.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 20, cfg.Server.RateLimit, 0.001)
	assert.Equal(t, 40, cfg.Server.RateBurst)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Empty(t, cfg.Fees.SchedulePath)
	assert.Equal(t, "Local", cfg.Notice.Timezone)
	assert.Equal(t, 8, cfg.Service.MaxConcurrentFetches)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Empty(t, cfg.Alert.WebhookURL)
	assert.Equal(t, time.Hour, cfg.Alert.CheckInterval)

	assert.NoError(t, cfg.Validate("serve"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/dealdesk
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - https://desk.example.com
fees:
  schedule_path: fees.yaml
notice:
  timezone: America/Chicago
retry:
  initial_backoff: 1s
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/dealdesk", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://desk.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "fees.yaml", cfg.Fees.SchedulePath)
	assert.Equal(t, "America/Chicago", cfg.Notice.Timezone)
	assert.Equal(t, time.Second, cfg.Retry.InitialBackoff)
	// Defaults still apply for unset values
	assert.Equal(t, 8, cfg.Service.MaxConcurrentFetches)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("DEALDESK_STORE_DRIVER", "postgres")
	t.Setenv("DEALDESK_LOG_LEVEL", "warn")
	t.Setenv("DEALDESK_SERVICE_MAX_CONCURRENT_FETCHES", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3, cfg.Service.MaxConcurrentFetches)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [driver"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestLoadFile_NamedPath(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: warn\n"), 0o644))

	other := filepath.Join(t.TempDir(), "desk.yml")
	require.NoError(t, os.WriteFile(other, []byte("log:\n  level: debug\nstore:\n  sqlite_path: /tmp/other.db\n"), 0o644))

	cfg, err := LoadFile(other)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/other.db", cfg.Store.SQLitePath)
	assert.Equal(t, 8080, cfg.Server.Port)

	cfg, err = LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadFile_MissingNamedPath(t *testing.T) {
	chdirTemp(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store:   StoreConfig{Driver: "sqlite", SQLitePath: "dealdesk.db"},
		Server:  ServerConfig{Port: 8080, RateLimit: 20, RateBurst: 40},
		Log:     LogConfig{Level: "info", Format: "json"},
		Notice:  NoticeConfig{Timezone: "UTC"},
		Service: ServiceConfig{MaxConcurrentFetches: 8},
	}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
	assert.NoError(t, validDefaults().Validate("cli"))
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/dealdesk"
	assert.NoError(t, cfg.Validate("cli"))
}

func TestValidate_ReportsEverything(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	cfg.Log.Level = "loud"
	cfg.Notice.Timezone = "Mars/Olympus"
	cfg.Service.MaxConcurrentFetches = 0

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver must be sqlite or postgres, got "mysql"`)
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "notice.timezone")
	assert.Contains(t, err.Error(), "service.max_concurrent_fetches")
}

func TestValidate_ServeOnlyChecks(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0
	cfg.Server.RateBurst = 0

	assert.NoError(t, cfg.Validate("cli"))

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")
	assert.Contains(t, err.Error(), "server.rate_burst")
}

func TestValidate_AlertInterval(t *testing.T) {
	cfg := validDefaults()
	cfg.Alert = AlertConfig{WebhookURL: "https://hooks.example.com/x", CheckInterval: time.Second}

	err := cfg.Validate("cli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alert.check_interval")

	cfg.Alert.CheckInterval = 15 * time.Minute
	assert.NoError(t, cfg.Validate("cli"))
}

func TestNoticeLocation(t *testing.T) {
	loc, err := NoticeConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	_, err = NoticeConfig{Timezone: "Nowhere/Special"}.Location()
	assert.Error(t, err)
}
