package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// inEmptyDir runs the test from a directory without a .env file.
func inEmptyDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	inEmptyDir(t)
	for _, k := range []string{"PORT", "ENV", "LOG_LEVEL", "JWT_SECRET", "EVENTS_CHANNEL", "BROADCAST_TIMEOUT", "MIGRATE_ON_START", "DB_MAX_CONNS", "DB_MIN_CONNS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "8081", cfg.Port)
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "messaging_events", cfg.EventsChannel)
	require.Equal(t, 2*time.Second, cfg.BroadcastTimeout)
	require.True(t, cfg.MigrateOnStart)
	require.EqualValues(t, 25, cfg.DBMaxConns)
	require.EqualValues(t, 5, cfg.DBMinConns)
	require.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadConfig_Overrides(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("PORT", "9000")
	t.Setenv("EVENTS_CHANNEL", "events")
	t.Setenv("BROADCAST_TIMEOUT", "250ms")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "9000", cfg.Port)
	require.Equal(t, "events", cfg.EventsChannel)
	require.Equal(t, 250*time.Millisecond, cfg.BroadcastTimeout)
	require.False(t, cfg.MigrateOnStart)
	require.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadConfig_ProductionNeedsSecret(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_BadValues(t *testing.T) {
	inEmptyDir(t)
	t.Setenv("BROADCAST_TIMEOUT", "soon")
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("BROADCAST_TIMEOUT", "0s")
	_, err = LoadConfig()
	require.Error(t, err)

	t.Setenv("BROADCAST_TIMEOUT", "1s")
	t.Setenv("MIGRATE_ON_START", "maybe")
	_, err = LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	dir := inEmptyDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EVENTS_CHANNEL=from-file\nPORT=7000\n"), 0o600))
	t.Setenv("PORT", "7001")
	t.Setenv("EVENTS_CHANNEL", "")
	os.Unsetenv("EVENTS_CHANNEL")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.EventsChannel)
	require.Equal(t, "7001", cfg.Port, "environment wins over .env")
	os.Unsetenv("EVENTS_CHANNEL")
}
