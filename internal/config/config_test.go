package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(ConfigFileEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, ":8080", cfg.Addr())
	require.Equal(t, 10*time.Minute, cfg.CacheTTL)
	require.Equal(t, 5*time.Second, cfg.ScoreTimeout)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, []string{"*"}, cfg.CORSOrigins)
	require.True(t, cfg.SeedOnStart)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(ConfigFileEnvVar, "")
	t.Setenv("PORT", "9090")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("SCORE_TIMEOUT", "250ms")
	t.Setenv("LOG_FORMAT", "console")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SEED_ON_START", "false")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Addr())
	require.Equal(t, 30*time.Second, cfg.CacheTTL)
	require.Equal(t, 250*time.Millisecond, cfg.ScoreTimeout)
	require.Equal(t, "console", cfg.LogFormat)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	require.False(t, cfg.SeedOnStart)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\ndb_pool_size: 5\nlog_level: debug\n"), 0o600))
	t.Setenv(ConfigFileEnvVar, path)
	t.Setenv("PORT", "7100")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7100, cfg.Port, "env wins over file")
	require.Equal(t, 5, cfg.DBPoolSize)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(ConfigFileEnvVar, "")
	t.Setenv("LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	require.Equal(t, "database_url", envKey("DATABASE_URL"))
	require.Equal(t, "", envKey("PATH"))
}
