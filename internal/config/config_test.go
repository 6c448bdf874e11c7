package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, 2, cfg.Stock.MaxOpenStockTakes)
	assert.Equal(t, 100, cfg.Stock.DefaultListLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("API_PORT", "9090")
	t.Setenv("STOCK_MAX_OPEN_STOCK_TAKES", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, 1, cfg.Stock.MaxOpenStockTakes)
}

func TestLoadFileOverridesEnv(t *testing.T) {
	t.Setenv("API_PORT", "9090")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("api:\n  port: 7070\nstock:\n  max_open_stock_takes: 3\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.API.Port)
	assert.Equal(t, 3, cfg.Stock.MaxOpenStockTakes)
}

func TestValidate(t *testing.T) {
	t.Run("無効なログレベルは拒否される", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "verbose")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("棚卸セッション上限0は拒否される", func(t *testing.T) {
		t.Setenv("STOCK_MAX_OPEN_STOCK_TAKES", "0")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("無効なポートは拒否される", func(t *testing.T) {
		t.Setenv("DB_PORT", "70000")

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestDSN(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=tanaoroshi_db")
	assert.Contains(t, dsn, "sslmode=disable")
}
