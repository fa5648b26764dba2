package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fantasydb/database"
)

// clearEnv сбрасывает переменные, которые могут быть выставлены в окружении CI
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_PATH", "DATABASE_DRIVER", "DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS",
		"DB_CONN_MAX_LIFETIME", "DB_BUSY_TIMEOUT", "EXPORT_DIR", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Database.Path != DefaultDatabasePath {
		t.Errorf("expected path %s, got %s", DefaultDatabasePath, cfg.Database.Path)
	}
	assert.Equal(t, database.DriverMattn, cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.Equal(t, "exports", cfg.Export.Dir)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "fantasydb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /srv/fantasy.db
  driver: sqlite
  max_open_conns: 4
  max_idle_conns: 2
  busy_timeout: 10s
logging:
  level: debug
  format: json
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/fantasy.db", cfg.Database.Path)
	assert.Equal(t, database.DriverModernc, cfg.Database.Driver)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "exports", cfg.Export.Dir)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "fantasydb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: from-file.db\n"), 0644))

	t.Setenv("DATABASE_PATH", "from-env.db")
	t.Setenv("DB_CONN_MAX_LIFETIME", "90s")
	t.Setenv("EXPORT_DIR", "/tmp/csv")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Database.Path)
	assert.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "/tmp/csv", cfg.Export.Dir)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
}

func TestLoadInvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestReadSkipsValidation(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "fantasydb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: postgres\n"), 0644))

	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)

	_, err = Load(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.Database.Path = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"zero open conns", func(c *Config) { c.Database.MaxOpenConns = 0 }},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 3 }},
		{"empty export dir", func(c *Config) { c.Export.Dir = "" }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "fantasydb.yaml")

	cfg := DefaultConfig()
	cfg.Database.Path = "saved.db"
	cfg.Export.Dir = "out"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDBConfig(t *testing.T) {
	cfg := DefaultConfig()
	dbCfg := cfg.DBConfig()
	assert.Equal(t, cfg.Database.Driver, dbCfg.Driver)
	assert.Equal(t, cfg.Database.BusyTimeout, dbCfg.BusyTimeout)
	assert.Equal(t, cfg.Database.MaxIdleConns, dbCfg.MaxIdleConns)
}
