package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 9090
database:
  host: db.internal
  name: practice
  user: osteo
  password: secret
  max_open_conns: 10
storage:
  media_root: /var/lib/osteo
workers:
  purge:
    retention: 48h
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, "/var/lib/osteo", cfg.Storage.MediaRoot)
	assert.Equal(t, 48*time.Hour, cfg.Workers.Purge.Retention)
	assert.Equal(t, "office_events", cfg.Redis.Channel)
	assert.Equal(t, 100, cfg.Workers.Outbox.BatchSize)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("OSTEO_SERVER_PORT", "7070")
	t.Setenv("OSTEO_DB_HOST", "override.internal")
	t.Setenv("OSTEO_DB_PORT", "6543")
	t.Setenv("OSTEO_DB_CONN_MAX_LIFETIME", "90s")

	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "override.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 90*time.Second, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, "practice", cfg.Database.Name)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	cfg.Storage.MediaRoot = ""
	assert.ErrorContains(t, cfg.Validate(), "media_root")
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 5432, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=5432 user=u password=p dbname=n sslmode=disable", c.DSN())
}
