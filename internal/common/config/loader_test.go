package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: buses
    user: ${TEST_BUS_DB_USER}
workers:
  find-buses:
    enabled: true
`

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("TEST_BUS_DB_USER", "reader")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "reader", cfg.Database.Postgres.User)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, 10, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "data", cfg.Catalog.DataDir)
	assert.Equal(t, time.Hour, GetDuration(cfg.Catalog.CacheTTL))
	assert.Equal(t, time.Hour, GetDuration(cfg.Search.CacheTTL))
	assert.Equal(t, 3, cfg.Search.Retry.MaxAttempts)
	assert.Equal(t, 4*time.Second, GetDuration(cfg.Search.Retry.InitialDelay))
	assert.Equal(t, 10*time.Second, GetDuration(cfg.Search.Retry.MaxDelay))
	assert.False(t, cfg.Camunda.Enabled)

	wc := GetWorkerConfig(cfg, "find-buses")
	assert.True(t, wc.Enabled)
	assert.Equal(t, cfg.Camunda.MaxJobsActive, wc.MaxJobsActive)
	assert.Equal(t, cfg.Camunda.Timeout, wc.Timeout)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	t.Setenv("DB_USER", "")

	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing host",
			content: "database:\n  postgres:\n    database: buses\n    user: reader\n",
		},
		{
			name:    "missing user",
			content: "database:\n  postgres:\n    host: localhost\n    database: buses\n",
		},
		{
			name:    "idle above max",
			content: "database:\n  postgres:\n    host: localhost\n    database: buses\n    user: reader\n    max_connections: 2\n    max_idle: 4\n",
		},
		{
			name:    "camunda without broker",
			content: "camunda:\n  enabled: true\ndatabase:\n  postgres:\n    host: localhost\n    database: buses\n    user: reader\n",
		},
		{
			name:    "retry cap below initial delay",
			content: "database:\n  postgres:\n    host: localhost\n    database: buses\n    user: reader\nsearch:\n  retry:\n    initial_delay: 5000\n    max_delay: 1000\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
