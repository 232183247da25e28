package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ReadsPostgresCredentials(t *testing.T) {
	dir := t.TempDir()
	cfg := `
[database]
  type = "postgres"
  [database.postgres]
    host = "db.local"
    port = 5433
    database = "agri"
    username = "fielduser"
    password = "fieldpass"
    ssl_mode = "require"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0o644))

	c := New(dir, "test")

	assert.Equal(t, "postgres", c.Config.Database.Type)
	assert.Equal(t, "db.local", c.Config.Database.Postgres.Host)
	assert.Equal(t, 5433, c.Config.Database.Postgres.Port)
	assert.Equal(t, "agri", c.Config.Database.Postgres.Database)
	assert.Equal(t, "fielduser", c.Config.Database.Postgres.User)
	assert.Equal(t, "fieldpass", c.Config.Database.Postgres.Pass)
	assert.Equal(t, "require", c.Config.Database.Postgres.SslMode)
}

func TestNew_GeneratedTemplateKeysMatchTags(t *testing.T) {
	// the generated template must use the same keys the structs
	// unmarshal from, or its values silently fall back to defaults
	dir := t.TempDir()
	New(dir, "test")

	for _, key := range []string{
		"database.postgres.username",
		"database.postgres.password",
		"remote.base_url",
		"remote.probe_url",
		"connectivity.probe_interval_seconds",
		"cache.default_ttl_ms",
		"sync.max_attempts",
		"sync.replay_delay_ms",
		"sync.retention_hours",
		"sync.prune_schedule",
	} {
		assert.True(t, viper.IsSet(key), "template key %q not read back", key)
	}
}

func TestNew_MissingDirectoryGetsTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")

	c := New(dir, "1.2.3")

	assert.Equal(t, "1.2.3", c.Config.Version)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.Equal(t, "127.0.0.1", c.Config.Server.Host)
	assert.Equal(t, 7373, c.Config.Server.Port)
}
