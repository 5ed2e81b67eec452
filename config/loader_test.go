package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig().HTTPPort, cfg.Server.HTTPPort)
}

func TestLoader_LoadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  http_port: 9000
database:
  host: db.internal
  name: ideaforge_test
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "ideaforge_test", cfg.Database.Name)
}

func TestLoader_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("IDEAFORGE_SERVER_HTTP_PORT", "7000")
	cfg, err := NewLoader().WithEnvPrefix("IDEAFORGE").Load()
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Server.HTTPPort)
}

func TestLoader_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/path/config.yaml").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)
}

func TestLoader_RunsValidators(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			c.Engine.ContextTokenCeiling = 0
			return c.Validate()
		}).
		Load()
	require.Error(t, err)
}

func TestConfig_Validate_RequiresProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = nil
	assert.Error(t, cfg.Validate())
}
