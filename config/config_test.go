package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/student-manager/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  allowed_origins: ["https://a.example"]
  shutdown_timeout: 3s
store:
  backend: sqlite
  path: data/students.db
search:
  case_sensitive: true
logging:
  level: debug
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep defaults")
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, config.Duration(3*time.Second), cfg.Server.ShutdownTimeout)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "data/students.db", cfg.Store.Path)
	assert.True(t, cfg.Search.CaseSensitive)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("PORT", "7000")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SEARCH_CASE_SENSITIVE", "true")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Server.Addr())
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Search.CaseSensitive)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
	}{
		{"bad yaml", "server: [", nil},
		{"bad duration", "server:\n  shutdown_timeout: soon\n", nil},
		{"unknown backend", "store:\n  backend: redis\n", nil},
		{"empty path", "store:\n  path: \"\"\n", nil},
		{"watch needs json", "store:\n  backend: sqlite\n  path: s.db\n  watch: true\n", nil},
		{"bad port", "server:\n  port: 70000\n", nil},
		{"bad level", "logging:\n  level: loud\n", nil},
		{"bad PORT env", "", map[string]string{"PORT": "eighty"}},
		{"bad bool env", "", map[string]string{"SEARCH_CASE_SENSITIVE": "maybe"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}
