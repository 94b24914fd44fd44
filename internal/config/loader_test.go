package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the allowed config
// directory inside it.
func setupTestHome(t *testing.T) (home, dir string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	dir = filepath.Join(home, ".config", "mediatord")
	require.NoError(t, os.MkdirAll(dir, 0700))
	return home, dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	_, dir := setupTestHome(t)
	path := writeConfig(t, dir, `
server:
  host: 0.0.0.0
  port: 9191
  shutdown_timeout: 30s
logging:
  level: debug
  format: console
generation:
  provider: openai
  api_key: sk-test
  model: gpt-4o-mini
store:
  driver: memory
escalation:
  decay_after: 10m
policy:
  default_threshold: 70
events:
  url: nats://127.0.0.1:4222
`, 0600)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "sk-test", cfg.Generation.APIKey.Value())
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Escalation.DecayAfter.Duration())
	assert.Equal(t, 70, cfg.Policy.DefaultThreshold)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.URL)

	// Defaults fill the rest.
	assert.Equal(t, 10, cfg.Escalation.Increment)
	assert.Equal(t, "mediation", cfg.Events.SubjectPrefix)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	_, dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 9191\n", 0600)

	t.Setenv("MEDIATORD_SERVER_PORT", "7070")
	t.Setenv("MEDIATORD_GENERATION_API_KEY", "sk-env")
	t.Setenv("MEDIATORD_POLICY_DEFAULT_THRESHOLD", "45")
	t.Setenv("MEDIATORD_ESCALATION_DECAY_AFTER", "2m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-env", cfg.Generation.APIKey.Value())
	assert.Equal(t, 45, cfg.Policy.DefaultThreshold)
	assert.Equal(t, 2*time.Minute, cfg.Escalation.DecayAfter.Duration())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	home, _ := setupTestHome(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, filepath.Join(home, ".local", "share", "mediatord", "profiles.db"), cfg.Store.Path)
}

func TestLoad_InvalidValues(t *testing.T) {
	_, dir := setupTestHome(t)
	path := writeConfig(t, dir, "store:\n  driver: postgres\n", 0600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestLoad_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	_, dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  port: 9191\n", 0644)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestValidateConfigPath(t *testing.T) {
	home, dir := setupTestHome(t)

	for _, ok := range []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "nested", "config.yaml"),
		"/etc/mediatord/config.yaml",
	} {
		assert.NoError(t, validateConfigPath(ok), ok)
	}

	for _, bad := range []string{
		"/etc/mediatord../etc/passwd",
		filepath.Join(dir, "..", "..", "..", "etc", "passwd"),
		filepath.Join(home, "config.yaml"),
		"/tmp/config.yaml",
	} {
		assert.Error(t, validateConfigPath(bad), bad)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"MEDIATORD_SERVER_PORT":              "server.port",
		"MEDIATORD_GENERATION_API_KEY":       "generation.api_key",
		"MEDIATORD_POLICY_DEFAULT_THRESHOLD": "policy.default_threshold",
		"MEDIATORD_EVENTS_URL":               "events.url",
		"MEDIATORD_DEBUG":                    "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := setupTestHome(t)

	got, err := ExpandPath("~/data/profiles.db")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "profiles.db"), got)

	got, err = ExpandPath("/var/lib/mediatord/profiles.db")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/mediatord/profiles.db", got)

	got, err = ExpandPath(":memory:")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", got)
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	require.NoError(t, EnsureConfigDir())
	info, err := os.Stat(filepath.Join(home, ".config", "mediatord"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
