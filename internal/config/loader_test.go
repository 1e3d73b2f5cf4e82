package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
log:
  level: debug
  format: json
http:
  timeout: 15s
  requests_per_second: 2
tools:
  selenzyme:
    base_url: "http://selenzyme.local:32784"
cache:
  enabled: true
  addr: "localhost:6379"
evaluate:
  depths: [1, 2, 3, 4]
simmer:
  permutations: 200
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 15*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 2.0, cfg.HTTP.RequestsPerSecond)
	assert.Equal(t, "http://selenzyme.local:32784", cfg.Tools.Selenzyme.BaseURL)
	assert.True(t, cfg.Tools.Selenzyme.NoMSA)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, []int{1, 2, 3, 4}, cfg.Evaluate.Depths)
	assert.Equal(t, 200, cfg.Simmer.Permutations)
	assert.Equal(t, DefaultSimmerAlpha, cfg.Simmer.Alpha)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "log: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "vote:\n  depth: 9\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vote.depth")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ENZBENCH_LOG_LEVEL", "warn")
	t.Setenv("ENZBENCH_TOOLS_THEIA_MODEL", "ecreact.ec12")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "ecreact.ec12", cfg.Tools.TheiaModel)
}

func TestLoadFromEnv_NoFile(t *testing.T) {
	t.Setenv("ENZBENCH_SIMMER_SEED", "7")
	t.Setenv("ENZBENCH_HTTP_TIMEOUT", "5s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(7), cfg.Simmer.Seed)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, DefaultKEGGBaseURL, cfg.Tools.KEGGBaseURL)
}

func TestSearchPaths(t *testing.T) {
	paths := SearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, "enzbench.yaml", paths[0])
	assert.Equal(t, "/etc/enzbench/config.yaml", paths[len(paths)-1])
}

func TestMustLoad(t *testing.T) {
	assert.NotPanics(t, func() { MustLoad(createTempConfigFile(t, validConfigYAML)) })
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}
