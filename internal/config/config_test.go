package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.Timeout.Std())
	assert.Equal(t, "grpcurl", cfg.ClientBinary)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialDelay.Std())
	assert.Equal(t, 2.0, cfg.Retry.BackoffMultiplier)
	assert.False(t, cfg.Retry.Disabled)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().ClientBinary, cfg.ClientBinary)
	assert.Equal(t, Default().Timeout, cfg.Timeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grpcheck.yaml")
	content := `
default_address: api.example.com:443
parallel: 8
timeout: 5s
client_binary: /usr/local/bin/grpcurl
report_path: out/summary.json
retry:
  max_attempts: 5
  initial_delay: 250ms
  backoff_multiplier: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "api.example.com:443", cfg.DefaultAddress)
	assert.Equal(t, 8, cfg.Parallel)
	assert.Equal(t, 5*time.Second, cfg.Timeout.Std())
	assert.Equal(t, "/usr/local/bin/grpcurl", cfg.ClientBinary)
	assert.Equal(t, "out/summary.json", cfg.ReportPath)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay.Std())
	assert.Equal(t, 1.5, cfg.Retry.BackoffMultiplier)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grpcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("parallel: 2\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Parallel)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Std(), "unset keys keep their defaults")
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grpcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: soonish\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvDefaultAddress, "env.example.com:50051")
	t.Setenv(EnvPluginDir, "/opt/grpcheck/plugins")

	path := filepath.Join(t.TempDir(), "grpcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_address: file.example.com:1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.example.com:50051", cfg.DefaultAddress, "environment beats the file")
	assert.Equal(t, "/opt/grpcheck/plugins", cfg.PluginDir)
}

func TestDurationRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "1m30s\n", string(out))

	var d Duration
	require.NoError(t, yaml.Unmarshal([]byte("250ms"), &d))
	assert.Equal(t, 250*time.Millisecond, d.Std())
}
