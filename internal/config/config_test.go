package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/proth-cli/internal/resonance"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, resonance.DefaultParams(), cfg.Resonance)
	assert.Equal(t, 10, cfg.Proth.Trials)
	assert.Equal(t, int64(2025), cfg.Proth.Seed)
	assert.Equal(t, 400, cfg.Proth.Samples)
	assert.Equal(t, uint(8), cfg.Proth.NMin)
	assert.Equal(t, uint(22), cfg.Proth.NMax)
	assert.Equal(t, 600, cfg.Certify.TimeoutSecs)
	assert.Equal(t, 10*time.Minute, cfg.Certify.Timeout())
	assert.Equal(t, []string{".ecpp", ".cert"}, cfg.Certify.CertSuffixes)
	assert.Equal(t, uint64(1_000_000_000_000), cfg.Certify.ResonanceMaxN)
	assert.False(t, cfg.Certify.RequireRigor)
	assert.Equal(t, 1, cfg.Certify.MaxAttempts)
	assert.Equal(t, 1000, cfg.Certify.RetryBackoffMs)
	assert.Equal(t, uint64(20000), cfg.Ablation.N)
	assert.Equal(t, 4, cfg.Ablation.Workers)
	assert.Equal(t, 4, cfg.Batch.MaxConcurrent)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "proth.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
resonance:
  k: -1.2
  beta: 400
proth:
  trials: 25
certify:
  ecpp_cmd: "ecpp-tool {N}"
  timeout_secs: 30
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, -1.2, cfg.Resonance.K, 1e-12)
	assert.InDelta(t, 400, cfg.Resonance.Beta, 1e-12)
	assert.Equal(t, 25, cfg.Proth.Trials)
	assert.Equal(t, "ecpp-tool {N}", cfg.Certify.ECPPCmd)
	assert.Equal(t, 30*time.Second, cfg.Certify.Timeout())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.InDelta(t, resonance.DefaultMu, cfg.Resonance.Mu, 1e-12)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PROTH_STORE_DRIVER", "postgres")
	t.Setenv("PROTH_LOG_LEVEL", "warn")
	t.Setenv("PROTH_RESONANCE_BETA", "150")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.InDelta(t, 150, cfg.Resonance.Beta, 1e-12)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("resonance: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Resonance = resonance.DefaultParams()
	cfg.Proth = ProthConfig{Trials: 10, Seed: 1, Samples: 10, NMin: 8, NMax: 22}
	cfg.Certify.MaxAttempts = 1
	cfg.Batch.MaxConcurrent = 4
	cfg.Store.Driver = "sqlite"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validDefaults().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero mu", func(c *Config) { c.Resonance.Mu = 0 }, "mu must be > 0"},
		{"negative trials", func(c *Config) { c.Proth.Trials = -1 }, "proth.trials"},
		{"inverted n range", func(c *Config) { c.Proth.NMin, c.Proth.NMax = 10, 5 }, "n range"},
		{"negative timeout", func(c *Config) { c.Certify.TimeoutSecs = -1 }, "timeout_secs"},
		{"rigor without tool", func(c *Config) { c.Certify.RequireRigor = true }, "require_rigor needs"},
		{"template without placeholder", func(c *Config) { c.Certify.ECPPCmd = "ecpp-tool" }, "no {N} placeholder"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "unknown store driver"},
		{"zero concurrency", func(c *Config) { c.Batch.MaxConcurrent = 0 }, "max_concurrent"},
		{"zero attempts", func(c *Config) { c.Certify.MaxAttempts = 0 }, "max_attempts"},
		{"negative launch rate", func(c *Config) { c.Certify.MaxLaunchesPerSec = -2 }, "max_launches_per_sec"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
