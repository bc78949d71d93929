package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the tests touch and restores them afterwards
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BTCF_CONFIG", "BTCF_MODEL_HORIZON", "BTCF_MODEL_P", "BTCF_PREPARE_FILL_POLICY",
		"BTCF_PREPARE_FREQUENCY", "BTCF_INPUT_PATH", "BTCF_LOGGING_OUTPUT",
		"BTCF_HISTORY_SQLITE_PATH", "BTCF_MODEL_MAX_P", "BTCF_TELEMETRY_METRICS_FILE",
		"BTCF_OUTPUT_PATH",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "forecast.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		file        string
		env         map[string]string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults with no file and no env",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 24*time.Hour, cfg.Prepare.Frequency)
				assert.Equal(t, "ffill", cfg.Prepare.FillPolicy)
				assert.Equal(t, 30, cfg.Model.Horizon)
				assert.Equal(t, 0.95, cfg.Model.Confidence)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.Empty(t, cfg.History.SqlitePath)
			},
		},
		{
			name: "file overrides defaults and keeps unset keys",
			file: "prepare:\n  frequency: 1h\n  fill_policy: interpolate\nmodel:\n  horizon: 7\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, time.Hour, cfg.Prepare.Frequency)
				assert.Equal(t, "interpolate", cfg.Prepare.FillPolicy)
				assert.Equal(t, 7, cfg.Model.Horizon)
				assert.Equal(t, 1, cfg.Model.P)
				assert.Equal(t, "BTC-USD", cfg.Input.SeriesName)
			},
		},
		{
			name: "env overrides file",
			file: "model:\n  horizon: 7\n",
			env:  map[string]string{"BTCF_MODEL_HORIZON": "14", "BTCF_INPUT_PATH": "prices.csv"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 14, cfg.Model.Horizon)
				assert.Equal(t, "prices.csv", cfg.Input.Path)
			},
		},
		{
			name:    "invalid fill policy",
			env:     map[string]string{"BTCF_PREPARE_FILL_POLICY": "bfill"},
			wantErr: true,
		},
		{
			name:    "non-positive horizon",
			file:    "model:\n  horizon: 0\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "model: [unterminated\n",
			wantErr: true,
		},
		{
			name: "unknown log output falls back to console",
			env:  map[string]string{"BTCF_LOGGING_OUTPUT": "syslog"},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "console", cfg.Logging.Output)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			// Run from an empty directory so no forecast.yaml is picked up
			t.Chdir(t.TempDir())

			cfg, err := Load(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoad_ConfigFromEnvVariable(t *testing.T) {
	clearEnv(t)
	path := writeConfigFile(t, "output:\n  path: out/custom.csv\n")
	t.Setenv("BTCF_CONFIG", path)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "out/custom.csv", cfg.Output.Path)
}

func TestLoad_IgnoresUnprefixedEnvironment(t *testing.T) {
	clearEnv(t)
	for key, value := range map[string]string{
		"PATH":        "/usr/local/bin:/usr/bin",
		"LEVEL":       "debug",
		"OUTPUT":      "file",
		"ENVIRONMENT": "production",
		"HORIZON":     "99",
		"P":           "5",
		"SQLITE_PATH": "/tmp/other.db",
	} {
		t.Setenv(key, value)
	}
	path := writeConfigFile(t, "input:\n  path: prices.csv\noutput:\n  path: out.csv\n")
	t.Chdir(t.TempDir())

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prices.csv", cfg.Input.Path)
	assert.Equal(t, "out.csv", cfg.Output.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "development", cfg.Telemetry.Environment)
	assert.Equal(t, 30, cfg.Model.Horizon)
	assert.Equal(t, 1, cfg.Model.P)
	assert.Empty(t, cfg.History.SqlitePath)
}

func TestLoad_PrefixedEnvironmentKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("BTCF_HISTORY_SQLITE_PATH", "runs.db")
	t.Setenv("BTCF_MODEL_MAX_P", "5")
	t.Setenv("BTCF_TELEMETRY_METRICS_FILE", "metrics/forecast.prom")
	t.Setenv("BTCF_OUTPUT_PATH", "reports/btc.csv")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "runs.db", cfg.History.SqlitePath)
	assert.Equal(t, 5, cfg.Model.MaxP)
	assert.Equal(t, "metrics/forecast.prom", cfg.Telemetry.MetricsFile)
	assert.Equal(t, "reports/btc.csv", cfg.Output.Path)
}

func TestLoad_SampleConfigKeepsHistoryDisabled(t *testing.T) {
	clearEnv(t)
	t.Chdir(filepath.Join("..", ".."))
	require.FileExists(t, DefaultConfigFile)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/btc_prices.xlsx", cfg.Input.Path)
	assert.Empty(t, cfg.History.SqlitePath)
}

func TestModelConfig_ToDomain(t *testing.T) {
	m := Default().Model
	m.P, m.D, m.Q = 2, 1, 0
	m.TestSize = 10

	d := m.ToDomain()
	assert.Equal(t, 2, d.Order.P)
	assert.Equal(t, 1, d.Order.D)
	assert.Equal(t, 0, d.Order.Q)
	assert.Equal(t, 10, d.TestSize)
	assert.Equal(t, "aic", d.Criterion)
}
