package config_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cubist/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cubist.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.Execution.DefaultTimeout)
	assert.Equal(t, 4, cfg.Shepherd.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Shepherd.Interval)
	assert.Empty(t, cfg.Monitor.Database)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
execution:
  default_timeout: 2s
shepherd:
  workers: 8
monitor:
  database: /tmp/executions.db
  metrics: true
log:
  level: DEBUG
  format: json
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Execution.DefaultTimeout)
	assert.Equal(t, 8, cfg.Shepherd.Workers)
	assert.Equal(t, 100*time.Millisecond, cfg.Shepherd.Interval, "unset keys keep defaults")
	assert.Equal(t, "/tmp/executions.db", cfg.Monitor.Database)
	assert.True(t, cfg.Monitor.Metrics)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "shepherd:\n  workers: 8\n")
	t.Setenv("CUBIST_SHEPHERD_WORKERS", "16")
	t.Setenv("CUBIST_EXECUTION_DEFAULT_TIMEOUT", "0s")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Shepherd.Workers)
	assert.Zero(t, cfg.Execution.DefaultTimeout)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no workers", "shepherd:\n  workers: 0\n"},
		{"negative timeout", "execution:\n  default_timeout: -1s\n"},
		{"unknown level", "log:\n  level: chatty\n"},
		{"unknown format", "log:\n  format: xml\n"},
		{"empty queue", "monitor:\n  queue_size: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLogger_JSON(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	var buf bytes.Buffer
	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "execution", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, float64(7), line["execution"])
}

func TestLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	config.Default().Logger(&buf).Debug("hidden")
	config.Default().Logger(&buf).Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}
