package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "http://localhost:5000/simulate", cfg.Predictor.URL)
	assert.Equal(t, 10*time.Second, cfg.Predictor.Timeout)
	assert.Equal(t, uint32(10), cfg.Predictor.BreakerThreshold)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, "8080", cfg.Panel.Port)
	assert.Equal(t, "5000", cfg.Stub.Port)
	assert.Equal(t, "temperature > 180.0 && pressure < 30.0", cfg.Stub.Rule)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "GoldenBatch", cfg.Metrics.Namespace)
	assert.Equal(t, NewBuildInfo(), cfg.Build)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PREDICTOR_URL", "https://predict.plant.example/simulate")
	t.Setenv("PREDICTOR_TIMEOUT", "3s")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("AWS_REGION", "eu-west-1")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://predict.plant.example/simulate", cfg.Predictor.URL)
	assert.Equal(t, 3*time.Second, cfg.Predictor.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "eu-west-1", cfg.Metrics.Region)
}

func TestLoadConfig_DotenvFile(t *testing.T) {
	require.NoError(t, os.Unsetenv("STUB_PORT"))
	t.Cleanup(func() { os.Unsetenv("STUB_PORT") })

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("STUB_PORT=6000\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "6000", cfg.Stub.Port)
}

func TestLoadConfig_EnvironmentBeatsDotenv(t *testing.T) {
	t.Setenv("PANEL_PORT", "9090")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PANEL_PORT=7070\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Panel.Port)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown environment", "APP_ENV", "moon"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"predictor url not a url", "PREDICTOR_URL", "not a url"},
		{"zero attempts", "RETRY_MAX_ATTEMPTS", "0"},
		{"non numeric port", "PANEL_PORT", "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, ErrValidation, cfgErr.Type)
		})
	}
}

func TestLoadConfig_ParsingError(t *testing.T) {
	t.Setenv("RETRY_BASE_DELAY", "soon")

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrParsing, cfgErr.Type)
	assert.NotNil(t, cfgErr.Unwrap())
}

func TestConfigError_Format(t *testing.T) {
	withCause := &ConfigError{Type: ErrParsing, Message: "bad", Err: errors.New("boom")}
	assert.Equal(t, "[PARSING_FAILED] bad: boom", withCause.Error())

	bare := &ConfigError{Type: ErrValidation, Message: "invalid"}
	assert.Equal(t, "[VALIDATION_FAILED] invalid", bare.Error())
}

func TestNewBuildInfoDefaults(t *testing.T) {
	info := NewBuildInfo()
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "none", info.Commit)
	assert.Equal(t, "unknown", info.BuildTime)
	assert.True(t, info.Dev())
	assert.False(t, BuildInfo{Version: "1.4.0"}.Dev())
}

func TestBuildInfo_LogValue(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("start", "build", BuildInfo{Version: "1.4.0", Commit: "abc123", BuildTime: "now"})

	assert.Contains(t, buf.String(), `"build":{"version":"1.4.0","commit":"abc123","build_time":"now"}`)
}
