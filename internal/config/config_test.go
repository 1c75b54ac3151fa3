package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PORT", "CHURN_ARTIFACT_DIR", "CHURN_FEATURE_NAMES_FILE", "CHURN_MODEL_FILE",
	"CHURN_THRESHOLD_PRESET", "CHURN_HIGH_THRESHOLD", "CHURN_MEDIUM_THRESHOLD",
	"CHURN_COMPOSITES", "GEMINI_API_KEY", "CHURN_GEMINI_MODEL", "CHURN_LOG_LEVEL",
	"CHURN_JSON_LOG", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, risk.DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, features.CompositesFromSchema, cfg.Composites)
	assert.Equal(t, filepath.Join("model", "feature_names.json"), cfg.FeatureNamesPath())
	assert.Equal(t, filepath.Join("model", "churn_model.json"), cfg.ModelPath())
	assert.False(t, cfg.AdvisorEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("CHURN_ARTIFACT_DIR", "/srv/artifacts")
	t.Setenv("CHURN_THRESHOLD_PRESET", "dashboard")
	t.Setenv("CHURN_MEDIUM_THRESHOLD", "0.35")
	t.Setenv("CHURN_COMPOSITES", "required")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("CHURN_JSON_LOG", "true")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/srv/artifacts/churn_model.json", filepath.ToSlash(cfg.ModelPath()))
	assert.Equal(t, risk.Thresholds{High: 0.65, Medium: 0.35}, cfg.Thresholds)
	assert.Equal(t, features.CompositesRequired, cfg.Composites)
	assert.True(t, cfg.AdvisorEnabled())
	assert.True(t, cfg.JSONLog)
	assert.Equal(t, "collector:4317", cfg.MetricsEndpoint)
	assert.Equal(t, "collector:4317", cfg.TracesEndpoint)
}

func TestConfigFromEnv_SignalEndpoints(t *testing.T) {
	clearEnv(t)
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "tempo:4317")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "collector:4317", cfg.MetricsEndpoint)
	assert.Equal(t, "tempo:4317", cfg.TracesEndpoint)
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CHURN_THRESHOLD_PRESET", "strict"},
		{"CHURN_HIGH_THRESHOLD", "high"},
		{"CHURN_MEDIUM_THRESHOLD", "0.4x"},
		{"CHURN_COMPOSITES", "some"},
		{"CHURN_JSON_LOG", "maybe"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := ConfigFromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Thresholds = risk.Thresholds{High: 0.3, Medium: 0.5}
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is present, even if empty.
	require.NoError(t, os.Unsetenv("CHURN_LOG_LEVEL"))
	dir := t.TempDir()

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("CHURN_LOG_LEVEL=debug\n"), 0o644))
	require.NoError(t, LoadDotEnv(path))

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}
