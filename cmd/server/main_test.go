package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MissingArtifactsReturnsError(t *testing.T) {
	for _, k := range []string{"CHURN_FEATURE_NAMES_FILE", "CHURN_MODEL_FILE", "CHURN_THRESHOLD_PRESET",
		"CHURN_HIGH_THRESHOLD", "CHURN_MEDIUM_THRESHOLD", "CHURN_COMPOSITES", "GEMINI_API_KEY", "CHURN_JSON_LOG",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"} {
		t.Setenv(k, "")
	}
	t.Setenv("CHURN_ARTIFACT_DIR", t.TempDir())
	t.Setenv("CHURN_LOG_LEVEL", "error")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load churn artifacts")
}

func TestRun_InvalidConfigReturnsError(t *testing.T) {
	t.Setenv("CHURN_THRESHOLD_PRESET", "strict")
	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestFlush(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	called := false
	flush(logger, "metrics", func(ctx context.Context) error {
		called = true
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		return errors.New("collector unreachable")
	})

	assert.True(t, called)
	assert.Contains(t, buf.String(), "metrics shutdown failed")
	assert.Contains(t, buf.String(), "collector unreachable")
}
