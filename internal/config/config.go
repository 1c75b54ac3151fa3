package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/risk"
	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Port string

	// ArtifactDir holds the feature-name and model artifacts.
	ArtifactDir      string
	FeatureNamesFile string
	ModelFile        string

	// ThresholdPreset names the tier cutoffs ("default" or "dashboard").
	// Thresholds holds the resolved pair, including any explicit overrides.
	ThresholdPreset string
	Thresholds      risk.Thresholds

	Composites features.CompositePolicy

	// Gemini is optional; the retention advisor is disabled without a key.
	GeminiAPIKey string
	GeminiModel  string

	LogLevel string
	JSONLog  bool

	MetricsEndpoint string
	TracesEndpoint  string
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Port:             "8080",
		ArtifactDir:      "model",
		FeatureNamesFile: "feature_names.json",
		ModelFile:        "churn_model.json",
		ThresholdPreset:  "default",
		Thresholds:       risk.DefaultThresholds,
		Composites:       features.CompositesFromSchema,
		GeminiModel:      "gemini-2.5-flash-lite",
		LogLevel:         "info",
	}
}

// LoadDotEnv reads a .env file into the environment if one exists.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if p := os.Getenv("PORT"); p != "" {
		cfg.Port = p
	}

	if d := os.Getenv("CHURN_ARTIFACT_DIR"); d != "" {
		cfg.ArtifactDir = d
	}
	if f := os.Getenv("CHURN_FEATURE_NAMES_FILE"); f != "" {
		cfg.FeatureNamesFile = f
	}
	if f := os.Getenv("CHURN_MODEL_FILE"); f != "" {
		cfg.ModelFile = f
	}

	if p := os.Getenv("CHURN_THRESHOLD_PRESET"); p != "" {
		t, err := risk.ThresholdPreset(p)
		if err != nil {
			return Config{}, fmt.Errorf("CHURN_THRESHOLD_PRESET: %w", err)
		}
		cfg.ThresholdPreset = p
		cfg.Thresholds = t
	}
	if v := os.Getenv("CHURN_HIGH_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CHURN_HIGH_THRESHOLD: %w", err)
		}
		cfg.Thresholds.High = f
	}
	if v := os.Getenv("CHURN_MEDIUM_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("CHURN_MEDIUM_THRESHOLD: %w", err)
		}
		cfg.Thresholds.Medium = f
	}

	if c := os.Getenv("CHURN_COMPOSITES"); c != "" {
		p, err := features.ParseCompositePolicy(c)
		if err != nil {
			return Config{}, fmt.Errorf("CHURN_COMPOSITES: %w", err)
		}
		cfg.Composites = p
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if m := os.Getenv("CHURN_GEMINI_MODEL"); m != "" {
		cfg.GeminiModel = m
	}

	if l := os.Getenv("CHURN_LOG_LEVEL"); l != "" {
		cfg.LogLevel = l
	}
	if j := os.Getenv("CHURN_JSON_LOG"); j != "" {
		b, err := strconv.ParseBool(j)
		if err != nil {
			return Config{}, fmt.Errorf("CHURN_JSON_LOG: %w", err)
		}
		cfg.JSONLog = b
	}

	shared := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.MetricsEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if cfg.MetricsEndpoint == "" {
		cfg.MetricsEndpoint = shared
	}
	cfg.TracesEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	if cfg.TracesEndpoint == "" {
		cfg.TracesEndpoint = shared
	}

	return cfg, nil
}

// Validate checks values that would otherwise fail later at start-up.
func (c Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.ArtifactDir == "" || c.FeatureNamesFile == "" || c.ModelFile == "" {
		return errors.New("artifact locations are required")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if _, err := features.ParseCompositePolicy(string(c.Composites)); err != nil {
		return err
	}
	return nil
}

// FeatureNamesPath is the resolved feature-name artifact location.
func (c Config) FeatureNamesPath() string {
	return filepath.Join(c.ArtifactDir, c.FeatureNamesFile)
}

// ModelPath is the resolved model artifact location.
func (c Config) ModelPath() string {
	return filepath.Join(c.ArtifactDir, c.ModelFile)
}

// AdvisorEnabled reports whether a Gemini key is configured.
func (c Config) AdvisorEnabled() bool {
	return c.GeminiAPIKey != ""
}
