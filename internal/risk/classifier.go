package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
)

// Classifier returns a calibrated churn probability for a feature vector.
type Classifier interface {
	Score(ctx context.Context, v *features.Vector) (float64, error)
}

// ScoreFunc adapts a function to the Classifier interface.
type ScoreFunc func(ctx context.Context, v *features.Vector) (float64, error)

func (f ScoreFunc) Score(ctx context.Context, v *features.Vector) (float64, error) {
	return f(ctx, v)
}

// ClassifierError indicates the scoring call failed or returned a value
// that is not a probability.
type ClassifierError struct {
	Probability float64
	Err         error
}

func (e *ClassifierError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier failed: %v", e.Err)
	}
	return fmt.Sprintf("classifier returned out-of-range probability %v", e.Probability)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// ValidProbability reports whether p is a finite value in [0,1].
func ValidProbability(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// modelArtifact is the on-disk form of a logistic regression model.
type modelArtifact struct {
	Kind         string             `json:"kind"`
	Version      string             `json:"version"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

const kindLogisticRegression = "logistic_regression"

// LogisticModel scores vectors with a fitted logistic regression.
// It is immutable after loading.
type LogisticModel struct {
	version   string
	intercept float64
	names     []string
	weights   []float64
}

// LoadLogisticModel reads a model artifact and checks that its coefficients
// cover exactly the columns of schema.
func LoadLogisticModel(path string, schema *features.Schema) (*LogisticModel, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	m, err := ParseLogisticModel(raw, schema)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return m, nil
}

// ParseLogisticModel decodes model artifact content against schema.
func ParseLogisticModel(raw []byte, schema *features.Schema) (*LogisticModel, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var a modelArtifact
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("invalid model JSON: %w", err)
	}
	if a.Kind != kindLogisticRegression {
		return nil, fmt.Errorf("unsupported model kind %q", a.Kind)
	}

	names := schema.Names()
	m := &LogisticModel{
		version:   a.Version,
		intercept: a.Intercept,
		names:     names,
		weights:   make([]float64, len(names)),
	}
	for i, n := range names {
		w, ok := a.Coefficients[n]
		if !ok {
			return nil, fmt.Errorf("model has no coefficient for feature %q", n)
		}
		m.weights[i] = w
	}
	if len(a.Coefficients) != len(names) {
		var extra []string
		for n := range a.Coefficients {
			if !schema.Has(n) {
				extra = append(extra, n)
			}
		}
		sort.Strings(extra)
		return nil, fmt.Errorf("model has coefficients for unknown features %v", extra)
	}
	return m, nil
}

// Version returns the artifact version string.
func (m *LogisticModel) Version() string { return m.version }

// Score computes sigmoid(intercept + w·x). The vector must carry exactly the
// model's columns.
func (m *LogisticModel) Score(_ context.Context, v *features.Vector) (float64, error) {
	if v.Schema().Len() != len(m.names) {
		return 0, fmt.Errorf("vector has %d features, model expects %d", v.Schema().Len(), len(m.names))
	}
	z := m.intercept
	for i, n := range m.names {
		x, ok := v.Get(n)
		if !ok {
			return 0, &features.SchemaMismatchError{Feature: n}
		}
		z += m.weights[i] * x
	}
	return 1 / (1 + math.Exp(-z)), nil
}
