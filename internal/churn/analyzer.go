// Package churn runs the churn risk pipeline: normalize a RawProfile, build
// the feature vector, score it and resolve the risk tier.
package churn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BerylCAtieno/churn-risk-agent/internal/config"
	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
	"github.com/BerylCAtieno/churn-risk-agent/internal/risk"
	"github.com/BerylCAtieno/churn-risk-agent/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Failure kinds reported in metrics and logs.
const (
	KindSchemaLoad     = "schema_load"
	KindInvalidInput   = "invalid_input"
	KindSchemaMismatch = "schema_mismatch"
	KindClassifier     = "classifier"
	KindUnknown        = "unknown"
)

// FailureKind classifies a pipeline error.
func FailureKind(err error) string {
	var (
		loadErr     *features.SchemaLoadError
		inputErr    *features.InvalidInputError
		mismatchErr *features.SchemaMismatchError
		classErr    *risk.ClassifierError
	)
	switch {
	case errors.As(err, &loadErr):
		return KindSchemaLoad
	case errors.As(err, &inputErr):
		return KindInvalidInput
	case errors.As(err, &mismatchErr):
		return KindSchemaMismatch
	case errors.As(err, &classErr):
		return KindClassifier
	default:
		return KindUnknown
	}
}

// Options tune an Analyzer.
type Options struct {
	Composites  features.CompositePolicy
	Instruments *telemetry.Instruments
	Logger      *slog.Logger
}

// Analyzer owns the long-lived pipeline collaborators. It is safe for
// concurrent use; each Analyze call builds its own vector.
type Analyzer struct {
	registry   *features.Registry
	classifier risk.Classifier
	resolver   *risk.Resolver
	composites features.CompositePolicy
	metrics    *telemetry.Instruments
	logger     *slog.Logger
}

// NewAnalyzer wires the pipeline.
func NewAnalyzer(registry *features.Registry, classifier risk.Classifier, resolver *risk.Resolver, opts Options) (*Analyzer, error) {
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if resolver == nil {
		return nil, errors.New("resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	composites := opts.Composites
	if composites == "" {
		composites = features.CompositesFromSchema
	}
	if _, err := features.ParseCompositePolicy(string(composites)); err != nil {
		return nil, err
	}
	return &Analyzer{
		registry:   registry,
		classifier: classifier,
		resolver:   resolver,
		composites: composites,
		metrics:    opts.Instruments,
		logger:     logger,
	}, nil
}

// Open loads both artifacts named by cfg and returns a ready Analyzer.
// Any load failure is returned; the service cannot run without them.
func Open(cfg config.Config, inst *telemetry.Instruments, logger *slog.Logger) (*Analyzer, error) {
	registry := features.NewRegistry(cfg.FeatureNamesPath())
	schema, err := registry.Load()
	if err != nil {
		return nil, err
	}
	model, err := risk.LoadLogisticModel(cfg.ModelPath(), schema)
	if err != nil {
		return nil, &features.SchemaLoadError{Path: cfg.ModelPath(), Err: err}
	}
	resolver, err := risk.NewResolver(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("churn artifacts loaded",
		"features", schema.Len(),
		"model_version", model.Version(),
		"high_threshold", cfg.Thresholds.High,
		"medium_threshold", cfg.Thresholds.Medium,
		"composites", cfg.Composites)

	return NewAnalyzer(registry, model, resolver, Options{
		Composites:  cfg.Composites,
		Instruments: inst,
		Logger:      logger,
	})
}

// Schema returns the loaded feature schema.
func (a *Analyzer) Schema() (*features.Schema, error) {
	return a.registry.Load()
}

// Thresholds returns the tier cutoffs in use.
func (a *Analyzer) Thresholds() risk.Thresholds {
	return a.resolver.Thresholds()
}

// Result is the full outcome of one analysis.
type Result struct {
	Assessment risk.Assessment     `json:"assessment"`
	Signals    features.Signals    `json:"signals"`
	Composites features.Composites `json:"composites"`
	Features   []features.Entry    `json:"features"`
}

// Analyze runs the pipeline once. Every failure aborts the analysis; no
// placeholder assessment is ever returned.
func (a *Analyzer) Analyze(ctx context.Context, p models.RawProfile) (_ *Result, err error) {
	ctx, span, end := telemetry.StartSpan(ctx, "churn.Analyze")
	defer func() { end(err) }()

	res, err := a.analyze(ctx, p)
	if err != nil {
		kind := FailureKind(err)
		span.SetAttributes(attribute.String("churn.failure_kind", kind))
		a.metrics.RecordFailure(ctx, kind)
		a.logger.Warn("churn analysis failed", "kind", kind, "error", err)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("churn.tier", string(res.Assessment.Tier)),
		attribute.Float64("churn.probability", res.Assessment.Probability),
	)
	a.metrics.RecordAnalysis(ctx, string(res.Assessment.Tier), res.Assessment.Probability)
	a.logger.Debug("churn analysis completed",
		"tier", res.Assessment.Tier,
		"probability", res.Assessment.Probability,
		"age_bucket", res.Signals.AgeBucket)
	return res, nil
}

func (a *Analyzer) analyze(ctx context.Context, p models.RawProfile) (*Result, error) {
	schema, err := a.registry.Load()
	if err != nil {
		return nil, err
	}

	signals, err := features.Normalize(p)
	if err != nil {
		return nil, err
	}

	vec, err := features.Build(signals, p.RecommendationRating, schema, a.composites)
	if err != nil {
		return nil, fmt.Errorf("build feature vector: %w", err)
	}

	prob, err := a.classifier.Score(ctx, vec)
	if err != nil {
		var mismatch *features.SchemaMismatchError
		if errors.As(err, &mismatch) {
			return nil, fmt.Errorf("score feature vector: %w", err)
		}
		return nil, &risk.ClassifierError{Err: err}
	}
	if !risk.ValidProbability(prob) {
		return nil, &risk.ClassifierError{Probability: prob}
	}

	return &Result{
		Assessment: a.resolver.Resolve(prob),
		Signals:    signals,
		Composites: features.ComputeComposites(signals),
		Features:   vec.Entries(),
	}, nil
}
