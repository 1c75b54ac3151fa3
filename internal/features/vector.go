package features

import (
	"fmt"
	"strings"
)

// Indicator and pass-through columns written on every build.
const (
	FeatureLowMusicEngagement      = "low_music_engagement"
	FeatureLowPodcastEngagement    = "low_podcast_engagement"
	FeatureLowRecommendationRating = "low_recommendation_rating"
	FeatureNoPremiumInterest       = "no_premium_interest"
	FeatureMusicReccRating         = "music_recc_rating"
)

// Composite columns.
const (
	FeatureEngagementScore   = "engagement_score"
	FeatureSatisfactionScore = "satisfaction_score"
	FeatureMonetizationScore = "monetization_score"
	FeatureChurnPressure     = "churn_pressure"
)

// CompositeFeatures lists the composite columns in write order.
var CompositeFeatures = []string{
	FeatureEngagementScore,
	FeatureSatisfactionScore,
	FeatureMonetizationScore,
	FeatureChurnPressure,
}

// Fixed blend weights for churn_pressure.
const (
	EngagementWeight   = 0.5
	SatisfactionWeight = 0.3
	MonetizationWeight = 0.2
)

// CompositePolicy selects which composite scores a build writes.
type CompositePolicy string

const (
	// CompositesFromSchema writes each composite the schema defines.
	CompositesFromSchema CompositePolicy = "schema"
	// CompositesRequired writes all composites and fails if one is missing.
	CompositesRequired CompositePolicy = "required"
	// CompositesDisabled never writes composites.
	CompositesDisabled CompositePolicy = "none"
)

// ParseCompositePolicy accepts "schema", "required" or "none".
func ParseCompositePolicy(s string) (CompositePolicy, error) {
	switch p := CompositePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CompositesFromSchema, CompositesRequired, CompositesDisabled:
		return p, nil
	}
	return "", fmt.Errorf("unknown composite policy %q", s)
}

// Vector is a fixed-shape feature record over a Schema. Every schema column
// is present from construction, and writes to any other name are rejected.
type Vector struct {
	schema *Schema
	values []float64
}

// NewVector returns a zero-filled vector over s.
func NewVector(s *Schema) *Vector {
	return &Vector{schema: s, values: make([]float64, s.Len())}
}

// Schema returns the schema the vector is shaped by.
func (v *Vector) Schema() *Schema { return v.schema }

// Set writes a column value.
func (v *Vector) Set(name string, value float64) error {
	i, ok := v.schema.Index(name)
	if !ok {
		return &SchemaMismatchError{Feature: name}
	}
	v.values[i] = value
	return nil
}

// Get returns a column value.
func (v *Vector) Get(name string) (float64, bool) {
	i, ok := v.schema.Index(name)
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Values returns a copy of the values in schema order.
func (v *Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// Map returns the vector as a name → value map.
func (v *Vector) Map() map[string]float64 {
	out := make(map[string]float64, len(v.values))
	for i, n := range v.schema.names {
		out[n] = v.values[i]
	}
	return out
}

// Entry is one named column of a vector.
type Entry struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Entries returns the columns in schema order.
func (v *Vector) Entries() []Entry {
	out := make([]Entry, len(v.values))
	for i, n := range v.schema.names {
		out[i] = Entry{Name: n, Value: v.values[i]}
	}
	return out
}

// Composites are the derived scores computed from Signals.
type Composites struct {
	EngagementScore   float64 `json:"engagement_score"`
	SatisfactionScore float64 `json:"satisfaction_score"`
	MonetizationScore float64 `json:"monetization_score"`
	ChurnPressure     float64 `json:"churn_pressure"`
}

// ComputeComposites derives the composite scores.
func ComputeComposites(s Signals) Composites {
	c := Composites{
		EngagementScore:   float64(s.LowMusicEngagement + s.LowPodcastEngagement),
		SatisfactionScore: float64(s.LowRecommendationRating),
		MonetizationScore: float64(s.NoPremiumInterest),
	}
	c.ChurnPressure = EngagementWeight*c.EngagementScore +
		SatisfactionWeight*c.SatisfactionScore +
		MonetizationWeight*c.MonetizationScore
	return c
}

func (c Composites) byFeature() map[string]float64 {
	return map[string]float64{
		FeatureEngagementScore:   c.EngagementScore,
		FeatureSatisfactionScore: c.SatisfactionScore,
		FeatureMonetizationScore: c.MonetizationScore,
		FeatureChurnPressure:     c.ChurnPressure,
	}
}

// Build assembles the classifier input: zero-fill, one age bucket, the four
// indicators, the raw rating, then composites according to policy.
func Build(s Signals, rating int, schema *Schema, policy CompositePolicy) (*Vector, error) {
	switch policy {
	case "":
		policy = CompositesFromSchema
	case CompositesFromSchema, CompositesRequired, CompositesDisabled:
	default:
		return nil, fmt.Errorf("unknown composite policy %q", policy)
	}
	v := NewVector(schema)

	writes := []Entry{
		{Name: s.AgeBucket.Feature(), Value: 1},
		{Name: FeatureLowMusicEngagement, Value: float64(s.LowMusicEngagement)},
		{Name: FeatureLowPodcastEngagement, Value: float64(s.LowPodcastEngagement)},
		{Name: FeatureLowRecommendationRating, Value: float64(s.LowRecommendationRating)},
		{Name: FeatureNoPremiumInterest, Value: float64(s.NoPremiumInterest)},
		{Name: FeatureMusicReccRating, Value: float64(rating)},
	}
	for _, w := range writes {
		if err := v.Set(w.Name, w.Value); err != nil {
			return nil, err
		}
	}

	if policy == CompositesDisabled {
		return v, nil
	}
	scores := ComputeComposites(s).byFeature()
	for _, name := range CompositeFeatures {
		if policy == CompositesFromSchema && !schema.Has(name) {
			continue
		}
		if err := v.Set(name, scores[name]); err != nil {
			return nil, err
		}
	}
	return v, nil
}
