package risk

import (
	"fmt"
	"strings"
)

// Tier is a discrete churn risk category.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

const (
	rationaleHigh   = "low engagement and low satisfaction signals dominant."
	rationaleMedium = "engagement optimization recommended."
	rationaleLow    = "user healthy; retention content recommended."

	headlineHigh   = "High churn risk — Immediate retention action recommended"
	headlineMedium = "Moderate churn risk — Engagement optimization needed"
	headlineLow    = "Low churn risk — User is healthy"
)

// Thresholds are the lower bounds of the High and Medium tiers.
type Thresholds struct {
	High   float64 `json:"high"`
	Medium float64 `json:"medium"`
}

// DefaultThresholds is the documented cutoff pair.
var DefaultThresholds = Thresholds{High: 0.70, Medium: 0.40}

// DashboardThresholds is the cutoff pair used by the analytics dashboard.
// It disagrees with DefaultThresholds on the High bound; which pair is
// authoritative has not been confirmed, so it is only used when selected.
var DashboardThresholds = Thresholds{High: 0.65, Medium: 0.40}

// ThresholdPreset resolves a named cutoff pair: "default" or "dashboard".
func ThresholdPreset(name string) (Thresholds, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultThresholds, nil
	case "dashboard":
		return DashboardThresholds, nil
	}
	return Thresholds{}, fmt.Errorf("unknown threshold preset %q", name)
}

// Validate requires 0 < Medium < High <= 1.
func (t Thresholds) Validate() error {
	if !(t.Medium > 0 && t.Medium < t.High && t.High <= 1) {
		return fmt.Errorf("invalid thresholds high=%v medium=%v: need 0 < medium < high <= 1", t.High, t.Medium)
	}
	return nil
}

// Assessment is the interpreted outcome of one analysis.
type Assessment struct {
	Probability float64 `json:"probability"`
	Tier        Tier    `json:"tier"`
	Rationale   string  `json:"rationale"`
	Headline    string  `json:"headline"`
}

// Percent renders the probability as a percentage with two decimals.
func (a Assessment) Percent() string {
	return fmt.Sprintf("%.2f%%", a.Probability*100)
}

// Resolver maps probabilities to tiers.
type Resolver struct {
	thresholds Thresholds
}

// NewResolver validates t and returns a Resolver using it.
func NewResolver(t Thresholds) (*Resolver, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Resolver{thresholds: t}, nil
}

// Thresholds returns the cutoffs in use.
func (r *Resolver) Thresholds() Thresholds { return r.thresholds }

// Resolve assigns a tier to p, checking bounds from High down. Intervals
// are closed at the bottom: p == High is High, p == Medium is Medium.
func (r *Resolver) Resolve(p float64) Assessment {
	switch {
	case p >= r.thresholds.High:
		return Assessment{Probability: p, Tier: TierHigh, Rationale: rationaleHigh, Headline: headlineHigh}
	case p >= r.thresholds.Medium:
		return Assessment{Probability: p, Tier: TierMedium, Rationale: rationaleMedium, Headline: headlineMedium}
	default:
		return Assessment{Probability: p, Tier: TierLow, Rationale: rationaleLow, Headline: headlineLow}
	}
}
