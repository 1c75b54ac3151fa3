package models

import (
	"fmt"
	"strings"
)

// Boundary limits for numeric inputs. Values outside are rejected before
// they reach the pipeline.
const (
	MinAge    = 10
	MaxAge    = 80
	MinRating = 1
	MaxRating = 5
)

// RawProfile is a subscriber's self-reported behaviour as captured by a form,
// an agent message or the CLI. It is never mutated once captured.
type RawProfile struct {
	Age                   int    `json:"age" binding:"required,min=10,max=80"`
	ListeningFrequency    string `json:"listening_frequency" binding:"required"`
	PodcastFrequency      string `json:"podcast_frequency,omitempty"`
	ActivePodcastListener *bool  `json:"active_podcast_listener,omitempty"`
	RecommendationRating  int    `json:"recommendation_rating" binding:"required,min=1,max=5"`
	PremiumInterest       string `json:"premium_interest" binding:"required"`
}

type ListeningFrequency string

const (
	ListeningRarely       ListeningFrequency = "Rarely"
	ListeningOccasionally ListeningFrequency = "Occasionally"
	ListeningFrequently   ListeningFrequency = "Frequently"
	ListeningDaily        ListeningFrequency = "Daily"
)

var listeningFrequencies = []ListeningFrequency{
	ListeningRarely, ListeningOccasionally, ListeningFrequently, ListeningDaily,
}

type PodcastFrequency string

const (
	PodcastNever        PodcastFrequency = "Never"
	PodcastRarely       PodcastFrequency = "Rarely"
	PodcastOccasionally PodcastFrequency = "Occasionally"
	PodcastFrequently   PodcastFrequency = "Frequently"
)

var podcastFrequencies = []PodcastFrequency{
	PodcastNever, PodcastRarely, PodcastOccasionally, PodcastFrequently,
}

type PremiumInterest string

const (
	PremiumYes PremiumInterest = "Yes"
	PremiumNo  PremiumInterest = "No"
)

var premiumInterests = []PremiumInterest{PremiumYes, PremiumNo}

// ParseListeningFrequency matches a label case-insensitively.
func ParseListeningFrequency(s string) (ListeningFrequency, error) {
	return parseLabel(s, listeningFrequencies)
}

// ParsePodcastFrequency matches a label case-insensitively.
func ParsePodcastFrequency(s string) (PodcastFrequency, error) {
	return parseLabel(s, podcastFrequencies)
}

// ParsePremiumInterest matches a label case-insensitively.
func ParsePremiumInterest(s string) (PremiumInterest, error) {
	return parseLabel(s, premiumInterests)
}

func parseLabel[T ~string](s string, allowed []T) (T, error) {
	v := strings.TrimSpace(s)
	for _, a := range allowed {
		if strings.EqualFold(v, string(a)) {
			return a, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unrecognized value %q (allowed: %s)", s, joinLabels(allowed))
}

func joinLabels[T ~string](allowed []T) string {
	parts := make([]string, len(allowed))
	for i, a := range allowed {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
