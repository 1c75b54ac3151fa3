package features

import (
	"errors"

	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
)

// AgeBucket is one partition of the age domain.
type AgeBucket string

const (
	AgeBucketChild  AgeBucket = "6-12"
	AgeBucketAdult  AgeBucket = "20-35"
	AgeBucketMiddle AgeBucket = "35-60"
	AgeBucketSenior AgeBucket = "60+"
)

// AgeBuckets lists every bucket in rule order.
var AgeBuckets = []AgeBucket{AgeBucketChild, AgeBucketAdult, AgeBucketMiddle, AgeBucketSenior}

// AgeGapFallsThrough records that ages 13-19 match no explicit rule and land
// in the "60+" bucket. The trained model saw the same assignment, so it is
// kept until the bucket boundaries are confirmed.
const AgeGapFallsThrough = true

// BucketForAge applies the bucket rules in order; the first match wins.
func BucketForAge(age int) AgeBucket {
	switch {
	case age <= 12:
		return AgeBucketChild
	case age >= 20 && age <= 35:
		return AgeBucketAdult
	case age >= 36 && age <= 60:
		return AgeBucketMiddle
	default:
		return AgeBucketSenior
	}
}

// Feature returns the schema column for the bucket, e.g. "Age_20-35".
func (b AgeBucket) Feature() string {
	return "Age_" + string(b)
}

// Signals holds the normalized indicators derived from a RawProfile.
type Signals struct {
	LowMusicEngagement      int       `json:"low_music_engagement"`
	LowPodcastEngagement    int       `json:"low_podcast_engagement"`
	LowRecommendationRating int       `json:"low_recommendation_rating"`
	NoPremiumInterest       int       `json:"no_premium_interest"`
	AgeBucket               AgeBucket `json:"age_bucket"`
}

// Normalize maps raw labels and sliders to indicators. It performs no I/O
// and fails only on labels outside their domain.
func Normalize(p models.RawProfile) (Signals, error) {
	var s Signals

	listening, err := models.ParseListeningFrequency(p.ListeningFrequency)
	if err != nil {
		return Signals{}, &InvalidInputError{Field: "listening_frequency", Value: p.ListeningFrequency, Err: err}
	}
	if listening == models.ListeningRarely || listening == models.ListeningOccasionally {
		s.LowMusicEngagement = 1
	}

	lowPodcast, err := lowPodcastEngagement(p)
	if err != nil {
		return Signals{}, err
	}
	s.LowPodcastEngagement = lowPodcast

	if p.RecommendationRating <= 2 {
		s.LowRecommendationRating = 1
	}

	premium, err := models.ParsePremiumInterest(p.PremiumInterest)
	if err != nil {
		return Signals{}, &InvalidInputError{Field: "premium_interest", Value: p.PremiumInterest, Err: err}
	}
	if premium == models.PremiumNo {
		s.NoPremiumInterest = 1
	}

	s.AgeBucket = BucketForAge(p.Age)
	return s, nil
}

// lowPodcastEngagement prefers the frequency label and falls back to the
// boolean listener flag.
func lowPodcastEngagement(p models.RawProfile) (int, error) {
	if p.PodcastFrequency != "" {
		freq, err := models.ParsePodcastFrequency(p.PodcastFrequency)
		if err != nil {
			return 0, &InvalidInputError{Field: "podcast_frequency", Value: p.PodcastFrequency, Err: err}
		}
		if freq == models.PodcastNever || freq == models.PodcastRarely {
			return 1, nil
		}
		return 0, nil
	}
	if p.ActivePodcastListener != nil {
		if *p.ActivePodcastListener {
			return 0, nil
		}
		return 1, nil
	}
	return 0, &InvalidInputError{
		Field: "podcast_frequency",
		Err:   errors.New("either podcast_frequency or active_podcast_listener is required"),
	}
}
