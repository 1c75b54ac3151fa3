package a2a

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
)

var errNoProfile = errors.New("no subscriber profile found in message")

// keyAliases maps the short keys people type to RawProfile JSON names.
var keyAliases = map[string]string{
	"age":                     "age",
	"listening":               "listening_frequency",
	"listening_frequency":     "listening_frequency",
	"music_frequency":         "listening_frequency",
	"podcast":                 "podcast_frequency",
	"podcasts":                "podcast_frequency",
	"podcast_frequency":       "podcast_frequency",
	"active_podcast_listener": "active_podcast_listener",
	"rating":                  "recommendation_rating",
	"recommendation":          "recommendation_rating",
	"recommendation_rating":   "recommendation_rating",
	"premium":                 "premium_interest",
	"premium_interest":        "premium_interest",
}

// Openings of this agent's own replies. History entries that start with one
// are never read as a subscriber profile.
const (
	usageIntro    = "Please describe the subscriber"
	problemIntro  = "I couldn't use that profile"
	rangeIntro    = "Some profile values are out of range"
	reportHeading = "# Churn Risk Assessment"
	failureIntro  = "Churn analysis failed"
)

var agentReplyIntros = []string{usageIntro, problemIntro, rangeIntro, reportHeading, failureIntro}

func canonicalKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.ReplaceAll(k, " ", "_")
}

// extractProfile reads a RawProfile from the message in priority order:
// a data part holding a profile object, then the message's own text parts
// (latest first), then the latest user turn of any history carried in a
// data part.
func extractProfile(msg A2AMessage) (models.RawProfile, error) {
	var texts []string
	var histories [][]map[string]interface{}

	for _, part := range msg.Parts {
		switch part.Kind {
		case "data":
			obj, history := decodeData(part.Data)
			if obj != nil {
				if p, ok, err := profileFromObject(obj); ok || err != nil {
					return p, err
				}
			}
			if history != nil {
				histories = append(histories, history)
			}
		case "text":
			if s, ok := part.Text.(string); ok && strings.TrimSpace(s) != "" {
				texts = append(texts, s)
			}
		}
	}

	for i := len(texts) - 1; i >= 0; i-- {
		if p, ok, err := parseProfileText(texts[i]); ok || err != nil {
			return p, err
		}
	}

	for i := len(histories) - 1; i >= 0; i-- {
		text, ok := latestUserText(histories[i])
		if !ok {
			continue
		}
		if p, ok, err := parseProfileText(text); ok || err != nil {
			return p, err
		}
	}
	return models.RawProfile{}, errNoProfile
}

// decodeData returns the data part as an object or as a history array.
// Anything else yields neither.
func decodeData(data interface{}) (map[string]json.RawMessage, []map[string]interface{}) {
	if data == nil {
		return nil, nil
	}

	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, nil
		}
		raw = b
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj, nil
	}
	var history []map[string]interface{}
	if err := json.Unmarshal(raw, &history); err == nil {
		return nil, history
	}
	return nil, nil
}

// latestUserText returns the newest history text written by the user. Only
// that one turn is considered; older turns are never scored.
func latestUserText(history []map[string]interface{}) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if kind, _ := entry["kind"].(string); kind != "text" {
			continue
		}
		if role, _ := entry["role"].(string); role == RoleAgent {
			continue
		}
		text, _ := entry["text"].(string)
		text = stripParagraphs(text)
		if text == "" || isAgentReply(text) {
			continue
		}
		return text, true
	}
	return "", false
}

func isAgentReply(text string) bool {
	for _, intro := range agentReplyIntros {
		if strings.HasPrefix(text, intro) {
			return true
		}
	}
	return false
}

// profileFromObject decodes a profile object, accepting the same short keys
// as text input. The canonical spelling wins when both are present. ok is
// false when the object carries no profile key.
func profileFromObject(obj map[string]json.RawMessage) (models.RawProfile, bool, error) {
	fields := make(map[string]json.RawMessage, len(obj))
	for k, v := range obj {
		name, ok := keyAliases[canonicalKey(k)]
		if !ok {
			continue
		}
		if _, seen := fields[name]; seen && k != name {
			continue
		}
		fields[name] = v
	}
	if len(fields) == 0 {
		return models.RawProfile{}, false, nil
	}

	raw, err := json.Marshal(fields)
	if err != nil {
		return models.RawProfile{}, true, &features.InvalidInputError{Field: "profile", Err: err}
	}
	var p models.RawProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return models.RawProfile{}, true, &features.InvalidInputError{Field: "profile", Err: err}
	}
	applyPodcastActivity(&p)
	return p, true, nil
}

// applyPodcastActivity turns a podcast value of "active"/"inactive" into the
// boolean form.
func applyPodcastActivity(p *models.RawProfile) {
	switch strings.ToLower(strings.TrimSpace(p.PodcastFrequency)) {
	case "active":
		p.PodcastFrequency = ""
		p.ActivePodcastListener = boolPtr(true)
	case "inactive":
		p.PodcastFrequency = ""
		p.ActivePodcastListener = boolPtr(false)
	}
}

func stripParagraphs(text string) string {
	text = strings.ReplaceAll(text, "<p>", "")
	text = strings.ReplaceAll(text, "</p>", "")
	return strings.TrimSpace(text)
}

// parseProfileText parses "age: 25, listening: Daily, ..." (":" or "="
// separators, "," ";" or newline between pairs). ok is false when no known
// key is present.
func parseProfileText(text string) (models.RawProfile, bool, error) {
	text = stripParagraphs(text)

	fields := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == '\n' || r == ';' })

	data := make(map[string]string)
	for _, f := range fields {
		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 {
			parts = strings.SplitN(f, "=", 2)
		}
		if len(parts) != 2 {
			continue
		}
		if canonical, ok := keyAliases[canonicalKey(parts[0])]; ok {
			data[canonical] = strings.TrimSpace(parts[1])
		}
	}
	if len(data) == 0 {
		return models.RawProfile{}, false, nil
	}

	var p models.RawProfile
	var err error
	if v, ok := data["age"]; ok {
		if p.Age, err = strconv.Atoi(v); err != nil {
			return models.RawProfile{}, true, &features.InvalidInputError{Field: "age", Value: v, Err: fmt.Errorf("not a whole number")}
		}
	}
	if v, ok := data["recommendation_rating"]; ok {
		if p.RecommendationRating, err = strconv.Atoi(v); err != nil {
			return models.RawProfile{}, true, &features.InvalidInputError{Field: "recommendation_rating", Value: v, Err: fmt.Errorf("not a whole number")}
		}
	}
	p.ListeningFrequency = data["listening_frequency"]
	p.PremiumInterest = data["premium_interest"]
	p.PodcastFrequency = data["podcast_frequency"]
	applyPodcastActivity(&p)

	if v, ok := data["active_podcast_listener"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return models.RawProfile{}, true, &features.InvalidInputError{Field: "active_podcast_listener", Value: v, Err: fmt.Errorf("not a boolean")}
		}
		p.ActivePodcastListener = boolPtr(b)
	}
	return p, true, nil
}

func boolPtr(b bool) *bool { return &b }
