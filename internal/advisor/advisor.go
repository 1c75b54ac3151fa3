package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/BerylCAtieno/churn-risk-agent/internal/churn"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient drafts retention playbooks for assessed subscribers.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiClient(apiKey, modelName string) (*GeminiClient, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.4)
	model.SetTopP(0.95)
	model.SetMaxOutputTokens(512)

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiClient) Close() {
	g.client.Close()
}

// RetentionPlan asks the model for a short playbook matching the result's
// tier and signals. It never changes the assessment itself.
func (g *GeminiClient) RetentionPlan(ctx context.Context, res *churn.Result) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(BuildPrompt(res)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return planFromResponse(resp)
}

// planFromResponse joins the text parts of the first candidate.
func planFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	plan := strings.TrimSpace(b.String())
	if plan == "" {
		return "", fmt.Errorf("no text in generated content")
	}
	return plan, nil
}

// BuildPrompt renders the advisor prompt for res.
func BuildPrompt(res *churn.Result) string {
	a := res.Assessment
	s := res.Signals
	return fmt.Sprintf(`You are a retention strategist for a music streaming service. A churn model assessed one subscriber.

Churn probability: %s
Risk tier: %s (%s)
Low music engagement: %s
Low podcast engagement: %s
Low recommendation satisfaction: %s
No premium interest: %s
Age bucket: %s

Write 3 short bullet points, each one concrete retention action for this subscriber. Use "- " for bullets. No headings, no preamble, no closing remarks.`,
		a.Percent(), a.Tier, a.Rationale,
		yesNo(s.LowMusicEngagement), yesNo(s.LowPodcastEngagement),
		yesNo(s.LowRecommendationRating), yesNo(s.NoPremiumInterest),
		s.AgeBucket)
}

func yesNo(indicator int) string {
	if indicator == 1 {
		return "yes"
	}
	return "no"
}
