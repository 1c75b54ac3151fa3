package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/BerylCAtieno/churn-risk-agent/internal/churn"
	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
	"github.com/BerylCAtieno/churn-risk-agent/internal/risk"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Assess churn risk for one subscriber",
		Example: `  churnctl analyze --age 45 --listening Rarely --podcast Never --rating 1 --premium No
  churnctl analyze --age 25 --listening Daily --active-podcast --rating 4 --premium Yes --json`,
		RunE: runAnalyze,
	}

	f := analyzeCmd.Flags()
	f.Int("age", 0, "Subscriber age (10-80)")
	f.String("listening", "", "Music listening frequency: Rarely, Occasionally, Frequently, Daily")
	f.String("podcast", "", "Podcast listening frequency: Never, Rarely, Occasionally, Frequently")
	f.Bool("active-podcast", false, "Subscriber is an active podcast listener (used when --podcast is not set)")
	f.Int("rating", 0, "Recommendation rating (1-5)")
	f.String("premium", "", "Interested in premium: Yes or No")
	f.String("thresholds", "", "Threshold preset: default or dashboard (overrides CHURN_THRESHOLD_PRESET)")
	f.Bool("json", false, "Print the full result as JSON")

	for _, name := range []string{"age", "listening", "rating", "premium"} {
		_ = analyzeCmd.MarkFlagRequired(name)
	}
	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if preset, _ := cmd.Flags().GetString("thresholds"); preset != "" {
		t, err := risk.ThresholdPreset(preset)
		if err != nil {
			return err
		}
		cfg.Thresholds = t
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	profile, err := profileFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := models.ValidateProfile(profile); err != nil {
		for _, fe := range models.DescribeValidation(err) {
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", fe.Error())
		}
		return fmt.Errorf("invalid profile")
	}

	analyzer, err := churn.Open(cfg, nil, logger)
	if err != nil {
		return err
	}
	res, err := analyzer.Analyze(cmd.Context(), profile)
	if err != nil {
		return err
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(cmd.OutOrStdout(), res)
	return nil
}

func profileFromFlags(cmd *cobra.Command) (models.RawProfile, error) {
	f := cmd.Flags()
	var p models.RawProfile
	var err error
	if p.Age, err = f.GetInt("age"); err != nil {
		return p, err
	}
	if p.ListeningFrequency, err = f.GetString("listening"); err != nil {
		return p, err
	}
	if p.PodcastFrequency, err = f.GetString("podcast"); err != nil {
		return p, err
	}
	if f.Changed("active-podcast") {
		active, err := f.GetBool("active-podcast")
		if err != nil {
			return p, err
		}
		p.ActivePodcastListener = &active
	}
	if p.RecommendationRating, err = f.GetInt("rating"); err != nil {
		return p, err
	}
	if p.PremiumInterest, err = f.GetString("premium"); err != nil {
		return p, err
	}
	return p, nil
}

func printResult(w io.Writer, res *churn.Result) {
	a := res.Assessment
	fmt.Fprintf(w, "%s\n\n", a.Headline)
	fmt.Fprintf(w, "Churn probability:  %s\n", a.Percent())
	fmt.Fprintf(w, "Risk tier:          %s\n", a.Tier)
	fmt.Fprintf(w, "Rationale:          %s\n", a.Rationale)
	fmt.Fprintf(w, "Engagement risk:    %g\n", res.Composites.EngagementScore)
	fmt.Fprintf(w, "Monetization risk:  %g\n", res.Composites.MonetizationScore)
	fmt.Fprintf(w, "Churn pressure:     %g\n", res.Composites.ChurnPressure)
}
