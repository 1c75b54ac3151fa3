package main

import (
	"fmt"

	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the feature schema the model was trained on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			schema, err := features.NewRegistry(cfg.FeatureNamesPath()).Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d features)\n", cfg.FeatureNamesPath(), schema.Len())
			for i, name := range schema.Names() {
				fmt.Fprintf(out, "%3d  %s\n", i, name)
			}
			return nil
		},
	}
}
