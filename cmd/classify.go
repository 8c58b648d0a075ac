package cmd

import (
	"fmt"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <prompt>",
		Short: "Show the style ranking and enhanced prompt for a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.ClassifierProvider == "none" {
				return fmt.Errorf("CLASSIFIER_PROVIDER is none")
			}

			enhancer, err := newEnhancer(cfg)
			if err != nil {
				return err
			}

			enhanced, err := enhancer.ClassifyAndEnhance(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range enhanced.Classification.Scores {
				fmt.Fprintf(out, "%-12s %.3f\n", s.Label, s.Score)
			}
			fmt.Fprintf(out, "\n%s\n", enhanced.Prompt)
			return nil
		},
	}
}
