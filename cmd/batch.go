package cmd

import (
	"fmt"
	"log/slog"

	"github.com/lehigh-university-libraries/imagegen/internal/batch"
	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/lehigh-university-libraries/imagegen/internal/export"
	"github.com/spf13/cobra"
)

func newBatchCmd() *cobra.Command {
	var (
		defaults   batch.Defaults
		limit      int
		format     string
		outDir     string
		reportsDir string
		toS3       bool
	)

	cmd := &cobra.Command{
		Use:   "batch <dataset>",
		Short: "Generate images for every prompt in a JSONL or Parquet dataset",
		Long: `Reads prompts from a .jsonl, .json or .parquet file and generates images for
each row. Rows may set id, prompt, negative_prompt, count, width, height,
enhance and refine; missing values come from the flags. A YAML report of the
run is written to the reports directory.`,
		Example: `  imagegen batch prompts.jsonl --enhance
  imagegen batch prompts.parquet --limit 10 --s3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if outDir == "" {
				outDir = cfg.OutputDir
			}

			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			records, err := batch.NewLoader(args[0]).Load(limit)
			if err != nil {
				return err
			}
			slog.Info("Loaded prompts", "path", args[0], "records", len(records))

			orchestrator, err := newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			uploader, err := newUploader(cmd.Context(), cfg, outDir, toS3)
			if err != nil {
				return err
			}

			report := &batch.Report{Config: batch.RunConfig{
				Backend:     cfg.Backend,
				Model:       cfg.Model,
				Classifier:  cfg.ClassifierProvider,
				DatasetPath: args[0],
				Format:      string(f),
			}}

			runErr := batch.NewRunner(orchestrator, uploader, f, defaults).Run(cmd.Context(), records, report)

			path, err := batch.SaveToYAML(reportsDir, report)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d prompts succeeded, %d images. Report saved to %s\n",
				report.Summary.Succeeded, report.Summary.Total, report.Summary.Images, path)
			return runErr
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Only process the first N prompts (0 for all)")
	cmd.Flags().IntVarP(&defaults.Count, "count", "n", 1, "Default number of images per prompt")
	cmd.Flags().IntVar(&defaults.Width, "width", 512, "Default image width")
	cmd.Flags().IntVar(&defaults.Height, "height", 512, "Default image height")
	cmd.Flags().BoolVar(&defaults.Enhance, "enhance", false, "Enhance every prompt")
	cmd.Flags().BoolVar(&defaults.Refine, "refine", false, "Refine every batch")
	cmd.Flags().StringVar(&format, "format", "png", "Output format (png or jpeg)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default $OUTPUT_DIR or outputs)")
	cmd.Flags().StringVar(&reportsDir, "reports", "reports", "Directory for the YAML run report")
	cmd.Flags().BoolVar(&toS3, "s3", false, "Upload to S3_BUCKET instead of writing files")

	return cmd
}
