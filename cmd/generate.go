package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/lehigh-university-libraries/imagegen/internal/export"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"github.com/lehigh-university-libraries/imagegen/internal/storage"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	var (
		req    models.GenerationRequest
		format string
		outDir string
		toS3   bool
	)

	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate images for a single prompt",
		Example: `  # Two 768x768 images
  imagegen generate "a dragon flying over snowy mountains" -n 2 --width 768 --height 768

  # Enhance the prompt, refine the result and upload to S3_BUCKET
  imagegen generate "a fantasy castle in the clouds" --enhance --refine --s3`,
		Args: cobra.MinimumNArgs(1),
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

			orchestrator, err := newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			uploader, err := newUploader(cmd.Context(), cfg, outDir, toS3)
			if err != nil {
				return err
			}

			req.RawPrompt = strings.Join(args, " ")
			result, err := orchestrator.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}

			prefix := time.Now().Format("20060102-150405")
			locations, err := storage.SaveBatch(cmd.Context(), uploader, prefix, result, f)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Prompt: %s\n", result.UsedPrompt)
			if result.Enhanced {
				fmt.Fprintf(cmd.OutOrStdout(), "Style: %s\n", result.Style)
			}
			for _, loc := range locations {
				fmt.Fprintln(cmd.OutOrStdout(), loc)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.NegativePrompt, "negative", "", "Negative prompt")
	cmd.Flags().IntVarP(&req.ImageCount, "count", "n", 1, "Number of images (1-4)")
	cmd.Flags().IntVar(&req.Width, "width", 512, "Image width (512, 768 or 1024)")
	cmd.Flags().IntVar(&req.Height, "height", 512, "Image height (512, 768 or 1024)")
	cmd.Flags().BoolVar(&req.EnhancePrompt, "enhance", false, "Append a style modifier picked by the classifier")
	cmd.Flags().BoolVar(&req.ApplyRefinement, "refine", false, "Polish the images with an image-to-image pass")
	cmd.Flags().StringVar(&format, "format", "png", "Output format (png or jpeg)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default $OUTPUT_DIR or outputs)")
	cmd.Flags().BoolVar(&toS3, "s3", false, "Upload to S3_BUCKET instead of writing files")

	return cmd
}
