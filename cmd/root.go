package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "imagegen",
		Short: "Text-to-image generation with prompt enhancement and refinement",
		Long: `Imagegen turns text prompts into images using pretrained diffusion models.

Prompts can be enhanced with a style modifier picked by a zero-shot classifier,
and the generated batch can be polished by a low-strength image-to-image pass.
Images are served through a web interface, written to disk or uploaded to S3.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if logLevel == "" {
				logLevel = os.Getenv("LOG_LEVEL")
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.ParseLevel(logLevel)})
			slog.SetDefault(slog.New(handler))
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newBatchCmd())

	return cmd
}
