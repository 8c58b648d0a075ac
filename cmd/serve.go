package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/lehigh-university-libraries/imagegen/internal/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web server for the image generator interface",
		Long: `Starts the Imagegen web interface on the specified port.

The web interface takes a prompt, a negative prompt, an image count and a
resolution, generates the images and offers each one for download as PNG
or JPEG. The model is loaded on the first generation request.`,
		Example: `  # Start server on default port 8888
  imagegen serve

  # Start server on custom port against a remote WebUI
  SDAPI_URL=http://gpu-box:7860 imagegen serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			orchestrator, err := newOrchestrator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			handler := handlers.New(orchestrator)

			// Set up routes
			mux := http.NewServeMux()
			mux.HandleFunc("/api/generate", handlers.Instrument("/api/generate", handler.HandleGenerate))
			mux.HandleFunc("/api/sessions", handlers.Instrument("/api/sessions", handler.HandleSessions))
			mux.HandleFunc("/api/sessions/", handlers.Instrument("/api/sessions/{id}", handler.HandleSessionDetail))
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/", handler.HandleStatic)
			mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
				if _, err := w.Write([]byte("OK")); err != nil {
					slog.Error("Unable to write healthcheck", "err", err)
				}
			})

			addr := ":" + port
			server := &http.Server{
				Addr:    addr,
				Handler: mux,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Imagegen interface available", "addr", addr, "url", "http://localhost"+addr, "backend", cfg.Backend, "model", cfg.Model)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8888", "Port to listen on")

	return cmd
}
