package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
)

const (
	BackendSDAPI   = "sdapi"
	BackendBedrock = "bedrock"
)

// Config is read from the environment, after .env has been loaded
type Config struct {
	Backend            string
	Model              string
	Device             pipeline.Device
	SDAPIURL           string
	AWSRegion          string
	ClassifierProvider string
	ClassifierModel    string
	OutputDir          string
	S3Bucket           string
	LogLevel           string
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Backend:            strings.ToLower(getenv("IMAGEGEN_BACKEND", BackendSDAPI)),
		Model:              os.Getenv("IMAGEGEN_MODEL"),
		SDAPIURL:           strings.TrimRight(getenv("SDAPI_URL", "http://127.0.0.1:7860"), "/"),
		AWSRegion:          getenv("AWS_REGION", "ap-south-1"),
		ClassifierProvider: strings.ToLower(getenv("CLASSIFIER_PROVIDER", "ollama")),
		ClassifierModel:    os.Getenv("CLASSIFIER_MODEL"),
		OutputDir:          getenv("OUTPUT_DIR", "outputs"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
	}

	device, err := pipeline.ParseDevice(os.Getenv("IMAGEGEN_DEVICE"))
	if err != nil {
		return nil, err
	}
	cfg.Device = device

	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Backend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that have a closed set of options
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSDAPI, BackendBedrock:
	default:
		return fmt.Errorf("unknown IMAGEGEN_BACKEND %q (want %s or %s)", c.Backend, BackendSDAPI, BackendBedrock)
	}
	switch c.ClassifierProvider {
	case "ollama", "openai", "gemini", "none":
	default:
		return fmt.Errorf("unknown CLASSIFIER_PROVIDER %q", c.ClassifierProvider)
	}
	return nil
}

// DefaultModel returns the model a backend uses when IMAGEGEN_MODEL is unset
func DefaultModel(backend string) string {
	if backend == BackendBedrock {
		return "amazon.titan-image-generator-v1"
	}
	return "runwayml/stable-diffusion-v1-5"
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
