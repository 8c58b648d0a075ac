package cmd

import (
	"context"
	"fmt"

	"github.com/lehigh-university-libraries/imagegen/internal/bedrock"
	"github.com/lehigh-university-libraries/imagegen/internal/classifier"
	"github.com/lehigh-university-libraries/imagegen/internal/config"
	"github.com/lehigh-university-libraries/imagegen/internal/enhance"
	"github.com/lehigh-university-libraries/imagegen/internal/generation"
	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
	"github.com/lehigh-university-libraries/imagegen/internal/sdapi"
	"github.com/lehigh-university-libraries/imagegen/internal/storage"
)

func newEnhancer(cfg *config.Config) (generation.Enhancer, error) {
	if cfg.ClassifierProvider == "none" {
		return nil, nil
	}
	c, err := classifier.NewFromName(cfg.ClassifierProvider, cfg.ClassifierModel)
	if err != nil {
		return nil, err
	}
	return enhance.New(c, enhance.NewStyleTable()), nil
}

func newLoader(ctx context.Context, cfg *config.Config) (pipeline.Loader, error) {
	switch cfg.Backend {
	case config.BackendBedrock:
		return bedrock.NewLoader(ctx, cfg.AWSRegion)
	case config.BackendSDAPI:
		return sdapi.New(cfg.SDAPIURL), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// newOrchestrator wires the enhancer and a lazily loaded model handle
func newOrchestrator(ctx context.Context, cfg *config.Config) (*generation.Orchestrator, error) {
	enhancer, err := newEnhancer(cfg)
	if err != nil {
		return nil, err
	}

	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	handle := pipeline.NewHandle(loader, pipeline.ModelSpec{ModelID: cfg.Model, Device: cfg.Device})
	return generation.New(enhancer, handle), nil
}

func newUploader(ctx context.Context, cfg *config.Config, outDir string, toS3 bool) (storage.Uploader, error) {
	if !toS3 {
		return &storage.FileUploader{Dir: outDir}, nil
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET environment variable not set")
	}
	return storage.NewS3Uploader(ctx, cfg.AWSRegion, cfg.S3Bucket)
}
