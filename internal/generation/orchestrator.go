// Package generation runs one request through prompt enhancement, base
// generation and optional refinement.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/diffusion"
	"github.com/lehigh-university-libraries/imagegen/internal/enhance"
	"github.com/lehigh-university-libraries/imagegen/internal/metrics"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
)

// Enhancer rewrites a raw prompt with a style modifier
type Enhancer interface {
	ClassifyAndEnhance(ctx context.Context, rawPrompt string) (*enhance.Enhancement, error)
}

// Orchestrator is safe for concurrent use. Generation calls against the
// shared model are serialized by the handle.
type Orchestrator struct {
	enhancer Enhancer
	handle   *pipeline.Handle
}

// New wires an orchestrator. enhancer may be nil, in which case every
// enhancement request falls back to the raw prompt.
func New(enhancer Enhancer, handle *pipeline.Handle) *Orchestrator {
	return &Orchestrator{enhancer: enhancer, handle: handle}
}

// Generate turns req into a batch of images.
//
// Classification and refinement failures degrade the result instead of
// failing it: the raw prompt is used, or the unrefined batch is returned.
// Every other failure aborts the request with no partial result.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	start := time.Now()

	result, err := o.generate(ctx, req)
	code := apperr.Code(err)
	if err == nil {
		code = "ok"
	}
	metrics.GenerationsTotal.WithLabelValues(code).Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Error("Generation failed", "code", code, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	result.Duration = time.Since(start)
	metrics.ImagesGenerated.Add(float64(len(result.Images)))
	slog.Info("Generation complete",
		"images", len(result.Images),
		"width", req.Width,
		"height", req.Height,
		"enhanced", result.Enhanced,
		"refined", result.Refined,
		"style", result.Style,
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

func (o *Orchestrator) generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error) {
	if strings.TrimSpace(req.RawPrompt) == "" {
		return nil, apperr.ErrEmptyPrompt
	}
	if err := diffusion.Validate(req.ImageCount, req.Width, req.Height); err != nil {
		return nil, err
	}
	if o.handle == nil {
		return nil, fmt.Errorf("%w: no model handle", apperr.ErrModelUnavailable)
	}

	result := &models.GenerationResult{UsedPrompt: req.RawPrompt}

	if req.EnhancePrompt {
		if err := o.enhance(ctx, req.RawPrompt, result); err != nil {
			return nil, err
		}
	}

	err := o.handle.Do(ctx, func(ctx context.Context) error {
		model, err := o.handle.Acquire(ctx)
		if err != nil {
			return err
		}

		stageStart := time.Now()
		base, err := diffusion.NewBaseGenerator(model).GenerateBase(ctx, result.UsedPrompt, req.NegativePrompt, req.ImageCount, req.Width, req.Height)
		metrics.StageDuration.WithLabelValues("base").Observe(time.Since(stageStart).Seconds())
		if err != nil {
			return fmt.Errorf("base generation: %w", err)
		}
		result.Images = base

		if req.ApplyRefinement {
			return o.refine(ctx, req, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (o *Orchestrator) enhance(ctx context.Context, rawPrompt string, result *models.GenerationResult) error {
	if o.enhancer == nil {
		slog.Warn("Prompt enhancement requested but no classifier is configured, using raw prompt")
		metrics.FallbacksTotal.WithLabelValues("enhance").Inc()
		return nil
	}

	stageStart := time.Now()
	enhanced, err := o.enhancer.ClassifyAndEnhance(ctx, rawPrompt)
	metrics.StageDuration.WithLabelValues("enhance").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		if errors.Is(err, apperr.ErrClassificationUnavailable) {
			slog.Warn("Classifier unavailable, using raw prompt", "err", err)
			metrics.FallbacksTotal.WithLabelValues("enhance").Inc()
			return nil
		}
		return fmt.Errorf("prompt enhancement: %w", err)
	}

	result.UsedPrompt = enhanced.Prompt
	result.Enhanced = true
	result.Style = enhanced.Classification.TopLabel
	return nil
}

func (o *Orchestrator) refine(ctx context.Context, req models.GenerationRequest, result *models.GenerationResult) error {
	stageStart := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("refine").Observe(time.Since(stageStart).Seconds())
	}()

	refiner, err := o.handle.Refiner(ctx)
	if err == nil {
		var refined models.ImageBatch
		refined, err = diffusion.NewRefiner(refiner).Refine(ctx, result.UsedPrompt, req.NegativePrompt, result.Images)
		if err == nil {
			result.Images = refined
			result.Refined = true
			return nil
		}
	}

	if errors.Is(err, apperr.ErrStageUnavailable) {
		slog.Warn("Refinement stage unavailable, returning base images", "err", err)
		metrics.FallbacksTotal.WithLabelValues("refine").Inc()
		return nil
	}
	return fmt.Errorf("refinement: %w", err)
}
