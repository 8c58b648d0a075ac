// Package batch generates images for every prompt of a dataset file and
// records the outcome of each row in a YAML report.
package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/export"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"github.com/lehigh-university-libraries/imagegen/internal/storage"
	"github.com/samber/lo"
)

// Generator runs one generation request
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// Defaults fill in fields a dataset row leaves empty
type Defaults struct {
	Count   int
	Width   int
	Height  int
	Enhance bool
	Refine  bool
}

type Runner struct {
	generator Generator
	uploader  storage.Uploader
	format    export.Format
	defaults  Defaults
}

func NewRunner(generator Generator, uploader storage.Uploader, format export.Format, defaults Defaults) *Runner {
	return &Runner{generator: generator, uploader: uploader, format: format, defaults: defaults}
}

// Run processes records in order. A failed row is recorded and the run continues.
func (r *Runner) Run(ctx context.Context, records []PromptRecord, report *Report) error {
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		slog.Info("Generating batch row", "row", i+1, "of", len(records), "id", record.ID)
		report.Add(r.runOne(ctx, record))
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, record PromptRecord) RunResult {
	start := time.Now()
	out := RunResult{ID: record.ID, Prompt: record.Prompt}

	result, err := r.generator.Generate(ctx, r.request(record))
	if err == nil {
		out.Images, err = storage.SaveBatch(ctx, r.uploader, record.ID, result, r.format)
	}
	out.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		slog.Error("Batch row failed", "id", record.ID, "err", err)
		out.Error = err.Error()
		out.Code = apperr.Code(err)
		return out
	}

	out.UsedPrompt = result.UsedPrompt
	out.Style = result.Style
	out.Enhanced = result.Enhanced
	out.Refined = result.Refined
	return out
}

func (r *Runner) request(record PromptRecord) models.GenerationRequest {
	return models.GenerationRequest{
		RawPrompt:       record.Prompt,
		NegativePrompt:  record.NegativePrompt,
		ImageCount:      lo.Ternary(record.Count > 0, record.Count, r.defaults.Count),
		Width:           lo.Ternary(record.Width > 0, record.Width, r.defaults.Width),
		Height:          lo.Ternary(record.Height > 0, record.Height, r.defaults.Height),
		EnhancePrompt:   record.Enhance || r.defaults.Enhance,
		ApplyRefinement: record.Refine || r.defaults.Refine,
	}
}
