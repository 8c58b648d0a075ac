package diffusion

import (
	"context"
	"fmt"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
)

// BaseGenerator produces the first-stage batch
type BaseGenerator struct {
	pipe TextToImage
}

func NewBaseGenerator(pipe TextToImage) *BaseGenerator {
	return &BaseGenerator{pipe: pipe}
}

// GenerateBase returns exactly count images of width x height or an error.
// No partial batch is ever returned.
func (g *BaseGenerator) GenerateBase(ctx context.Context, prompt, negativePrompt string, count, width, height int) (models.ImageBatch, error) {
	if err := Validate(count, width, height); err != nil {
		return nil, err
	}
	if g.pipe == nil {
		return nil, fmt.Errorf("%w: no base model loaded", apperr.ErrModelUnavailable)
	}

	images, err := g.pipe.TextToImage(ctx, Params{
		Prompts:         replicate(prompt, count),
		NegativePrompts: replicate(negativePrompt, count),
		Width:           width,
		Height:          height,
		Steps:           Steps,
		GuidanceScale:   GuidanceScale,
	})
	if err != nil {
		return nil, err
	}

	if len(images) != count {
		return nil, fmt.Errorf("%w: backend returned %d images, want %d", apperr.ErrModelUnavailable, len(images), count)
	}

	batch := make(models.ImageBatch, count)
	for i, img := range images {
		if img == nil {
			return nil, fmt.Errorf("%w: backend returned no pixels for image %d", apperr.ErrModelUnavailable, i)
		}
		b := img.Bounds()
		if b.Dx() != width || b.Dy() != height {
			return nil, fmt.Errorf("%w: image %d is %dx%d, want %dx%d", apperr.ErrModelUnavailable, i, b.Dx(), b.Dy(), width, height)
		}
		batch[i] = models.Image{Index: i, SourceIndex: i, Pixels: img}
	}

	return batch, nil
}
