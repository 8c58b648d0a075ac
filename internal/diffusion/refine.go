package diffusion

import (
	"context"
	"fmt"
	"image"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"github.com/samber/lo"
)

// Refiner runs the second-stage image-to-image pass
type Refiner struct {
	pipe ImageToImage
}

func NewRefiner(pipe ImageToImage) *Refiner {
	return &Refiner{pipe: pipe}
}

// Refine polishes every image of base. Output i is derived from base[i].
func (r *Refiner) Refine(ctx context.Context, prompt, negativePrompt string, base models.ImageBatch) (models.ImageBatch, error) {
	if r.pipe == nil {
		return nil, fmt.Errorf("%w: no refinement model", apperr.ErrStageUnavailable)
	}
	if len(base) == 0 {
		return models.ImageBatch{}, nil
	}

	inputs := lo.Map(base, func(img models.Image, _ int) image.Image { return img.Pixels })
	if lo.ContainsBy(inputs, func(img image.Image) bool { return img == nil }) {
		return nil, fmt.Errorf("%w: base batch has an image without pixels", apperr.ErrInvalidParameters)
	}

	images, err := r.pipe.ImageToImage(ctx, RefineParams{
		Prompts:         replicate(prompt, len(base)),
		NegativePrompts: replicate(negativePrompt, len(base)),
		Images:          inputs,
		Strength:        RefinerStrength,
	})
	if err != nil {
		return nil, err
	}
	if len(images) != len(base) {
		return nil, fmt.Errorf("%w: refiner returned %d images for %d inputs", apperr.ErrStageUnavailable, len(images), len(base))
	}

	refined := make(models.ImageBatch, len(base))
	for i, img := range images {
		refined[i] = models.Image{Index: i, SourceIndex: base[i].Index, Pixels: img}
	}

	return refined, nil
}
