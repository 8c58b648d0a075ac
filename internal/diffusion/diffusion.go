// Package diffusion holds the two generation stages: text-to-image for the
// base batch and a low-strength image-to-image pass that polishes it.
package diffusion

import (
	"context"
	"fmt"
	"image"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/samber/lo"
)

const (
	// Steps is the number of denoising steps of the base pass
	Steps = 25
	// GuidanceScale controls how closely the base pass follows the prompt
	GuidanceScale = 7.5
	// RefinerStrength is the fraction of each base image the refiner may alter
	RefinerStrength = 0.3
	// MaxImages is the largest batch a single request may ask for
	MaxImages = 4
)

// SupportedSizes are the accepted values for both width and height
var SupportedSizes = []int{512, 768, 1024}

// Params is one batched text-to-image call. Prompts and NegativePrompts are
// parallel, one entry per requested image.
type Params struct {
	Prompts         []string
	NegativePrompts []string
	Width           int
	Height          int
	Steps           int
	GuidanceScale   float64
}

// RefineParams is one image-to-image call, index-aligned with Images
type RefineParams struct {
	Prompts         []string
	NegativePrompts []string
	Images          []image.Image
	Strength        float64
}

// TextToImage is a loaded base model
type TextToImage interface {
	TextToImage(ctx context.Context, params Params) ([]image.Image, error)
}

// ImageToImage is a loaded refinement model
type ImageToImage interface {
	ImageToImage(ctx context.Context, params RefineParams) ([]image.Image, error)
}

// Validate checks count and resolution against the supported bounds
func Validate(count, width, height int) error {
	if count < 1 || count > MaxImages {
		return fmt.Errorf("%w: image count %d outside [1,%d]", apperr.ErrInvalidParameters, count, MaxImages)
	}
	if !lo.Contains(SupportedSizes, width) {
		return fmt.Errorf("%w: width %d not in %v", apperr.ErrInvalidParameters, width, SupportedSizes)
	}
	if !lo.Contains(SupportedSizes, height) {
		return fmt.Errorf("%w: height %d not in %v", apperr.ErrInvalidParameters, height, SupportedSizes)
	}
	return nil
}

func replicate(s string, n int) []string {
	return lo.Times(n, func(int) string { return s })
}
