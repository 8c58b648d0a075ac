// Package pipeline owns the lifecycle of the generative model: it loads the
// model once on first use and serializes every generation call against it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/diffusion"
	"github.com/lehigh-university-libraries/imagegen/internal/metrics"
)

// ModelSpec identifies what to load and where
type ModelSpec struct {
	ModelID string
	Device  Device
}

// Model is a loaded base model that can derive a refinement model from itself
type Model interface {
	diffusion.TextToImage
	Refiner(ctx context.Context) (diffusion.ImageToImage, error)
}

// Loader materializes a Model for a ModelSpec
type Loader interface {
	Load(ctx context.Context, spec ModelSpec) (Model, error)
}

// Handle is the single shared model of a process. Create one with NewHandle
// and pass it to whatever needs the model.
type Handle struct {
	loader Loader
	spec   ModelSpec

	loadMu  sync.Mutex
	model   Model
	refiner diffusion.ImageToImage

	genMu sync.Mutex
}

func NewHandle(loader Loader, spec ModelSpec) *Handle {
	return &Handle{loader: loader, spec: spec}
}

// Spec returns what this handle loads
func (h *Handle) Spec() ModelSpec {
	return h.spec
}

// Loaded reports whether the model has been loaded
func (h *Handle) Loaded() bool {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()
	return h.model != nil
}

// Acquire returns the model, loading it on the first call. A failed load is
// not remembered, so the next caller tries again.
func (h *Handle) Acquire(ctx context.Context) (Model, error) {
	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	if h.model != nil {
		return h.model, nil
	}
	if h.loader == nil {
		return nil, fmt.Errorf("%w: no model loader configured", apperr.ErrModelUnavailable)
	}

	start := time.Now()
	slog.Info("Loading model", "model", h.spec.ModelID, "device", h.spec.Device)

	model, err := h.loader.Load(ctx, h.spec)
	metrics.ModelLoadsTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		slog.Error("Model load failed", "model", h.spec.ModelID, "err", err)
		if isTaxonomy(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, err)
	}

	slog.Info("Model loaded", "model", h.spec.ModelID, "duration_ms", time.Since(start).Milliseconds())
	h.model = model
	return model, nil
}

// Refiner derives the refinement model from the loaded base model. Any
// failure is reported as a stage failure.
func (h *Handle) Refiner(ctx context.Context) (diffusion.ImageToImage, error) {
	model, err := h.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStageUnavailable, err)
	}

	h.loadMu.Lock()
	defer h.loadMu.Unlock()

	if h.refiner != nil {
		return h.refiner, nil
	}

	refiner, err := model.Refiner(ctx)
	if err != nil {
		if errors.Is(err, apperr.ErrStageUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrStageUnavailable, err)
	}
	if refiner == nil {
		return nil, fmt.Errorf("%w: model has no refiner", apperr.ErrStageUnavailable)
	}

	h.refiner = refiner
	return refiner, nil
}

// Do runs fn while holding the generation lock. Calls from concurrent
// requests queue up and run one at a time.
func (h *Handle) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	h.genMu.Lock()
	defer h.genMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

func isTaxonomy(err error) bool {
	return errors.Is(err, apperr.ErrModelUnavailable) ||
		errors.Is(err, apperr.ErrResourceExhausted) ||
		errors.Is(err, apperr.ErrInvalidParameters)
}
