package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/diffusion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	refinerErr error
	refiners   atomic.Int32
}

func (m *stubModel) TextToImage(ctx context.Context, p diffusion.Params) ([]image.Image, error) {
	return nil, nil
}

func (m *stubModel) Refiner(ctx context.Context) (diffusion.ImageToImage, error) {
	m.refiners.Add(1)
	if m.refinerErr != nil {
		return nil, m.refinerErr
	}
	return stubRefiner{}, nil
}

type stubRefiner struct{}

func (stubRefiner) ImageToImage(ctx context.Context, p diffusion.RefineParams) ([]image.Image, error) {
	return p.Images, nil
}

type countingLoader struct {
	loads atomic.Int32
	failN int32
	model *stubModel
	specs []ModelSpec
	mu    sync.Mutex
}

func (l *countingLoader) Load(ctx context.Context, spec ModelSpec) (Model, error) {
	n := l.loads.Add(1)
	l.mu.Lock()
	l.specs = append(l.specs, spec)
	l.mu.Unlock()
	if n <= l.failN {
		return nil, errors.New("weights not found")
	}
	time.Sleep(5 * time.Millisecond)
	return l.model, nil
}

func TestAcquireLoadsOnce(t *testing.T) {
	loader := &countingLoader{model: &stubModel{}}
	h := NewHandle(loader, ModelSpec{ModelID: "sd-1.5", Device: DeviceGPU})
	assert.False(t, h.Loaded())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := h.Acquire(context.Background())
			assert.NoError(t, err)
			assert.Same(t, loader.model, m)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loader.loads.Load())
	assert.True(t, h.Loaded())
	assert.Equal(t, "sd-1.5", loader.specs[0].ModelID)
}

func TestAcquireDoesNotCacheFailure(t *testing.T) {
	loader := &countingLoader{model: &stubModel{}, failN: 1}
	h := NewHandle(loader, ModelSpec{ModelID: "sd-1.5"})

	_, err := h.Acquire(context.Background())
	require.ErrorIs(t, err, apperr.ErrModelUnavailable)
	assert.False(t, h.Loaded())

	m, err := h.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, m)
	assert.Equal(t, int32(2), loader.loads.Load())
}

func TestAcquireKeepsTaxonomyErrors(t *testing.T) {
	h := NewHandle(loaderFunc(func(ctx context.Context, spec ModelSpec) (Model, error) {
		return nil, apperr.ErrResourceExhausted
	}), ModelSpec{})

	_, err := h.Acquire(context.Background())
	assert.ErrorIs(t, err, apperr.ErrResourceExhausted)
	assert.NotErrorIs(t, err, apperr.ErrModelUnavailable)
}

func TestAcquireWithoutLoader(t *testing.T) {
	_, err := NewHandle(nil, ModelSpec{}).Acquire(context.Background())
	assert.ErrorIs(t, err, apperr.ErrModelUnavailable)
}

type loaderFunc func(ctx context.Context, spec ModelSpec) (Model, error)

func (f loaderFunc) Load(ctx context.Context, spec ModelSpec) (Model, error) {
	return f(ctx, spec)
}

func TestRefiner(t *testing.T) {
	t.Run("memoized", func(t *testing.T) {
		model := &stubModel{}
		h := NewHandle(&countingLoader{model: model}, ModelSpec{})
		for i := 0; i < 3; i++ {
			r, err := h.Refiner(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, r)
		}
		assert.Equal(t, int32(1), model.refiners.Load())
	})

	t.Run("derivation failure is a stage failure", func(t *testing.T) {
		h := NewHandle(&countingLoader{model: &stubModel{refinerErr: errors.New("no img2img")}}, ModelSpec{})
		_, err := h.Refiner(context.Background())
		assert.ErrorIs(t, err, apperr.ErrStageUnavailable)
	})

	t.Run("base load failure is a stage failure", func(t *testing.T) {
		h := NewHandle(&countingLoader{failN: 10}, ModelSpec{})
		_, err := h.Refiner(context.Background())
		assert.ErrorIs(t, err, apperr.ErrStageUnavailable)
	})
}

func TestDoSerializes(t *testing.T) {
	h := NewHandle(&countingLoader{model: &stubModel{}}, ModelSpec{})

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.Do(context.Background(), func(ctx context.Context) error {
				n := active.Add(1)
				for {
					m := maxActive.Load()
					if n <= m || maxActive.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestDoCanceled(t *testing.T) {
	h := NewHandle(nil, ModelSpec{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := h.Do(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
