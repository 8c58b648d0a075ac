package bedrock

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/diffusion"
	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	requests []titanRequest
	modelIDs []string
	err      error
}

func (f *fakeRuntime) InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	var req titanRequest
	if err := json.Unmarshal(in.Body, &req); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	f.modelIDs = append(f.modelIDs, aws.ToString(in.ModelId))

	cfg := req.ImageGenerationConfig
	images := make([]string, cfg.NumberOfImages)
	for i := range images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))); err != nil {
			return nil, err
		}
		images[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	body, _ := json.Marshal(titanResponse{Images: images})
	return &bedrockruntime.InvokeModelOutput{Body: body}, nil
}

func TestTextToImage(t *testing.T) {
	runtime := &fakeRuntime{}
	model, err := (&Loader{Client: runtime}).Load(context.Background(), pipeline.ModelSpec{ModelID: "amazon.titan-image-generator-v1"})
	require.NoError(t, err)

	images, err := model.TextToImage(context.Background(), diffusion.Params{
		Prompts:         []string{"a couple on a park bench", "a couple on a park bench"},
		NegativePrompts: []string{"rain", "rain"},
		Width:           512,
		Height:          512,
		GuidanceScale:   diffusion.GuidanceScale,
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, 512, images[1].Bounds().Dx())

	require.Len(t, runtime.requests, 1)
	req := runtime.requests[0]
	assert.Equal(t, "TEXT_IMAGE", req.TaskType)
	assert.Equal(t, "a couple on a park bench", req.TextToImageParams.Text)
	assert.Equal(t, "rain", req.TextToImageParams.NegativeText)
	assert.Equal(t, 2, req.ImageGenerationConfig.NumberOfImages)
	assert.Equal(t, 7.5, req.ImageGenerationConfig.CfgScale)
	assert.Equal(t, "amazon.titan-image-generator-v1", runtime.modelIDs[0])
}

func TestImageVariation(t *testing.T) {
	runtime := &fakeRuntime{}
	m := &Model{client: runtime, modelID: "amazon.titan-image-generator-v1"}
	r, err := m.Refiner(context.Background())
	require.NoError(t, err)

	out, err := r.ImageToImage(context.Background(), diffusion.RefineParams{
		Prompts:  []string{"p", "p", "p"},
		Images:   []image.Image{image.NewRGBA(image.Rect(0, 0, 768, 768)), image.NewRGBA(image.Rect(0, 0, 768, 768)), image.NewRGBA(image.Rect(0, 0, 768, 768))},
		Strength: diffusion.RefinerStrength,
	})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	require.Len(t, runtime.requests, 3)
	assert.Equal(t, "IMAGE_VARIATION", runtime.requests[0].TaskType)
	assert.InDelta(t, 0.7, runtime.requests[0].ImageVariationParams.SimilarityStrength, 1e-9)
	assert.Len(t, runtime.requests[0].ImageVariationParams.Images, 1)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"throttled", &types.ThrottlingException{Message: aws.String("slow down")}, apperr.ErrResourceExhausted},
		{"quota", &types.ServiceQuotaExceededException{Message: aws.String("quota")}, apperr.ErrResourceExhausted},
		{"validation", &types.ValidationException{Message: aws.String("bad size")}, apperr.ErrInvalidParameters},
		{"other", errors.New("no credentials"), apperr.ErrModelUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Model{client: &fakeRuntime{err: tt.err}, modelID: "x"}
			_, err := m.TextToImage(context.Background(), diffusion.Params{Prompts: []string{"p"}, Width: 512, Height: 512})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadRequiresModel(t *testing.T) {
	_, err := (&Loader{Client: &fakeRuntime{}}).Load(context.Background(), pipeline.ModelSpec{})
	assert.ErrorIs(t, err, apperr.ErrModelUnavailable)
}
