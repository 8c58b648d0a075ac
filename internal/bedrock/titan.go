// Package bedrock generates images with Amazon Titan Image Generator on
// AWS Bedrock.
package bedrock

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/diffusion"
	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
)

const (
	taskTextImage      = "TEXT_IMAGE"
	taskImageVariation = "IMAGE_VARIATION"
)

// InvokeAPI is the part of the Bedrock runtime client this package uses
type InvokeAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type titanRequest struct {
	TaskType              string                `json:"taskType"`
	TextToImageParams     *textToImageParams    `json:"textToImageParams,omitempty"`
	ImageVariationParams  *imageVariationParams `json:"imageVariationParams,omitempty"`
	ImageGenerationConfig generationConfig      `json:"imageGenerationConfig"`
}

type textToImageParams struct {
	Text         string `json:"text"`
	NegativeText string `json:"negativeText,omitempty"`
}

type imageVariationParams struct {
	Text               string   `json:"text,omitempty"`
	NegativeText       string   `json:"negativeText,omitempty"`
	Images             []string `json:"images"`
	SimilarityStrength float64  `json:"similarityStrength"`
}

type generationConfig struct {
	NumberOfImages int     `json:"numberOfImages"`
	Height         int     `json:"height"`
	Width          int     `json:"width"`
	CfgScale       float64 `json:"cfgScale"`
	Seed           int     `json:"seed"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

// Loader hands out Titan models. Nothing is downloaded; Load only checks the model ID.
type Loader struct {
	Client InvokeAPI
}

// NewLoader builds a Bedrock runtime client from the default AWS config chain
func NewLoader(ctx context.Context, region string) (*Loader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &Loader{Client: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (l *Loader) Load(ctx context.Context, spec pipeline.ModelSpec) (pipeline.Model, error) {
	if spec.ModelID == "" {
		return nil, fmt.Errorf("%w: no Bedrock model id", apperr.ErrModelUnavailable)
	}
	if l.Client == nil {
		return nil, fmt.Errorf("%w: no Bedrock client", apperr.ErrModelUnavailable)
	}
	slog.Info("Using Bedrock model", "model", spec.ModelID)
	return &Model{client: l.Client, modelID: spec.ModelID}, nil
}

// Model is one Titan image model
type Model struct {
	client  InvokeAPI
	modelID string
}

// TextToImage asks Titan for all replicas in a single call
func (m *Model) TextToImage(ctx context.Context, params diffusion.Params) ([]image.Image, error) {
	if len(params.Prompts) == 0 {
		return nil, nil
	}

	negative := ""
	if len(params.NegativePrompts) > 0 {
		negative = params.NegativePrompts[0]
	}

	return m.invoke(ctx, titanRequest{
		TaskType: taskTextImage,
		TextToImageParams: &textToImageParams{
			Text:         params.Prompts[0],
			NegativeText: negative,
		},
		ImageGenerationConfig: generationConfig{
			NumberOfImages: len(params.Prompts),
			Height:         params.Height,
			Width:          params.Width,
			CfgScale:       params.GuidanceScale,
		},
	})
}

// Refiner uses Titan image variation on the same model
func (m *Model) Refiner(ctx context.Context) (diffusion.ImageToImage, error) {
	return &variation{model: m}, nil
}

type variation struct {
	model *Model
}

// ImageToImage runs one variation per image. Titan's similarity is the
// inverse of refinement strength.
func (v *variation) ImageToImage(ctx context.Context, params diffusion.RefineParams) ([]image.Image, error) {
	out := make([]image.Image, 0, len(params.Images))
	for i, src := range params.Images {
		var buf bytes.Buffer
		if err := png.Encode(&buf, src); err != nil {
			return nil, fmt.Errorf("%w: failed to encode image %d: %v", apperr.ErrInvalidParameters, i, err)
		}

		req := titanRequest{
			TaskType: taskImageVariation,
			ImageVariationParams: &imageVariationParams{
				Images:             []string{base64.StdEncoding.EncodeToString(buf.Bytes())},
				SimilarityStrength: 1 - params.Strength,
			},
			ImageGenerationConfig: generationConfig{
				NumberOfImages: 1,
				Height:         src.Bounds().Dy(),
				Width:          src.Bounds().Dx(),
				CfgScale:       diffusion.GuidanceScale,
			},
		}
		if i < len(params.Prompts) {
			req.ImageVariationParams.Text = params.Prompts[i]
		}
		if i < len(params.NegativePrompts) {
			req.ImageVariationParams.NegativeText = params.NegativePrompts[i]
		}

		images, err := v.model.invoke(ctx, req)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("%w: no variation returned for image %d", apperr.ErrStageUnavailable, i)
		}
		out = append(out, images[0])
	}
	return out, nil
}

func (m *Model) invoke(ctx context.Context, req titanRequest) ([]image.Image, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	resp, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, mapError(err)
	}

	var out titanResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("%w: failed to decode Titan response: %v", apperr.ErrModelUnavailable, err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("%w: %s", apperr.ErrModelUnavailable, out.Error)
	}

	images := make([]image.Image, 0, len(out.Images))
	for i, encoded := range out.Images {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d is not base64: %v", apperr.ErrModelUnavailable, i, err)
		}
		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decode image %d: %v", apperr.ErrModelUnavailable, i, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func mapError(err error) error {
	var throttling *types.ThrottlingException
	var quota *types.ServiceQuotaExceededException
	var validation *types.ValidationException

	switch {
	case errors.As(err, &throttling), errors.As(err, &quota):
		return fmt.Errorf("%w: %w", apperr.ErrResourceExhausted, err)
	case errors.As(err, &validation):
		return fmt.Errorf("%w: %w", apperr.ErrInvalidParameters, err)
	default:
		return fmt.Errorf("%w: %w", apperr.ErrModelUnavailable, err)
	}
}
