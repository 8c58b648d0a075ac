package sdapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/diffusion"
	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
	"github.com/samber/lo"
)

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
	Steps          int     `json:"steps"`
	CfgScale       float64 `json:"cfg_scale"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
}

type img2imgRequest struct {
	InitImages        []string `json:"init_images"`
	Prompt            string   `json:"prompt"`
	NegativePrompt    string   `json:"negative_prompt"`
	DenoisingStrength float64  `json:"denoising_strength"`
	BatchSize         int      `json:"batch_size"`
	Steps             int      `json:"steps"`
	CfgScale          float64  `json:"cfg_scale"`
	Width             int      `json:"width"`
	Height            int      `json:"height"`
}

type imagesResponse struct {
	Images []string `json:"images"`
}

// Model is the checkpoint currently loaded on the server
type Model struct {
	client *Client
	device pipeline.Device
}

// TextToImage sends identical replicas as one batch and anything else one prompt at a time
func (m *Model) TextToImage(ctx context.Context, params diffusion.Params) ([]image.Image, error) {
	if len(params.Prompts) == 0 {
		return nil, nil
	}

	if len(lo.Uniq(params.Prompts)) == 1 && len(lo.Uniq(params.NegativePrompts)) <= 1 {
		return m.txt2img(ctx, params, params.Prompts[0], first(params.NegativePrompts), len(params.Prompts))
	}

	var out []image.Image
	for i, prompt := range params.Prompts {
		negative := ""
		if i < len(params.NegativePrompts) {
			negative = params.NegativePrompts[i]
		}
		images, err := m.txt2img(ctx, params, prompt, negative, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, images...)
	}
	return out, nil
}

func (m *Model) txt2img(ctx context.Context, params diffusion.Params, prompt, negative string, n int) ([]image.Image, error) {
	var resp imagesResponse
	err := m.client.post(ctx, "/sdapi/v1/txt2img", txt2imgRequest{
		Prompt:         prompt,
		NegativePrompt: negative,
		BatchSize:      n,
		NIter:          1,
		Steps:          params.Steps,
		CfgScale:       params.GuidanceScale,
		Width:          params.Width,
		Height:         params.Height,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return decodeImages(resp.Images)
}

// Refiner reuses the loaded checkpoint for img2img
func (m *Model) Refiner(ctx context.Context) (diffusion.ImageToImage, error) {
	return &refiner{model: m}, nil
}

type refiner struct {
	model *Model
}

// ImageToImage runs one img2img call per input so output i always comes from input i
func (r *refiner) ImageToImage(ctx context.Context, params diffusion.RefineParams) ([]image.Image, error) {
	out := make([]image.Image, 0, len(params.Images))
	for i, src := range params.Images {
		encoded, err := encodeImage(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidParameters, err)
		}

		prompt, negative := "", ""
		if i < len(params.Prompts) {
			prompt = params.Prompts[i]
		}
		if i < len(params.NegativePrompts) {
			negative = params.NegativePrompts[i]
		}

		var resp imagesResponse
		err = r.model.client.post(ctx, "/sdapi/v1/img2img", img2imgRequest{
			InitImages:        []string{encoded},
			Prompt:            prompt,
			NegativePrompt:    negative,
			DenoisingStrength: params.Strength,
			BatchSize:         1,
			Steps:             diffusion.Steps,
			CfgScale:          diffusion.GuidanceScale,
			Width:             src.Bounds().Dx(),
			Height:            src.Bounds().Dy(),
		}, &resp)
		if err != nil {
			if errors.Is(err, apperr.ErrModelUnavailable) {
				return nil, fmt.Errorf("%w: %v", apperr.ErrStageUnavailable, err)
			}
			return nil, err
		}

		images, err := decodeImages(resp.Images)
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("%w: img2img returned no image for input %d", apperr.ErrStageUnavailable, i)
		}
		out = append(out, images[0])
	}
	return out, nil
}

func decodeImages(encoded []string) ([]image.Image, error) {
	images := make([]image.Image, 0, len(encoded))
	for i, s := range encoded {
		data, err := base64.StdEncoding.DecodeString(s)
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

func encodeImage(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func first(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
