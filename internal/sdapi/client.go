// Package sdapi drives a Stable Diffusion WebUI compatible server
// (/sdapi/v1) as the generation backend.
package sdapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/pipeline"
)

// Client talks to one WebUI server and loads checkpoints on it
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: &http.Client{}}
}

// Load switches the server to spec.ModelID and returns it as a Model
func (c *Client) Load(ctx context.Context, spec pipeline.ModelSpec) (pipeline.Model, error) {
	device := spec.Device.Resolve(c.gpuAvailable(ctx))

	// return_grid off so a batch of n answers with exactly n images
	options := map[string]any{"return_grid": false}
	if spec.ModelID != "" {
		options["sd_model_checkpoint"] = spec.ModelID
	}
	if err := c.post(ctx, "/sdapi/v1/options", options, nil); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", spec.ModelID, err)
	}

	slog.Info("Checkpoint ready", "model", spec.ModelID, "device", device, "precision", device.Precision(), "url", c.BaseURL)
	return &Model{client: c, device: device}, nil
}

// gpuAvailable asks the server whether it has CUDA memory stats
func (c *Client) gpuAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/sdapi/v1/memory", nil)
	if err != nil {
		return false
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var memory struct {
		CUDA map[string]any `json:"cuda"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&memory); err != nil {
		return false
	}
	_, failed := memory.CUDA["error"]
	return len(memory.CUDA) > 0 && !failed
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response body: %v", apperr.ErrModelUnavailable, err)
	}
	return nil
}

func statusError(code int, body string) error {
	lower := strings.ToLower(body)
	switch {
	case code == http.StatusInsufficientStorage, strings.Contains(lower, "out of memory"), strings.Contains(lower, "outofmemory"):
		return fmt.Errorf("%w: status %d - %s", apperr.ErrResourceExhausted, code, body)
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d - %s", apperr.ErrInvalidParameters, code, body)
	default:
		return fmt.Errorf("%w: status %d - %s", apperr.ErrModelUnavailable, code, body)
	}
}
