package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
)

// maxRequestBytes caps generate request bodies, JSON or form
const maxRequestBytes = 1 << 20

type generateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Count          int    `json:"count"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Enhance        bool   `json:"enhance"`
	Refine         bool   `json:"refine"`
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var req generateRequest
	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		parsed, err := parseGenerateForm(r)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		req = parsed
	}

	genReq := req.toModel()
	slog.Info("Generation requested", "count", genReq.ImageCount, "width", genReq.Width, "height", genReq.Height, "enhance", genReq.EnhancePrompt, "refine", genReq.ApplyRefinement)

	result, err := h.generator.Generate(r.Context(), genReq)
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}

	session := newSession(uuid.NewString(), genReq, result)
	h.sessionStore.Set(session.ID, session)

	h.writeJSON(w, session)
}

func (r generateRequest) toModel() models.GenerationRequest {
	req := models.GenerationRequest{
		RawPrompt:       r.Prompt,
		NegativePrompt:  r.NegativePrompt,
		ImageCount:      r.Count,
		Width:           r.Width,
		Height:          r.Height,
		EnhancePrompt:   r.Enhance,
		ApplyRefinement: r.Refine,
	}
	if req.ImageCount == 0 {
		req.ImageCount = 1
	}
	if req.Width == 0 {
		req.Width = 512
	}
	if req.Height == 0 {
		req.Height = req.Width
	}
	return req
}

func parseGenerateForm(r *http.Request) (generateRequest, error) {
	if err := r.ParseForm(); err != nil {
		return generateRequest{}, fmt.Errorf("invalid form: %w", err)
	}

	req := generateRequest{
		Prompt:         r.FormValue("prompt"),
		NegativePrompt: r.FormValue("negative_prompt"),
		Enhance:        formBool(r.FormValue("enhance")),
		Refine:         formBool(r.FormValue("refine")),
	}

	for name, dst := range map[string]*int{"count": &req.Count, "width": &req.Width, "height": &req.Height} {
		v := r.FormValue(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return generateRequest{}, fmt.Errorf("invalid %s: %q", name, v)
		}
		*dst = n
	}
	return req, nil
}

func formBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func newSession(id string, req models.GenerationRequest, result *models.GenerationResult) *models.GenerationSession {
	session := &models.GenerationSession{
		ID:             id,
		Prompt:         req.RawPrompt,
		NegativePrompt: req.NegativePrompt,
		UsedPrompt:     result.UsedPrompt,
		Style:          result.Style,
		Enhanced:       result.Enhanced,
		Refined:        result.Refined,
		Width:          req.Width,
		Height:         req.Height,
		Images:         make([]models.ImageItem, 0, len(result.Images)),
		Result:         result,
		CreatedAt:      time.Now(),
	}

	for _, img := range result.Images {
		session.Images = append(session.Images, models.ImageItem{
			Index:       img.Index,
			SourceIndex: img.SourceIndex,
			Width:       img.Width(),
			Height:      img.Height(),
			URL:         fmt.Sprintf("/api/sessions/%s/images/%d", id, img.Index),
		})
	}
	return session
}
