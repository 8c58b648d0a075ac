package models

import (
	"image"
	"time"
)

// GenerationRequest is a single prompt-to-images request
type GenerationRequest struct {
	RawPrompt       string `json:"prompt"`
	NegativePrompt  string `json:"negative_prompt,omitempty"`
	ImageCount      int    `json:"count"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	EnhancePrompt   bool   `json:"enhance"`
	ApplyRefinement bool   `json:"refine"`
}

// LabelScore is one entry of a classifier ranking
type LabelScore struct {
	Label string  `json:"label" yaml:"label"`
	Score float64 `json:"score" yaml:"score"`
}

// StyleClassification is the ranked style of a prompt. It is never persisted.
type StyleClassification struct {
	InputPrompt string       `json:"input_prompt"`
	TopLabel    string       `json:"top_label"`
	Scores      []LabelScore `json:"scores"`
}

// Image is one generated artifact. SourceIndex is the base image it was derived from.
type Image struct {
	Index       int         `json:"index"`
	SourceIndex int         `json:"source_index"`
	Pixels      image.Image `json:"-"`
}

func (i Image) Width() int {
	if i.Pixels == nil {
		return 0
	}
	return i.Pixels.Bounds().Dx()
}

func (i Image) Height() int {
	if i.Pixels == nil {
		return 0
	}
	return i.Pixels.Bounds().Dy()
}

// ImageBatch is ordered and index-aligned with the prompt replicas that produced it
type ImageBatch []Image

// GenerationResult is what the orchestrator hands back to callers
type GenerationResult struct {
	Images     ImageBatch    `json:"images"`
	UsedPrompt string        `json:"used_prompt"`
	Enhanced   bool          `json:"enhanced"`
	Refined    bool          `json:"refined"`
	Style      string        `json:"style,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// GenerationSession represents one generate click in the web interface
type GenerationSession struct {
	ID             string            `json:"id"`
	Prompt         string            `json:"prompt"`
	NegativePrompt string            `json:"negative_prompt,omitempty"`
	UsedPrompt     string            `json:"used_prompt"`
	Style          string            `json:"style,omitempty"`
	Enhanced       bool              `json:"enhanced"`
	Refined        bool              `json:"refined"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	Images         []ImageItem       `json:"images"`
	Result         *GenerationResult `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ImageItem represents a downloadable image of a session
type ImageItem struct {
	Index       int    `json:"index"`
	SourceIndex int    `json:"source_index"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	URL         string `json:"url"`
}
