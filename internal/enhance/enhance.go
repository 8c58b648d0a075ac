package enhance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
)

// Style labels, in the order the classifier sees them
const (
	Dreamy     = "dreamy"
	Futuristic = "futuristic"
	Realistic  = "realistic"
	Abstract   = "abstract"
	Surreal    = "surreal"
	Emotional  = "emotional"
	Fantasy    = "fantasy"
)

// Classifier ranks text against candidate labels, best match first
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) ([]models.LabelScore, error)
}

// StyleTable maps a style label to the phrase appended to prompts of that style.
// The zero value is empty; build one with NewStyleTable.
type StyleTable struct {
	labels    []string
	modifiers map[string]string
}

// NewStyleTable returns the built-in table
func NewStyleTable() StyleTable {
	return StyleTable{
		labels: []string{Dreamy, Futuristic, Realistic, Abstract, Surreal, Emotional, Fantasy},
		modifiers: map[string]string{
			Dreamy:     "soft pastel colors, ethereal glow, dreamlike haze",
			Futuristic: "sleek neon lighting, advanced technology, sci-fi atmosphere",
			Realistic:  "photorealistic, highly detailed, natural lighting, 8k",
			Abstract:   "bold geometric shapes, vibrant colors, abstract composition",
			Surreal:    "surrealism, impossible geometry, melting forms, Salvador Dali style",
			Emotional:  "dramatic lighting, expressive mood, cinematic atmosphere",
			Fantasy:    "epic fantasy art, magical atmosphere, intricate details",
		},
	}
}

// Labels returns a copy of the label set
func (t StyleTable) Labels() []string {
	return append([]string(nil), t.labels...)
}

// Modifier returns the phrase for label, or "" when the label is unknown
func (t StyleTable) Modifier(label string) string {
	return t.modifiers[label]
}

// Apply appends the modifier for label. An unknown label still gets the separator.
func (t StyleTable) Apply(rawPrompt, label string) string {
	return rawPrompt + ", " + t.Modifier(label)
}

// Enhancement is the result of ClassifyAndEnhance
type Enhancement struct {
	Prompt         string
	Classification models.StyleClassification
}

// Enhancer classifies prompts and appends style modifiers
type Enhancer struct {
	classifier Classifier
	table      StyleTable
}

func New(classifier Classifier, table StyleTable) *Enhancer {
	return &Enhancer{classifier: classifier, table: table}
}

// ClassifyAndEnhance picks the top style of rawPrompt and returns the prompt
// with that style's modifier appended. Ties are resolved by the classifier's
// own ordering.
func (e *Enhancer) ClassifyAndEnhance(ctx context.Context, rawPrompt string) (*Enhancement, error) {
	if strings.TrimSpace(rawPrompt) == "" {
		return nil, apperr.ErrEmptyPrompt
	}

	ranked, err := e.classifier.Classify(ctx, rawPrompt, e.table.Labels())
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, apperr.ErrClassificationUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrClassificationUnavailable, err)
	}
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: empty ranking", apperr.ErrClassificationUnavailable)
	}

	top := ranked[0].Label
	slog.Debug("Prompt classified", "top_label", top, "score", ranked[0].Score)

	return &Enhancement{
		Prompt: e.table.Apply(rawPrompt, top),
		Classification: models.StyleClassification{
			InputPrompt: rawPrompt,
			TopLabel:    top,
			Scores:      ranked,
		},
	}, nil
}
