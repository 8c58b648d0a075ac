// Package classifier ranks a text against a fixed set of candidate labels
// by asking an LLM provider for per-label scores.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/gemini"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"github.com/lehigh-university-libraries/imagegen/internal/ollama"
	"github.com/lehigh-university-libraries/imagegen/internal/openai"
	"github.com/lehigh-university-libraries/imagegen/internal/providers"
	"github.com/samber/lo"
)

// ZeroShot is a zero-shot text classifier backed by an LLM provider
type ZeroShot struct {
	provider providers.Provider
	model    string
}

// New returns a classifier that prompts provider with the given model
func New(provider providers.Provider, model string) *ZeroShot {
	return &ZeroShot{provider: provider, model: model}
}

// NewFromName builds the provider registered under name
func NewFromName(name, model string) (*ZeroShot, error) {
	var p providers.Provider
	switch name {
	case "", "ollama":
		name = "ollama"
		p = ollama.New()
	case "openai":
		p = openai.New()
	case "gemini":
		p = gemini.New()
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", name)
	}
	if model == "" {
		model = providers.DefaultModel(name)
	}
	return New(p, model), nil
}

// Classify returns every label with its score, highest first. Equal scores
// keep the order labels were given in.
func (z *ZeroShot) Classify(ctx context.Context, text string, labels []string) ([]models.LabelScore, error) {
	response, err := z.provider.Complete(ctx, providers.Config{
		Model:       z.model,
		Temperature: 0,
		Prompt:      buildPrompt(text, labels),
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrClassificationUnavailable, err)
	}

	ranked, err := parseScores(response, labels)
	if err != nil {
		slog.Debug("Unparsable classifier response", "model", z.model, "response", response)
		return nil, fmt.Errorf("%w: %v", apperr.ErrClassificationUnavailable, err)
	}

	return ranked, nil
}

func buildPrompt(text string, labels []string) string {
	var b strings.Builder
	b.WriteString("You are a zero-shot text classifier for image generation prompts.\n")
	b.WriteString("Score how well the prompt below matches each candidate style label.\n")
	b.WriteString("Candidate labels: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\n\nRespond with ONLY a JSON object mapping every label to a score between 0 and 1, for example:\n{")
	b.WriteString(strings.Join(lo.Map(labels, func(l string, _ int) string {
		return fmt.Sprintf("%q: 0.0", l)
	}), ", "))
	b.WriteString("}\n\nPrompt: ")
	b.WriteString(text)
	return b.String()
}

func parseScores(response string, labels []string) ([]models.LabelScore, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	raw := map[string]float64{}
	if err := json.Unmarshal([]byte(response), &raw); err != nil {
		var wrapped struct {
			Scores map[string]float64 `json:"scores"`
		}
		if err2 := json.Unmarshal([]byte(response), &wrapped); err2 != nil || wrapped.Scores == nil {
			return nil, fmt.Errorf("failed to parse classifier JSON: %w", err)
		}
		raw = wrapped.Scores
	}

	normalized := make(map[string]float64, len(raw))
	for k, v := range raw {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}

	recognised := 0
	ranked := lo.Map(labels, func(label string, _ int) models.LabelScore {
		score, ok := normalized[label]
		if ok {
			recognised++
		}
		return models.LabelScore{Label: label, Score: clamp(score)}
	})
	if recognised == 0 {
		return nil, fmt.Errorf("no candidate labels in classifier response")
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked, nil
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
