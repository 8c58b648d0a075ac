package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = []string{"dreamy", "futuristic", "realistic", "abstract", "surreal", "emotional", "fantasy"}

type stubProvider struct {
	response string
	err      error
	calls    []providers.Config
}

func (s *stubProvider) Complete(ctx context.Context, config providers.Config) (string, error) {
	s.calls = append(s.calls, config)
	return s.response, s.err
}

func TestClassifyRanksDescending(t *testing.T) {
	p := &stubProvider{response: "```json\n{\"fantasy\": 0.91, \"dreamy\": 0.4, \"surreal\": 0.2}\n```"}
	z := New(p, "llama3.2")

	ranked, err := z.Classify(context.Background(), "a dragon flying over snowy mountains", labels)
	require.NoError(t, err)
	require.Len(t, ranked, len(labels))

	assert.Equal(t, "fantasy", ranked[0].Label)
	assert.Equal(t, "dreamy", ranked[1].Label)
	assert.Equal(t, "surreal", ranked[2].Label)
	// unscored labels keep label-set order
	assert.Equal(t, "futuristic", ranked[3].Label)
	assert.Equal(t, "realistic", ranked[4].Label)

	require.Len(t, p.calls, 1)
	assert.True(t, p.calls[0].JSON)
	assert.Equal(t, "llama3.2", p.calls[0].Model)
	assert.Contains(t, p.calls[0].Prompt, "a dragon flying over snowy mountains")
	assert.Contains(t, p.calls[0].Prompt, strings.Join(labels, ", "))
}

func TestClassifyTiesKeepLabelOrder(t *testing.T) {
	p := &stubProvider{response: `{"surreal": 0.5, "realistic": 0.5, "futuristic": 0.5}`}
	ranked, err := New(p, "m").Classify(context.Background(), "x", labels)
	require.NoError(t, err)

	assert.Equal(t, []string{"futuristic", "realistic", "surreal"}, []string{ranked[0].Label, ranked[1].Label, ranked[2].Label})
}

func TestClassifyFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider *stubProvider
	}{
		{"provider error", &stubProvider{err: errors.New("connection refused")}},
		{"not json", &stubProvider{response: "The style is fantasy."}},
		{"no known labels", &stubProvider{response: `{"gothic": 0.9}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.provider, "m").Classify(context.Background(), "x", labels)
			if !errors.Is(err, apperr.ErrClassificationUnavailable) {
				t.Errorf("Expected ErrClassificationUnavailable, got %v", err)
			}
		})
	}
}

func TestParseScoresWrappedAndClamped(t *testing.T) {
	ranked, err := parseScores(`{"scores": {"Dreamy": 1.7, "abstract": -2}}`, labels)
	require.NoError(t, err)
	assert.Equal(t, "dreamy", ranked[0].Label)
	assert.Equal(t, 1.0, ranked[0].Score)
	for _, s := range ranked {
		if s.Label == "abstract" {
			assert.Equal(t, 0.0, s.Score)
		}
	}
}

func TestNewFromName(t *testing.T) {
	z, err := NewFromName("", "")
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", z.model)

	_, err = NewFromName("bogus", "")
	assert.Error(t, err)
}
