package enhance

import (
	"context"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/imagegen/internal/apperr"
	"github.com/lehigh-university-libraries/imagegen/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	ranking []models.LabelScore
	err     error
	calls   int
}

func (s *stubClassifier) Classify(ctx context.Context, text string, labels []string) ([]models.LabelScore, error) {
	s.calls++
	return s.ranking, s.err
}

func ranking(labels ...string) []models.LabelScore {
	out := make([]models.LabelScore, len(labels))
	for i, l := range labels {
		out[i] = models.LabelScore{Label: l, Score: 1 - float64(i)*0.1}
	}
	return out
}

func TestClassifyAndEnhance(t *testing.T) {
	table := NewStyleTable()

	for _, label := range table.Labels() {
		t.Run(label, func(t *testing.T) {
			e := New(&stubClassifier{ranking: ranking(label, Realistic)}, table)
			got, err := e.ClassifyAndEnhance(context.Background(), "a castle in the clouds")
			require.NoError(t, err)

			assert.Equal(t, "a castle in the clouds, "+table.Modifier(label), got.Prompt)
			assert.Equal(t, label, got.Classification.TopLabel)
			assert.Equal(t, "a castle in the clouds", got.Classification.InputPrompt)
			assert.NotEmpty(t, table.Modifier(label))
		})
	}
}

func TestClassifyAndEnhanceUnknownLabel(t *testing.T) {
	e := New(&stubClassifier{ranking: ranking("gothic")}, NewStyleTable())
	got, err := e.ClassifyAndEnhance(context.Background(), "a cathedral")
	require.NoError(t, err)
	assert.Equal(t, "a cathedral, ", got.Prompt)
}

func TestClassifyAndEnhanceIsDeterministic(t *testing.T) {
	e := New(&stubClassifier{ranking: ranking(Fantasy, Dreamy)}, NewStyleTable())

	first, err := e.ClassifyAndEnhance(context.Background(), "a dragon")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.ClassifyAndEnhance(context.Background(), "a dragon")
		require.NoError(t, err)
		assert.Equal(t, first.Prompt, again.Prompt)
	}
}

func TestClassifyAndEnhanceErrors(t *testing.T) {
	t.Run("empty prompt skips classifier", func(t *testing.T) {
		c := &stubClassifier{ranking: ranking(Dreamy)}
		_, err := New(c, NewStyleTable()).ClassifyAndEnhance(context.Background(), "   ")
		assert.ErrorIs(t, err, apperr.ErrEmptyPrompt)
		assert.Equal(t, 0, c.calls)
	})

	t.Run("classifier unavailable", func(t *testing.T) {
		c := &stubClassifier{err: apperr.ErrClassificationUnavailable}
		_, err := New(c, NewStyleTable()).ClassifyAndEnhance(context.Background(), "x")
		assert.True(t, errors.Is(err, apperr.ErrClassificationUnavailable))
	})

	t.Run("plain classifier error", func(t *testing.T) {
		c := &stubClassifier{err: errors.New("dial tcp: connection refused")}
		_, err := New(c, NewStyleTable()).ClassifyAndEnhance(context.Background(), "x")
		assert.ErrorIs(t, err, apperr.ErrClassificationUnavailable)
		assert.ErrorContains(t, err, "connection refused")
	})

	t.Run("empty ranking", func(t *testing.T) {
		_, err := New(&stubClassifier{}, NewStyleTable()).ClassifyAndEnhance(context.Background(), "x")
		assert.ErrorIs(t, err, apperr.ErrClassificationUnavailable)
	})
}

func TestLabelsReturnsCopy(t *testing.T) {
	table := NewStyleTable()
	labels := table.Labels()
	labels[0] = "mutated"
	assert.Equal(t, Dreamy, table.Labels()[0])
}
