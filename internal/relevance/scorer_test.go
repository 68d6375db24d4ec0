package relevance

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobharvest/harvester/internal/domain"
)

// mapEmbedder returns fixed vectors per text and counts calls.
type mapEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (m *mapEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

var profile = domain.NewKeywordProfile([]string{"software engineer"}, []string{"python", "backend"})

func TestScorer_ScenarioAccepted(t *testing.T) {
	other := float32(math.Sqrt(1 - 0.72*0.72))
	emb := &mapEmbedder{vectors: map[string][]float32{
		profile.Text():              {1, 0},
		"Python backend internship": {0.72, other},
	}}
	s := NewScorer(emb, profile)

	score, err := s.Score(context.Background(), "Python backend internship")
	require.NoError(t, err)
	assert.InDelta(t, 0.72, score, 1e-6)
	assert.True(t, Accept(score))
}

func TestScorer_ProfileEmbeddedOnce(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{
		profile.Text(): {1, 0},
		"a":            {1, 0},
		"b":            {0, 1},
	}}
	s := NewScorer(emb, profile)

	_, err := s.Score(context.Background(), "a")
	require.NoError(t, err)
	_, err = s.Score(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, 3, emb.calls)
}

func TestScorer_NegativeSimilarityClampsToZero(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{
		profile.Text(): {1, 0},
		"opposite":     {-1, 0},
	}}
	score, err := NewScorer(emb, profile).Score(context.Background(), "opposite")
	require.NoError(t, err)
	assert.Zero(t, score)
	assert.False(t, Accept(score))
}

func TestScorer_EmbeddingFailureIsScoringError(t *testing.T) {
	emb := &mapEmbedder{err: errors.New("model offline")}
	_, err := NewScorer(emb, profile).Score(context.Background(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrScoring)
}

func TestScorer_DimensionMismatch(t *testing.T) {
	emb := &mapEmbedder{vectors: map[string][]float32{
		profile.Text(): {1, 0, 0},
		"short":        {1, 0},
	}}
	_, err := NewScorer(emb, profile).Score(context.Background(), "short")
	assert.ErrorIs(t, err, domain.ErrScoring)
}

func TestScorer_EmptyProfile(t *testing.T) {
	emb := &mapEmbedder{}
	_, err := NewScorer(emb, domain.KeywordProfile{}).Score(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrScoring)
	assert.Zero(t, emb.calls)
}

func TestAccept_Threshold(t *testing.T) {
	assert.True(t, Accept(0.5))
	assert.True(t, Accept(1))
	assert.False(t, Accept(0.4999))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"scale invariant", []float32{1, 2}, []float32{10, 20}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, err := CosineSimilarity(nil, nil)
	assert.Error(t, err)
}
