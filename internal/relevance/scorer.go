// Package relevance scores job descriptions against the keyword profile by
// cosine similarity of their embeddings.
package relevance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/jobharvest/harvester/internal/domain"
)

// Threshold is the minimum score a description needs to be accepted.
const Threshold = 0.5

// Embedder maps text to a fixed-length vector. The same Embedder must be used
// for both sides of a comparison.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Scorer compares descriptions with one keyword profile. The profile vector
// is computed on first use and kept for the Scorer's lifetime.
type Scorer struct {
	embedder Embedder
	profile  domain.KeywordProfile

	mu         sync.Mutex
	profileVec []float32
}

func NewScorer(embedder Embedder, profile domain.KeywordProfile) *Scorer {
	return &Scorer{embedder: embedder, profile: profile}
}

// Score returns the similarity of description to the profile in [0,1].
// Every failure wraps domain.ErrScoring.
func (s *Scorer) Score(ctx context.Context, description string) (float64, error) {
	pv, err := s.profileVector(ctx)
	if err != nil {
		return 0, err
	}
	dv, err := s.embedder.Embed(ctx, description)
	if err != nil {
		return 0, fmt.Errorf("%w: embed description: %w", domain.ErrScoring, err)
	}
	sim, err := CosineSimilarity(dv, pv)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrScoring, err)
	}
	return clamp01(sim), nil
}

// Accept applies the fixed relevance threshold.
func Accept(score float64) bool {
	return score >= Threshold
}

func (s *Scorer) profileVector(ctx context.Context) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profileVec != nil {
		return s.profileVec, nil
	}
	text := s.profile.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: keyword profile is empty", domain.ErrScoring)
	}
	v, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: embed keyword profile: %w", domain.ErrScoring, err)
	}
	s.profileVec = v
	return v, nil
}

// CosineSimilarity is the dot product over the product of Euclidean norms.
// A zero vector has similarity 0 with everything.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, errors.New("embedding dimensions differ or are empty")
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
