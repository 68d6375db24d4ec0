package relevance

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HashingEmbedder is an offline embedder: unigrams and bigrams of the folded
// text are hashed into a fixed number of signed buckets and the vector is
// L2-normalised. It needs no model download and is safe for concurrent use.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &HashingEmbedder{dim: dim}
}

func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, errors.New("no tokens to embed")
	}

	vec := make([]float32, h.dim)
	for i, tok := range tokens {
		h.add(vec, tok, 1)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (h *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// Tokenize lowercases text, strips diacritics and splits on anything that is
// not a letter, digit, '+' or '#', so "C++" and "C#" survive.
func Tokenize(text string) []string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	return strings.FieldsFunc(strings.ToLower(folded), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '+' && r != '#'
	})
}
