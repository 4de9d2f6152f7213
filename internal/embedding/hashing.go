package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// DefaultHashingDimension is the vector size of the local embedder
const DefaultHashingDimension = 512

// HashingEmbedder is a deterministic, offline embedder. Unigrams and bigrams
// are hashed into a fixed number of buckets with a sign bit, weighted by
// sublinear term frequency and L2-normalized. It needs no corpus preparation,
// so vectors stay comparable across requests and can be cached.
type HashingEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewHashingEmbedder creates a local embedder; dimension <= 0 uses the default.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashingDimension
	}
	return &HashingEmbedder{
		dimension: dimension,
		// keeps tokens such as c++, c#, node.js and ci/cd intact
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:[.+#/-][\p{L}\p{N}+#]+)*[+#]*`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns "local/hashing-<dimension>"
func (e *HashingEmbedder) Name() string {
	return fmt.Sprintf("%s/hashing-%d", ProviderLocal, e.dimension)
}

// Dimension returns the vector size
func (e *HashingEmbedder) Dimension() int { return e.dimension }

// Embed never fails except on cancellation.
func (e *HashingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(t)
	}
	return out, nil
}

func (e *HashingEmbedder) embedOne(text string) []float32 {
	tokens := e.tokenize(text)
	counts := make(map[string]float64)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok] += 0.5
		}
	}

	vec := make([]float64, e.dimension)
	for term, tf := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(term))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[idx] += sign * (1 + math.Log(tf+1))
	}

	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dimension)
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (e *HashingEmbedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "should", "now",
		"we", "you", "our", "your", "i", "my", "me", "us", "they", "their", "who", "what", "which", "have", "has", "had", "do", "does", "did", "also", "all", "any", "each", "other", "some", "more", "most", "not", "no", "only",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
