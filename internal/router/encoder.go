package router

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Encoder turns texts into vectors comparable by cosine similarity.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

const defaultHashingDimensions = 512

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "do": {}, "does": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"to": {}, "and": {}, "or": {}, "it": {}, "can": {}, "any": {}, "there": {}, "what": {},
	"which": {}, "with": {}, "that": {}, "this": {}, "be": {}, "have": {}, "has": {},
}

// HashingEncoder is a local bag-of-words encoder. Unigrams and bigrams are
// hashed into a fixed number of signed buckets and the vector is L2
// normalised. It needs no network and is fully deterministic.
type HashingEncoder struct {
	Dimensions int
}

func NewHashingEncoder(dimensions int) HashingEncoder {
	if dimensions <= 0 {
		dimensions = defaultHashingDimensions
	}
	return HashingEncoder{Dimensions: dimensions}
}

func (e HashingEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	dims := e.Dimensions
	if dims <= 0 {
		dims = defaultHashingDimensions
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = hashFeatures(tokenize(text), dims)
	}
	return vectors, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, skip := stopWords[field]; skip {
			continue
		}
		tokens = append(tokens, stem(field))
	}
	return tokens
}

// stem folds the most common English plural endings.
func stem(token string) string {
	switch {
	case len(token) > 4 && strings.HasSuffix(token, "ies"):
		return token[:len(token)-3] + "y"
	case len(token) > 3 && strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss"):
		return token[:len(token)-1]
	default:
		return token
	}
}

func hashFeatures(tokens []string, dims int) []float32 {
	vector := make([]float32, dims)
	add := func(feature string, weight float32) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum32()
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vector[int(sum%uint32(dims))] += sign * weight
	}
	for i, token := range tokens {
		add(token, 1)
		if i > 0 {
			add(tokens[i-1]+" "+token, 0.5)
		}
	}
	normalize(vector)
	return vector
}

func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
}

type embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// EmbeddingEncoder delegates to a remote embeddings endpoint.
type EmbeddingEncoder struct {
	client embedder
}

func NewEmbeddingEncoder(client embedder) (*EmbeddingEncoder, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is required")
	}
	return &EmbeddingEncoder{client: client}, nil
}

func (e *EmbeddingEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := e.client.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed texts: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors))
	}
	return vectors, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
