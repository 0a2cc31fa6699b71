package router

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/shopassist/shopassist/internal/observability"
)

const (
	DefaultThreshold = 0.3
	DefaultCacheSize = 1024
)

type Options struct {
	Threshold float64
	CacheSize int
}

type utterance struct {
	route  Route
	vector []float32
}

// SemanticRouter picks the route whose example utterances are most similar to
// the question. Decisions are memoised per normalised question so repeated
// questions land on the same route for the life of the process.
type SemanticRouter struct {
	encoder    Encoder
	threshold  float64
	utterances []utterance
	decisions  *lru.Cache[string, Route]
}

func NewSemanticRouter(ctx context.Context, encoder Encoder, definitions []Definition, opts Options) (*SemanticRouter, error) {
	if encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if len(definitions) == 0 {
		return nil, fmt.Errorf("at least one route definition is required")
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("threshold must be <= 1")
	}
	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	decisions, err := lru.New[string, Route](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create decision cache: %w", err)
	}

	texts := make([]string, 0)
	routes := make([]Route, 0)
	for _, def := range definitions {
		for _, text := range def.Utterances {
			texts = append(texts, text)
			routes = append(routes, def.Name)
		}
	}
	vectors, err := encoder.Encode(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("encode utterances: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("encoder returned %d vectors for %d utterances", len(vectors), len(texts))
	}
	encoded := make([]utterance, len(texts))
	for i := range texts {
		encoded[i] = utterance{route: routes[i], vector: vectors[i]}
	}

	return &SemanticRouter{
		encoder:    encoder,
		threshold:  threshold,
		utterances: encoded,
		decisions:  decisions,
	}, nil
}

func (r *SemanticRouter) Route(ctx context.Context, question string) (Route, error) {
	key := normalizeQuestion(question)
	if key == "" {
		return "", ErrNoRoute
	}
	if route, ok := r.decisions.Get(key); ok {
		observability.ObserveRouteDecision(string(route), true)
		if route == "" {
			return "", ErrNoRoute
		}
		return route, nil
	}

	vectors, err := r.encoder.Encode(ctx, []string{question})
	if err != nil {
		return "", fmt.Errorf("encode question: %w", err)
	}
	if len(vectors) != 1 {
		return "", fmt.Errorf("encoder returned %d vectors for one question", len(vectors))
	}

	route, _ := r.best(vectors[0])
	r.decisions.Add(key, route)
	observability.ObserveRouteDecision(string(route), false)
	if route == "" {
		return "", ErrNoRoute
	}
	return route, nil
}

// best returns the route of the highest scoring utterance, or "" when no
// utterance clears the threshold. Ties keep the earlier definition.
func (r *SemanticRouter) best(vector []float32) (Route, float64) {
	var (
		bestRoute Route
		bestScore float64
	)
	for _, candidate := range r.utterances {
		score := cosine(vector, candidate.vector)
		if score > bestScore {
			bestScore = score
			bestRoute = candidate.route
		}
	}
	if bestScore < r.threshold {
		return "", bestScore
	}
	return bestRoute, bestScore
}

func normalizeQuestion(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}
