// Package embedding turns text into semantic vectors via Ollama or Gemini,
// and caches vectors for fixed exemplar sets across restarts.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Embedder returns a semantic vector for text. Implementations must be safe
// for concurrent use.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider string // ollama, genai
	Endpoint string
	Model    string
	APIKey   string
}

// New builds the Embedder named by opts.Provider.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case "ollama":
		return NewOllama(opts.Endpoint, opts.Model, nil), nil
	case "genai", "gemini":
		return NewGenAI(ctx, opts.APIKey, opts.Model, "")
	}
	return nil, fmt.Errorf("embedding: unknown provider %q", opts.Provider)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if
// either has zero magnitude.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding: dimension mismatch %d != %d", len(a), len(b))
	}
	var dot, am, bm float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		am += float64(a[i]) * float64(a[i])
		bm += float64(b[i]) * float64(b[i])
	}
	if am == 0 || bm == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(am) * math.Sqrt(bm)), nil
}

// MeanSimilarity is the average cosine similarity of q to every vector in set.
func MeanSimilarity(q []float32, set [][]float32) (float64, error) {
	if len(set) == 0 {
		return 0, fmt.Errorf("embedding: empty exemplar set")
	}
	var sum float64
	for _, v := range set {
		s, err := CosineSimilarity(q, v)
		if err != nil {
			return 0, err
		}
		sum += s
	}
	return sum / float64(len(set)), nil
}

// EmbedAll embeds every text, consulting cache first and filling it on
// misses. Keys combine model and text so a model change never reuses stale
// vectors. Only call this with fixed, non-sensitive texts.
func EmbedAll(ctx context.Context, e Embedder, cache VectorCache, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		key := model + "\x00" + t
		if cache != nil {
			if v, ok := cache.Get(key); ok {
				out[i] = v
				continue
			}
		}
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		if len(v) == 0 {
			return nil, fmt.Errorf("embedding: empty vector")
		}
		if cache != nil {
			cache.Set(key, v)
		}
		out[i] = v
	}
	return out, nil
}
