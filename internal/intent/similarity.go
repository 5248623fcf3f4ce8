package intent

import (
	"context"
	"fmt"
	"strings"

	"pii-redaction-pipeline/internal/engine"
	"pii-redaction-pipeline/internal/engine/embedding"
	"pii-redaction-pipeline/internal/textutil"
)

// Exemplar sets the similarity strategy compares against.
var (
	SearchExemplars = []string{
		"Find all emails from John",
		"Show me customer records from last month",
		"Search for documents containing financial data",
		"List all transactions over $1000",
		"Query the database for user information",
		"Retrieve the latest sales figures",
		"Look up contact information for Jane Doe",
	}
	ReasoningExemplars = []string{
		"Why did the transaction fail?",
		"How does this algorithm work?",
		"Explain the difference between these two reports",
		"Analyze the trends in this dataset",
		"Compare the performance of these two models",
		"What are the reasons for the decline in sales?",
		"Evaluate the effectiveness of our marketing strategy",
	}
)

// VerbBonus is added to the side the verb analysis favours.
const VerbBonus = 0.3

var (
	questionWords  = map[string]bool{"why": true, "how": true, "what": true, "when": true, "where": true, "which": true}
	searchVerbs    = map[string]bool{"find": true, "search": true, "query": true, "retrieve": true, "list": true, "show": true, "get": true}
	reasoningVerbs = map[string]bool{"explain": true, "analyze": true, "compare": true, "evaluate": true, "calculate": true, "determine": true}
)

// Similarity compares the text's embedding with the two exemplar sets and
// adds a bonus from question-word and verb analysis.
type Similarity struct {
	embedder  embedding.Embedder
	search    [][]float32
	reasoning [][]float32
	limit     *engine.Limiter
}

// NewSimilarity embeds both exemplar sets up front, through cache when it is
// non-nil. An error means the strategy is unavailable.
func NewSimilarity(ctx context.Context, e embedding.Embedder, cache embedding.VectorCache, model string, limit *engine.Limiter) (*Similarity, error) {
	search, err := embedding.EmbedAll(ctx, e, cache, model, SearchExemplars)
	if err != nil {
		return nil, fmt.Errorf("embed search exemplars: %w", err)
	}
	reasoning, err := embedding.EmbedAll(ctx, e, cache, model, ReasoningExemplars)
	if err != nil {
		return nil, fmt.Errorf("embed reasoning exemplars: %w", err)
	}
	return &Similarity{embedder: e, search: search, reasoning: reasoning, limit: limit}, nil
}

// Name implements Strategy.
func (s *Similarity) Name() string { return "embedding" }

// Classify implements Strategy.
func (s *Similarity) Classify(ctx context.Context, text string) (Intent, error) {
	release, err := s.limit.Acquire(ctx)
	if err != nil {
		return Unset, err
	}
	q, err := s.embedder.Embed(ctx, text)
	release()
	if err != nil {
		return Unset, err
	}

	searchScore, err := embedding.MeanSimilarity(q, s.search)
	if err != nil {
		return Unset, err
	}
	reasoningScore, err := embedding.MeanSimilarity(q, s.reasoning)
	if err != nil {
		return Unset, err
	}

	switch verbIntent(text) {
	case Search:
		searchScore += VerbBonus
	case Reasoning:
		reasoningScore += VerbBonus
	}
	if searchScore > reasoningScore {
		return Search, nil
	}
	return Reasoning, nil
}

// verbIntent looks for a question word among the first three tokens, then
// for the first token whose lemma is a known search or reasoning verb.
// Unset means neutral.
func verbIntent(text string) Intent {
	toks := textutil.Tokenize(text)
	for i := 0; i < len(toks) && i < 3; i++ {
		if questionWords[strings.ToLower(toks[i].Text)] {
			return Reasoning
		}
	}
	for _, tk := range toks {
		l := lemma(strings.ToLower(tk.Text))
		if searchVerbs[l] {
			return Search
		}
		if reasoningVerbs[l] {
			return Reasoning
		}
	}
	return Unset
}

// lemma strips common English verb inflections when the stem is a known verb.
func lemma(w string) string {
	if searchVerbs[w] || reasoningVerbs[w] {
		return w
	}
	for _, suf := range []string{"ing", "ed", "es", "s", "d"} {
		if !strings.HasSuffix(w, suf) {
			continue
		}
		stem := strings.TrimSuffix(w, suf)
		for _, cand := range []string{stem, stem + "e"} {
			if searchVerbs[cand] || reasoningVerbs[cand] {
				return cand
			}
		}
	}
	return w
}
