package intent

import (
	"context"
	"strings"

	"pii-redaction-pipeline/internal/engine"
	"pii-redaction-pipeline/internal/engine/completion"
)

const promptTemplate = `You are an intent classifier. Your job is to identify if the query is asking for:
1) "search": Information retrieval, listing, finding data, looking up information, etc.
2) "reasoning": Explanations, analysis, comparisons, evaluations, etc.

Respond with ONLY the word "search" or "reasoning".

Examples of search queries:
- Find all emails from John
- Show me customer records from last month
- Search for documents containing financial data
- List all transactions over $1000

Examples of reasoning queries:
- Why did the transaction fail?
- How does this algorithm work?
- Explain the difference between these two reports
- Analyze the trends in this dataset

Query: `

// Prompt returns the classification prompt for text.
func Prompt(text string) string {
	return promptTemplate + text + "\nIntent:"
}

// Generative asks a text-completion model for the label.
type Generative struct {
	completer completion.Completer
	limit     *engine.Limiter
}

// NewGenerative wraps c. limit may be nil.
func NewGenerative(c completion.Completer, limit *engine.Limiter) *Generative {
	return &Generative{completer: c, limit: limit}
}

// Name implements Strategy.
func (g *Generative) Name() string { return "generative" }

// Classify implements Strategy. A reply mentioning neither label yields
// ErrNoLabel; "search" is checked first.
func (g *Generative) Classify(ctx context.Context, text string) (Intent, error) {
	release, err := g.limit.Acquire(ctx)
	if err != nil {
		return Unset, err
	}
	reply, err := g.completer.Complete(ctx, Prompt(text))
	release()
	if err != nil {
		return Unset, err
	}
	return ParseReply(reply)
}

// ParseReply extracts a label from a model reply.
func ParseReply(reply string) (Intent, error) {
	r := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.Contains(r, "search"):
		return Search, nil
	case strings.Contains(r, "reasoning"):
		return Reasoning, nil
	}
	return Unset, ErrNoLabel
}
