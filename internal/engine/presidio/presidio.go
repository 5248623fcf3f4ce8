// Package presidio is a client for the Presidio analyzer REST API.
package presidio

import (
	"context"
	"net/http"
	"unicode/utf8"

	"pii-redaction-pipeline/internal/engine"
)

// Result is one analyzer finding. Start and End are byte offsets into the
// analysed text.
type Result struct {
	EntityType string
	Start, End int
	Score      float64
}

// Analyzer finds PII of the given entity types scoring at least minScore.
type Analyzer interface {
	Analyze(ctx context.Context, text string, entities []string, minScore float64) ([]Result, error)
}

// Client calls POST /analyze on a Presidio analyzer.
type Client struct {
	url      string
	language string
	http     *http.Client
}

// NewClient creates a Client for the analyzer at baseURL. An empty language
// means "en". A nil hc uses engine.NewHTTPClient.
func NewClient(baseURL, language string, hc *http.Client) *Client {
	if language == "" {
		language = "en"
	}
	if hc == nil {
		hc = engine.NewHTTPClient()
	}
	return &Client{url: engine.JoinURL(baseURL, "/analyze"), language: language, http: hc}
}

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities,omitempty"`
	ScoreThreshold float64  `json:"score_threshold"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Analyze implements Analyzer. Presidio reports code-point offsets; they are
// converted to byte offsets, and results that fall outside text are dropped.
func (c *Client) Analyze(ctx context.Context, text string, entities []string, minScore float64) ([]Result, error) {
	var raw []analyzeResult
	req := analyzeRequest{Text: text, Language: c.language, Entities: entities, ScoreThreshold: minScore}
	if err := engine.PostJSON(ctx, c.http, "presidio", c.url, req, &raw); err != nil {
		return nil, err
	}

	offsets := runeOffsets(text)
	out := make([]Result, 0, len(raw))
	for _, r := range raw {
		if r.Start < 0 || r.End <= r.Start || r.End >= len(offsets) {
			continue
		}
		out = append(out, Result{
			EntityType: r.EntityType,
			Start:      offsets[r.Start],
			End:        offsets[r.End],
			Score:      r.Score,
		})
	}
	return out, nil
}

// runeOffsets maps code-point index i to its byte offset; the final entry is
// len(text).
func runeOffsets(text string) []int {
	offs := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offs = append(offs, i)
	}
	return append(offs, len(text))
}
