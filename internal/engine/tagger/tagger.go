// Package tagger provides named-entity taggers: an HTTP client for an NER
// sidecar and a rule-based fallback used when no sidecar is configured.
package tagger

import (
	"context"
	"net/http"

	"pii-redaction-pipeline/internal/engine"
)

// Span is one tagged mention. Label is the tagger's native category
// (PERSON, ORG, GPE, ...). Text is the matched substring.
type Span struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Tagger tags named entities in text. Implementations must be safe for
// concurrent use.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]Span, error)
}

// Client calls a sidecar's /classify endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a Client for the sidecar at baseURL
// (e.g. "http://ner:8001"). A nil hc uses engine.NewHTTPClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = engine.NewHTTPClient()
	}
	return &Client{url: engine.JoinURL(baseURL, "/classify"), http: hc}
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Spans []struct {
		Start int    `json:"start"`
		End   int    `json:"end"`
		Label string `json:"label"`
		Text  string `json:"text"`
	} `json:"spans"`
}

// Tag sends text to the sidecar. Spans without text are dropped.
func (c *Client) Tag(ctx context.Context, text string) ([]Span, error) {
	var resp classifyResponse
	if err := engine.PostJSON(ctx, c.http, "tagger", c.url, classifyRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	spans := make([]Span, 0, len(resp.Spans))
	for _, s := range resp.Spans {
		t := s.Text
		if t == "" && s.Start >= 0 && s.Start < s.End && s.End <= len(text) {
			t = text[s.Start:s.End]
		}
		if t == "" {
			continue
		}
		spans = append(spans, Span{Label: s.Label, Text: t})
	}
	return spans, nil
}
