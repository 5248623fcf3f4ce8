package embedding

import (
	"context"
	"errors"
	"net/http"

	"pii-redaction-pipeline/internal/engine"
)

// Ollama calls a local Ollama server's /api/embeddings endpoint.
type Ollama struct {
	url   string
	model string
	http  *http.Client
}

// NewOllama returns an Ollama embedder. Empty endpoint and model fall back to
// http://localhost:11434 and nomic-embed-text.
func NewOllama(endpoint, model string, hc *http.Client) *Ollama {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "nomic-embed-text"
	}
	if hc == nil {
		hc = engine.NewHTTPClient()
	}
	return &Ollama{url: engine.JoinURL(endpoint, "/api/embeddings"), model: model, http: hc}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed implements Embedder.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp ollamaEmbedResponse
	if err := engine.PostJSON(ctx, o.http, "ollama embeddings", o.url, ollamaEmbedRequest{Model: o.model, Prompt: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, errors.New("ollama embeddings: empty vector")
	}
	return resp.Embedding, nil
}
