package completion

import (
	"context"
	"net/http"

	"pii-redaction-pipeline/internal/engine"
)

// Ollama calls a local Ollama server's native /api/generate endpoint.
type Ollama struct {
	url   string
	model string
	http  *http.Client
}

// NewOllama returns an Ollama completer. An empty baseURL means
// http://localhost:11434.
func NewOllama(baseURL, model string, hc *http.Client) *Ollama {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if hc == nil {
		hc = engine.NewHTTPClient()
	}
	return &Ollama{url: engine.JoinURL(baseURL, "/api/generate"), model: model, http: hc}
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

// Complete implements Completer.
func (o *Ollama) Complete(ctx context.Context, prompt string) (string, error) {
	req := ollamaRequest{
		Model:   o.model,
		Prompt:  prompt,
		Options: ollamaOptions{Temperature: 0, NumPredict: MaxTokens},
	}
	var resp ollamaResponse
	if err := engine.PostJSON(ctx, o.http, "ollama", o.url, req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}
