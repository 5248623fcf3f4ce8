package embedding

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GenAI embeds text with Google's Gemini API.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a Gemini embedder. An empty model means
// gemini-embedding-001; a non-empty baseURL overrides the API host.
func NewGenAI(ctx context.Context, apiKey, model, baseURL string) (*GenAI, error) {
	if apiKey == "" {
		return nil, errors.New("genai: API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

// Embed implements Embedder.
func (g *GenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := g.client.Models.EmbedContent(ctx,
		g.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"},
	)
	if err != nil {
		return nil, fmt.Errorf("genai: embed: %w", err)
	}
	if len(res.Embeddings) == 0 || len(res.Embeddings[0].Values) == 0 {
		return nil, errors.New("genai: no embeddings returned")
	}
	return res.Embeddings[0].Values, nil
}
