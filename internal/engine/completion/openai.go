package completion

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI talks to the OpenAI chat completions API or any compatible server,
// including Azure OpenAI deployments.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI returns a completer for an OpenAI-compatible endpoint. An empty
// baseURL uses the SDK default.
func NewOpenAI(baseURL, apiKey, model string, hc *http.Client) *OpenAI {
	opts := []option.RequestOption{option.WithMaxRetries(1)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

// NewAzure returns a completer for an Azure OpenAI deployment. model is the
// deployment name.
func NewAzure(endpoint, apiVersion, apiKey, model string, hc *http.Client) *OpenAI {
	if apiVersion == "" {
		apiVersion = "2023-12-01-preview"
	}
	opts := []option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model}
}

// Complete implements Completer.
func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(0),
		MaxTokens:   openai.Int(MaxTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
