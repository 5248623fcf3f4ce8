package completion

import (
	"context"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	antoption "github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic returns a completer for model. An empty baseURL uses the SDK
// default.
func NewAnthropic(baseURL, apiKey, model string, hc *http.Client) *Anthropic {
	opts := []antoption.RequestOption{antoption.WithAPIKey(apiKey), antoption.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, antoption.WithBaseURL(baseURL))
	}
	if hc != nil {
		opts = append(opts, antoption.WithHTTPClient(hc))
	}
	return &Anthropic{client: anthropic.NewClient(opts...), model: model}
}

// Complete implements Completer. Text blocks are concatenated.
func (a *Anthropic) Complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   MaxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
