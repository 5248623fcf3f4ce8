// Package completion sends short prompts to a text-completion service and
// returns the raw reply. Calls are deterministic: temperature 0 and a small
// token budget.
package completion

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// MaxTokens is the reply budget for every provider.
const MaxTokens = 10

// Completer returns the model's reply to prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider   string // ollama, openai, azure, anthropic
	Model      string
	APIBase    string
	APIKey     string
	APIVersion string
	HTTPClient *http.Client
}

// New builds the Completer named by opts.Provider. A "provider/" prefix on
// the model name (e.g. "ollama/gemma") is stripped.
func New(opts Options) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	model := opts.Model
	if i := strings.Index(model, "/"); i > 0 && strings.EqualFold(model[:i], provider) {
		model = model[i+1:]
	}
	if model == "" {
		return nil, fmt.Errorf("completion: %s: model not set", provider)
	}

	switch provider {
	case "", "ollama":
		return NewOllama(opts.APIBase, model, opts.HTTPClient), nil
	case "openai":
		return NewOpenAI(opts.APIBase, opts.APIKey, model, opts.HTTPClient), nil
	case "azure":
		if opts.APIBase == "" || opts.APIKey == "" {
			return nil, fmt.Errorf("completion: azure: endpoint and key are required")
		}
		return NewAzure(opts.APIBase, opts.APIVersion, opts.APIKey, model, opts.HTTPClient), nil
	case "anthropic":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("completion: anthropic: key is required")
		}
		return NewAnthropic(opts.APIBase, opts.APIKey, model, opts.HTTPClient), nil
	}
	return nil, fmt.Errorf("completion: unknown provider %q", opts.Provider)
}
