package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		want    any
		wantErr string
	}{
		{name: "ollama default", opts: Options{Model: "ollama/gemma"}, want: &Ollama{}},
		{name: "openai", opts: Options{Provider: "openai", Model: "gpt-4o-mini", APIKey: "k"}, want: &OpenAI{}},
		{name: "azure", opts: Options{Provider: "azure", Model: "gpt-4", APIBase: "https://x.openai.azure.com", APIKey: "k"}, want: &OpenAI{}},
		{name: "anthropic", opts: Options{Provider: "Anthropic", Model: "claude-3-5-haiku-latest", APIKey: "k"}, want: &Anthropic{}},
		{name: "azure missing key", opts: Options{Provider: "azure", Model: "gpt-4", APIBase: "https://x"}, wantErr: "required"},
		{name: "anthropic missing key", opts: Options{Provider: "anthropic", Model: "m"}, wantErr: "required"},
		{name: "no model", opts: Options{Provider: "ollama", Model: "ollama/"}, wantErr: "model not set"},
		{name: "unknown", opts: Options{Provider: "bard", Model: "m"}, wantErr: "unknown provider"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := New(c.opts)
			if c.wantErr != "" {
				assert.ErrorContains(t, err, c.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, c.want, got)
		})
	}
}

func TestNew_StripsProviderPrefix(t *testing.T) {
	c, err := New(Options{Provider: "ollama", Model: "ollama/gemma"})
	require.NoError(t, err)
	assert.Equal(t, "gemma", c.(*Ollama).model)
}

func TestOllama_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gemma", req.Model)
		assert.False(t, req.Stream)
		assert.Zero(t, req.Options.Temperature)
		assert.Equal(t, MaxTokens, req.Options.NumPredict)
		w.Write([]byte(`{"response":" reasoning\n"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, err := NewOllama(srv.URL, "gemma", srv.Client()).Complete(context.Background(), "classify")
	require.NoError(t, err)
	assert.Equal(t, " reasoning\n", out)
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])
		assert.EqualValues(t, 0, body["temperature"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop",
				"message":{"role":"assistant","content":"search"}}]
		}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, err := NewOpenAI(srv.URL+"/v1/", "sk-test", "gpt-4o-mini", srv.Client()).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "search", out)
}

func TestOpenAI_CompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewOpenAI(srv.URL+"/v1/", "sk-test", "m", srv.Client()).Complete(context.Background(), "p")
	assert.Error(t, err)
}

func TestAnthropic_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"), r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id":"m1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"reasoning"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":1}
		}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, err := NewAnthropic(srv.URL+"/", "ak-test", "claude", srv.Client()).Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "reasoning", out)
}
