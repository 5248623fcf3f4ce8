// Package coref resolves pronouns and repeated references to their canonical
// mention before entity detection runs.
package coref

import (
	"context"
	"errors"
	"net/http"

	"pii-redaction-pipeline/internal/engine"
)

// Resolver rewrites text so every reference names its referent. Text with no
// references must come back unchanged.
type Resolver interface {
	Resolve(ctx context.Context, text string) (string, error)
}

// Passthrough is the identity Resolver, used when no coreference service is
// configured.
type Passthrough struct{}

// Resolve returns text unchanged.
func (Passthrough) Resolve(ctx context.Context, text string) (string, error) {
	return text, ctx.Err()
}

// Client calls a coreference sidecar's /resolve endpoint.
type Client struct {
	url  string
	http *http.Client
}

// NewClient creates a Client for the service at baseURL. A nil hc uses
// engine.NewHTTPClient.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = engine.NewHTTPClient()
	}
	return &Client{url: engine.JoinURL(baseURL, "/resolve"), http: hc}
}

type resolveRequest struct {
	Text string `json:"text"`
}

type resolveResponse struct {
	ResolvedText *string `json:"resolved_text"`
}

// Resolve sends text to the service. A reply without resolved_text is an
// error: the caller cannot tell an empty resolution from a broken sidecar.
func (c *Client) Resolve(ctx context.Context, text string) (string, error) {
	var resp resolveResponse
	if err := engine.PostJSON(ctx, c.http, "coref", c.url, resolveRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	if resp.ResolvedText == nil {
		return "", errMissingField
	}
	return *resp.ResolvedText, nil
}

var errMissingField = errors.New("coref: response missing resolved_text")
