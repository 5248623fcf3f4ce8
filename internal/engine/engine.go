// Package engine holds what the external NLP engine clients share: the
// unavailable sentinel, a status error that never carries a response body,
// and a bounded JSON POST helper.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable marks an engine that is not configured or failed to start.
var ErrUnavailable = errors.New("engine unavailable")

// MaxResponseBytes caps how much of an engine response is read.
const MaxResponseBytes = 10 << 20 // 10 MB

// DefaultTimeout bounds a single engine call when the caller's context has
// no earlier deadline.
const DefaultTimeout = 30 * time.Second

// StatusError reports a non-2xx engine reply. The body is deliberately not
// kept: sidecars may echo request text back in error pages.
type StatusError struct {
	Engine string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Engine, e.Code)
}

// NewHTTPClient returns the client engine packages use when none is injected.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// PostJSON marshals in, posts it to url and decodes the reply into out.
// name labels errors.
func PostJSON(ctx context.Context, client *http.Client, name, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: encode request: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: create request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req) // #nosec G107 -- URL from trusted config, not user input
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close on HTTP response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseBytes)) //nolint:errcheck // drain for reuse
		return &StatusError{Engine: name, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", name, err)
	}
	return nil
}

// JoinURL appends path to base without doubling the slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
