package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]}) //nolint:errcheck
	}))
	defer srv.Close()

	var out struct {
		Echo string `json:"echo"`
	}
	err := PostJSON(context.Background(), srv.Client(), "test", srv.URL, map[string]string{"text": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestPostJSON_StatusErrorOmitsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom: john@x.com", http.StatusBadGateway)
	}))
	defer srv.Close()

	var out map[string]any
	err := PostJSON(context.Background(), srv.Client(), "tagger", srv.URL, struct{}{}, &out)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.NotContains(t, err.Error(), "john@x.com")
	assert.Contains(t, err.Error(), "tagger")
}

func TestPostJSON_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json")) //nolint:errcheck
	}))
	defer srv.Close()

	var out map[string]any
	err := PostJSON(context.Background(), srv.Client(), "x", srv.URL, struct{}{}, &out)
	assert.ErrorContains(t, err, "decode response")
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "http://h:1/api", JoinURL("http://h:1/", "/api"))
	assert.Equal(t, "http://h:1/api", JoinURL("http://h:1", "/api"))
}
