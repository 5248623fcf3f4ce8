package coref

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthrough(t *testing.T) {
	out, err := Passthrough{}.Resolve(context.Background(), "John said he would call.")
	require.NoError(t, err)
	assert.Equal(t, "John said he would call.", out)
}

func TestClient_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/resolve", r.URL.Path)
		w.Write([]byte(`{"resolved_text":"John said John would call."}`)) //nolint:errcheck
	}))
	defer srv.Close()

	out, err := NewClient(srv.URL, srv.Client()).Resolve(context.Background(), "John said he would call.")
	require.NoError(t, err)
	assert.Equal(t, "John said John would call.", out)
}

func TestClient_ResolveMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Resolve(context.Background(), "x")
	assert.ErrorIs(t, err, errMissingField)
}

func TestClient_ResolveDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := NewClient(srv.URL, nil).Resolve(context.Background(), "x")
	assert.Error(t, err)
}
