package presidio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Analyze(t *testing.T) {
	// "Zoë" is three code points and four bytes.
	text := "Zoë mail zoe@x.io"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyze", r.URL.Path)
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "en", req.Language)
		assert.Equal(t, []string{"EMAIL_ADDRESS", "PERSON"}, req.Entities)
		assert.InDelta(t, 0.7, req.ScoreThreshold, 1e-9)
		w.Write([]byte(`[
			{"entity_type":"PERSON","start":0,"end":3,"score":0.85},
			{"entity_type":"EMAIL_ADDRESS","start":9,"end":17,"score":1.0},
			{"entity_type":"PERSON","start":5,"end":99,"score":0.9}
		]`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	res, err := c.Analyze(context.Background(), text, []string{"EMAIL_ADDRESS", "PERSON"}, 0.7)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Zoë", text[res[0].Start:res[0].End])
	assert.Equal(t, "zoe@x.io", text[res[1].Start:res[1].End])
	assert.Equal(t, "EMAIL_ADDRESS", res[1].EntityType)
}

func TestRuneOffsets(t *testing.T) {
	assert.Equal(t, []int{0, 1, 3, 4}, runeOffsets("aéb"))
	assert.Equal(t, []int{0}, runeOffsets(""))
}
