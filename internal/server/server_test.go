package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pii-redaction-pipeline/internal/audit"
	"pii-redaction-pipeline/internal/config"
	"pii-redaction-pipeline/internal/metrics"
	"pii-redaction-pipeline/internal/pipeline"
)

func testConfig() *config.Config {
	return &config.Config{
		MaxUploadBytes: 1 << 20,
		RequestTimeout: time.Second,
	}
}

type failingProcessor struct{ err error }

func (f failingProcessor) Process(context.Context, *pipeline.Context) error { return f.err }

type auditStub struct {
	recs  []audit.Record
	err   error
	limit int
}

func (a *auditStub) Write(context.Context, audit.Record) error { return nil }

func (a *auditStub) Recent(_ context.Context, limit int) ([]audit.Record, error) {
	a.limit = limit
	return a.recs, a.err
}

func (a *auditStub) Close() error { return nil }

func newTestServer(cfg *config.Config, p Processor) (*Server, *metrics.Metrics) {
	m := metrics.New()
	if p == nil {
		p = pipeline.New(pipeline.Config{Metrics: m})
	}
	return New(cfg, p, nil, m, nil, Engines{Coref: "passthrough", Detectors: []string{"pattern"}, Strategies: []string{"keyword"}, Audit: "none"}), m
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type result struct {
	Text    string            `json:"anonymized_text"`
	Intent  string            `json:"intent"`
	Mapping map[string]string `json:"mapping"`
}

type detail struct {
	Detail string `json:"detail"`
}

func fileRequest(t *testing.T, name string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/anonymize/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnonymizeText_Form(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	form := url.Values{"text": {"find mail from jane@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[result](t, rec)
	assert.Equal(t, "find mail from <EMAIL>", got.Text)
	assert.Equal(t, "search", got.Intent)
	assert.Empty(t, got.Mapping)

	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestAnonymizeText_JSON(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader(`{"text":"why is 10.0.0.1 down"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	rec := do(t, s.Handler(), req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[result](t, rec)
	assert.Equal(t, "why is <IP> down", got.Text)
	assert.Equal(t, "reasoning", got.Intent)
}

func TestAnonymizeText_MissingText(t *testing.T) {
	s, m := newTestServer(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader("other=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := do(t, s.Handler(), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[detail](t, rec).Detail, "text")
	assert.Equal(t, int64(1), m.RequestsRejected.Load())
}

func TestAnonymizeText_BadJSON(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), req).Code)
}

func TestAnonymizeText_BodyTooLarge(t *testing.T) {
	long := strings.Repeat("x", 256)
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{"json", "application/json", `{"text":"` + long + `"}`},
		{"form", "application/x-www-form-urlencoded", url.Values{"text": {long}}.Encode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.MaxUploadBytes = 64
			s, m := newTestServer(cfg, nil)
			req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			rec := do(t, s.Handler(), req)
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
			assert.Equal(t, "request body too large", decode[detail](t, rec).Detail)
			assert.Equal(t, int64(1), m.RequestsRejected.Load())
		})
	}
}

func TestAnonymizeText_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/anonymize/text", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnonymizeFile(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	rec := do(t, s.Handler(), fileRequest(t, "notes.txt", []byte("list calls to 555-123-4567")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "list calls to <PHONE>", decode[result](t, rec).Text)
}

func TestAnonymizeFile_Docx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>show ssn 123-45-6789</w:t></w:r></w:p></w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	s, _ := newTestServer(testConfig(), nil)
	rec := do(t, s.Handler(), fileRequest(t, "report.docx", buf.Bytes()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "show ssn <SSN>", decode[result](t, rec).Text)
}

func TestAnonymizeFile_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		file   string
		status int
		detail string
	}{
		{"legacy doc", "old.doc", http.StatusUnsupportedMediaType, "DOC format not supported. Please use DOCX."},
		{"pdf", "scan.pdf", http.StatusUnsupportedMediaType, "Unsupported file type."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(testConfig(), nil)
			rec := do(t, s.Handler(), fileRequest(t, tt.file, []byte("x")))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, decode[detail](t, rec).Detail)
		})
	}
}

func TestAnonymizeFile_MissingField(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/anonymize/file", strings.NewReader(""))
	assert.Equal(t, http.StatusBadRequest, do(t, s.Handler(), req).Code)
}

func TestProcessingErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"stage failure", &pipeline.StageError{Stage: "coreference", Err: pipeline.ErrCoreference}, http.StatusInternalServerError},
		{"timeout", &pipeline.StageError{Stage: "detection", Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(testConfig(), failingProcessor{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader(`{"text":"secret jane@example.com"}`))
			req.Header.Set("Content-Type", "application/json")

			rec := do(t, s.Handler(), req)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "jane@example.com")
			assert.NotEmpty(t, decode[detail](t, rec).Detail)
		})
	}
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.APIToken = "s3cret"
	s, m := newTestServer(cfg, nil)
	h := s.Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	assert.Equal(t, http.StatusOK, do(t, h, req).Code)

	// liveness stays open
	assert.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, int64(2), m.RequestsRejected.Load())
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	s, _ := newTestServer(cfg, nil)
	h := s.Handler()

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/anonymize/text", strings.NewReader(`{"text":"find x"}`))
		req.Header.Set("Content-Type", "application/json")
		return do(t, h, req)
	}
	assert.Equal(t, http.StatusOK, send().Code)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// management endpoints are not limited
	assert.Equal(t, http.StatusOK, do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestRequestID_Propagated(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", id)
	assert.Equal(t, id, do(t, s.Handler(), req).Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "not a uuid\r\n")
	assert.NotEqual(t, "not a uuid\r\n", do(t, s.Handler(), req).Header().Get("X-Request-ID"))
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, "running", got["status"])
	assert.Equal(t, "passthrough", got["coreference"])
	assert.Equal(t, []any{"pattern"}, got["detectors"])
	assert.Equal(t, "1s", got["requestTimeout"])
}

func TestMetricsEndpoint(t *testing.T) {
	s, m := newTestServer(testConfig(), nil)
	m.RequestsTotal.Add(3)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[metrics.Snapshot](t, rec)
	assert.Equal(t, int64(3), snap.Requests.Total)
}

func TestAuditEndpoint(t *testing.T) {
	store := &auditStub{recs: []audit.Record{{ID: "a", Intent: "search"}}}
	s := New(testConfig(), failingProcessor{}, store, nil, nil, Engines{})
	h := s.Handler()

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultAuditLimit, store.limit)
	got := decode[[]audit.Record](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	do(t, h, httptest.NewRequest(http.MethodGet, "/audit?limit=100000", nil))
	assert.Equal(t, maxAuditLimit, store.limit)

	assert.Equal(t, http.StatusBadRequest, do(t, h, httptest.NewRequest(http.MethodGet, "/audit?limit=-1", nil)).Code)

	store.err = errors.New("db closed")
	assert.Equal(t, http.StatusInternalServerError, do(t, h, httptest.NewRequest(http.MethodGet, "/audit", nil)).Code)
}

func TestAuditEndpoint_EmptyIsArray(t *testing.T) {
	s, _ := newTestServer(testConfig(), nil)
	rec := do(t, s.Handler(), httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestListenAndServe_Shutdown(t *testing.T) {
	cfg := testConfig()
	cfg.BindAddress = "127.0.0.1"
	cfg.Port = 0
	s, _ := newTestServer(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
