// Package server exposes the redaction pipeline over HTTP.
//
// Endpoints:
//
//	POST /anonymize/text  - form field or JSON {"text": "..."}
//	POST /anonymize/file  - multipart field "file" (.txt, .md, .docx)
//	GET  /status          - uptime and active engines
//	GET  /metrics         - counters snapshot
//	GET  /audit?limit=N   - recent audit records, newest first
//	GET  /healthz         - liveness, never authenticated
//
// Success responses are {"anonymized_text", "intent", "mapping"}; failures
// are non-2xx with {"detail": "..."}.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"pii-redaction-pipeline/internal/audit"
	"pii-redaction-pipeline/internal/config"
	"pii-redaction-pipeline/internal/extract"
	"pii-redaction-pipeline/internal/logger"
	"pii-redaction-pipeline/internal/metrics"
	"pii-redaction-pipeline/internal/pipeline"
)

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 500
	// multipartOverhead is the slack allowed above MaxUploadBytes for form
	// boundaries and part headers.
	multipartOverhead = 64 << 10
)

// Processor runs the pipeline over a fresh context. *pipeline.Pipeline
// satisfies it.
type Processor interface {
	Process(ctx context.Context, pc *pipeline.Context) error
}

// Engines describes what was wired at startup, for /status.
type Engines struct {
	Coref      string   `json:"coreference"`
	Detectors  []string `json:"detectors"`
	Strategies []string `json:"intentStrategies"`
	Audit      string   `json:"audit"`
}

// Server is the redaction HTTP API.
type Server struct {
	cfg       *config.Config
	pipe      Processor
	audit     audit.Store
	metrics   *metrics.Metrics
	log       *logger.Logger
	engines   Engines
	limiter   *rate.Limiter // nil = unlimited
	token     string        // bearer token; empty = no auth
	startTime time.Time
}

// New creates a Server. A nil store disables /audit; nil metrics or log get
// fresh instances.
func New(cfg *config.Config, p Processor, store audit.Store, m *metrics.Metrics, log *logger.Logger, engines Engines) *Server {
	if store == nil {
		store = audit.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:       cfg,
		pipe:      p,
		audit:     store,
		metrics:   m,
		log:       log,
		engines:   engines,
		token:     cfg.APIToken,
		startTime: time.Now(),
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	if s.token != "" {
		s.log.Info("init", "Bearer token authentication enabled")
	}
	return s
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.Handle("POST /anonymize/text", s.rateLimit(http.HandlerFunc(s.handleText)))
	api.Handle("POST /anonymize/file", s.rateLimit(http.HandlerFunc(s.handleFile)))
	api.HandleFunc("GET /status", s.handleStatus)
	api.HandleFunc("GET /metrics", s.handleMetrics)
	api.HandleFunc("GET /audit", s.handleAudit)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealthz)
	root.Handle("/", s.authMiddleware(api))
	return s.requestID(root)
}

type ctxKey struct{}

// RequestID returns the request ID assigned by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requestID tags each request with an ID, reusing a well-formed incoming
// X-Request-ID.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// authMiddleware checks for a valid Bearer token if one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) ||
			subtle.ConstantTimeCompare([]byte(strings.TrimSpace(auth[len(prefix):])), []byte(s.token)) != 1 {
			s.log.Warnf("auth", "Unauthorized access attempt from %s to %s", r.RemoteAddr, r.URL.Path)
			s.reject(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit sheds load with 429 once the token bucket is empty.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.reject(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var text string
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.rejectBody(w, err, `invalid request: need {"text":"..."}`)
			return
		}
		text = req.Text
	} else {
		// ParseMultipartForm hides url-encoded read errors behind ErrNotMultipart.
		if err := r.ParseForm(); err != nil {
			s.rejectBody(w, err, "invalid form body")
			return
		}
		if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			s.rejectBody(w, err, "invalid form body")
			return
		}
		text = r.FormValue("text")
	}
	if strings.TrimSpace(text) == "" {
		s.reject(w, http.StatusBadRequest, "field 'text' is required")
		return
	}
	s.run(w, r, text)
}

// rejectBody answers 413 when err came from the body size limit and 400
// with detail otherwise.
func (s *Server) rejectBody(w http.ResponseWriter, err error, detail string) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		s.reject(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	s.reject(w, http.StatusBadRequest, detail)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)

	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.reject(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.reject(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer f.Close() //nolint:errcheck // read-only upload

	text, err := extract.Text(hdr.Filename, f, s.cfg.MaxUploadBytes)
	switch {
	case err == nil:
	case errors.Is(err, extract.ErrLegacyDoc), errors.Is(err, extract.ErrUnsupportedFormat):
		s.reject(w, http.StatusUnsupportedMediaType, err.Error())
		return
	case errors.Is(err, extract.ErrTooLarge):
		s.reject(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	default:
		s.log.Warnf("extract", "%s: %v", RequestID(r.Context()), err)
		s.reject(w, http.StatusBadRequest, "could not read file")
		return
	}
	s.run(w, r, text)
}

// run processes text and writes the result. Failure responses never carry
// request text.
func (s *Server) run(w http.ResponseWriter, r *http.Request, text string) {
	pc := pipeline.NewContext(text)
	if id := RequestID(r.Context()); id != "" {
		pc.ID = id
	}

	if err := s.pipe.Process(r.Context(), pc); err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusGatewayTimeout, errorBody{Detail: "request timed out"})
		case errors.Is(err, context.Canceled):
			// client went away; nothing useful to write
		default:
			writeJSON(w, http.StatusInternalServerError, errorBody{Detail: fmt.Sprintf("processing failed: %v", err)})
		}
		return
	}
	writeJSON(w, http.StatusOK, pc.Result())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	type response struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		RequestTimeout string  `json:"requestTimeout"`
		RateLimitRPS   float64 `json:"rateLimitRps"`
		Engines
	}
	writeJSON(w, http.StatusOK, response{
		Status:         "running",
		Uptime:         time.Since(s.startTime).Round(time.Second).String(),
		RequestTimeout: s.cfg.RequestTimeout.String(),
		RateLimitRPS:   s.cfg.RateLimitRPS,
		Engines:        s.engines,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			s.reject(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}
	recs, err := s.audit.Recent(r.Context(), limit)
	if err != nil {
		s.log.Errorf("audit", "read recent records: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "audit store unavailable"})
		return
	}
	if recs == nil {
		recs = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errorBody struct {
	Detail string `json:"detail"`
}

// reject writes a client error and counts it.
func (s *Server) reject(w http.ResponseWriter, status int, detail string) {
	s.metrics.RequestsRejected.Add(1)
	writeJSON(w, status, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}

// ListenAndServe serves the API with cleartext HTTP/2 support until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.BindAddress, strconv.Itoa(s.cfg.Port))
	h2s := &http2.Server{
		MaxConcurrentStreams: 250,
		MaxReadFrameSize:     1 << 20, // 1 MiB
		IdleTimeout:          90 * time.Second,
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(s.Handler(), h2s),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infof("listen", "Listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		s.log.Info("listen", "Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
