// Package app wires the process-wide engines from configuration. Everything
// here runs once before the first request; request handling only reads what
// it builds.
//
// Optional engines that fail to initialise are left out and logged once.
// Only the audit store must open when configured.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"pii-redaction-pipeline/internal/audit"
	"pii-redaction-pipeline/internal/config"
	"pii-redaction-pipeline/internal/detect"
	"pii-redaction-pipeline/internal/engine"
	"pii-redaction-pipeline/internal/engine/completion"
	"pii-redaction-pipeline/internal/engine/coref"
	"pii-redaction-pipeline/internal/engine/embedding"
	"pii-redaction-pipeline/internal/engine/presidio"
	"pii-redaction-pipeline/internal/engine/tagger"
	"pii-redaction-pipeline/internal/intent"
	"pii-redaction-pipeline/internal/logger"
	"pii-redaction-pipeline/internal/metrics"
	"pii-redaction-pipeline/internal/pipeline"
	"pii-redaction-pipeline/internal/server"
)

// defaultOllamaBase is the configured default API base; it only makes sense
// for the ollama provider.
const defaultOllamaBase = "http://localhost:11434"

// App holds the initialised engines and the pipeline built from them.
type App struct {
	Pipeline *pipeline.Pipeline
	Audit    audit.Store
	Metrics  *metrics.Metrics
	Engines  server.Engines

	vectors embedding.VectorCache
	log     *logger.Logger
}

// New initialises every engine named by cfg. ctx bounds startup calls such
// as embedding the intent exemplars.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Metrics: metrics.New(), log: log}
	hc := engine.NewHTTPClient()

	store, err := audit.Open(cfg.Audit.Backend, cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	a.Audit = store
	a.Engines.Audit = strings.ToLower(cfg.Audit.Backend)
	if a.Engines.Audit == "" {
		a.Engines.Audit = "none"
	}

	resolver := a.resolver(cfg, hc)
	detectors := a.detectors(cfg, hc)
	strategies := a.strategies(ctx, cfg, hc)

	classifier := intent.NewClassifier(log.With("INTENT"), strategies...)
	a.Engines.Strategies = classifier.Strategies()

	ensemble := detect.NewEnsemble(log.With("DETECT"), min(cfg.RequestTimeout, engine.DefaultTimeout), detectors...)
	a.Engines.Detectors = ensemble.Names()

	a.Pipeline = pipeline.New(pipeline.Config{
		Resolver:   resolver,
		Classifier: classifier,
		Detector:   ensemble,
		Audit:      store,
		Metrics:    a.Metrics,
		Log:        log.With("PIPELINE"),
		Timeout:    cfg.RequestTimeout,
		RefKey:     []byte(cfg.Audit.RefKey),
	})

	log.Infof("init", "coreference=%s detectors=%v intent=%v audit=%s",
		a.Engines.Coref, a.Engines.Detectors, a.Engines.Strategies, a.Engines.Audit)
	return a, nil
}

func (a *App) resolver(cfg *config.Config, hc *http.Client) coref.Resolver {
	if cfg.Coref.Endpoint == "" {
		a.Engines.Coref = "passthrough"
		return coref.Passthrough{}
	}
	a.Engines.Coref = cfg.Coref.Endpoint
	return coref.NewClient(cfg.Coref.Endpoint, hc)
}

func (a *App) detectors(cfg *config.Config, hc *http.Client) []detect.Detector {
	ds := []detect.Detector{detect.NewPattern()}

	if cfg.NER.Enabled {
		var t tagger.Tagger
		if cfg.NER.Endpoint == "" {
			t = tagger.NewRules()
		} else {
			t = tagger.NewClient(cfg.NER.Endpoint, hc)
		}
		ds = append(ds, detect.NewNER(t, engine.NewLimiter(cfg.EngineMaxConcurrent)))
	} else {
		a.log.Info("init", "NER detector disabled")
	}

	if cfg.Presidio.Endpoint != "" {
		c := presidio.NewClient(cfg.Presidio.Endpoint, cfg.Presidio.Language, hc)
		ds = append(ds, detect.NewPII(c, cfg.Presidio.MinConfidence, engine.NewLimiter(cfg.EngineMaxConcurrent)))
	} else {
		a.log.Info("init", "PII detector unavailable: no presidio endpoint configured")
	}
	return ds
}

func (a *App) strategies(ctx context.Context, cfg *config.Config, hc *http.Client) []intent.Strategy {
	var out []intent.Strategy
	if s, err := a.similarity(ctx, cfg); err != nil {
		a.log.Warnf("init", "embedding intent strategy unavailable: %v", err)
	} else if s != nil {
		out = append(out, s)
	}

	if !cfg.Intent.UseLLM {
		return out
	}
	base := cfg.Intent.APIBase
	provider := strings.ToLower(cfg.Intent.Provider)
	if provider != "" && provider != "ollama" && base == defaultOllamaBase {
		base = ""
	}
	c, err := completion.New(completion.Options{
		Provider:   provider,
		Model:      cfg.Intent.Model,
		APIBase:    base,
		APIKey:     cfg.Intent.APIKey,
		APIVersion: cfg.Intent.APIVersion,
		HTTPClient: hc,
	})
	if err != nil {
		a.log.Warnf("init", "generative intent strategy unavailable: %v", err)
		return out
	}
	return append(out, intent.NewGenerative(c, engine.NewLimiter(cfg.EngineMaxConcurrent)))
}

// similarity returns nil, nil when no embedding provider is configured.
func (a *App) similarity(ctx context.Context, cfg *config.Config) (*intent.Similarity, error) {
	ec := cfg.Embedding
	if ec.Provider == "" || strings.EqualFold(ec.Provider, "none") {
		return nil, nil
	}
	e, err := embedding.New(ctx, embedding.Options{
		Provider: strings.ToLower(ec.Provider),
		Endpoint: ec.Endpoint,
		Model:    ec.Model,
		APIKey:   ec.APIKey,
	})
	if err != nil {
		return nil, err
	}

	backing := embedding.NewMemoryCache()
	if ec.CachePath != "" {
		if bc, err := embedding.OpenBoltCache(ec.CachePath); err != nil {
			a.log.Warnf("init", "vector cache unavailable, using memory: %v", err)
		} else {
			backing = bc
		}
	}
	cache := embedding.NewBoundedCache(backing, ec.CacheSize)

	s, err := intent.NewSimilarity(ctx, e, cache, ec.Provider+"/"+ec.Model, engine.NewLimiter(cfg.EngineMaxConcurrent))
	if err != nil {
		cache.Close() //nolint:errcheck // strategy dropped
		return nil, err
	}
	a.vectors = cache
	return s, nil
}

// Close releases the audit store and vector cache.
func (a *App) Close() error {
	var errs []error
	if a.vectors != nil {
		errs = append(errs, a.vectors.Close())
	}
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	return errors.Join(errs...)
}
