// Package config loads and holds all redactor configuration.
// Settings come from built-in defaults, then redactor.yaml (JSON is accepted
// too, being a YAML subset), then environment variables.
package config

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when no explicit path is given.
const DefaultPath = "redactor.yaml"

// Config holds the full redactor configuration.
type Config struct {
	BindAddress    string        `yaml:"bindAddress" env:"BIND_ADDRESS"`
	Port           int           `yaml:"port" env:"PORT"`
	LogLevel       string        `yaml:"logLevel" env:"LOG_LEVEL"`
	APIToken       string        `yaml:"apiToken" env:"API_TOKEN"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`
	MaxUploadBytes int64         `yaml:"maxUploadBytes" env:"MAX_UPLOAD_BYTES"`
	RateLimitRPS   float64       `yaml:"rateLimitRps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `yaml:"rateLimitBurst" env:"RATE_LIMIT_BURST"`

	// EngineMaxConcurrent caps in-flight calls per external engine.
	EngineMaxConcurrent int `yaml:"engineMaxConcurrent" env:"ENGINE_MAX_CONCURRENT"`

	Audit     AuditConfig     `yaml:"audit"`
	NER       NERConfig       `yaml:"ner"`
	Coref     CorefConfig     `yaml:"coref"`
	Presidio  PresidioConfig  `yaml:"presidio"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Intent    IntentConfig    `yaml:"intent"`
}

// AuditConfig selects the persistent audit sink.
type AuditConfig struct {
	Backend string `yaml:"backend" env:"AUDIT_BACKEND"` // none, bbolt, sqlite
	Path    string `yaml:"path" env:"AUDIT_PATH"`
	// RefKey keys the per-request InputRef HMAC. Empty picks a random key
	// at startup, so refs do not correlate across restarts.
	RefKey string `yaml:"refKey" env:"AUDIT_REF_KEY"`
}

// NERConfig points at a named-entity tagger sidecar. Empty endpoint selects
// the built-in rule-based tagger.
type NERConfig struct {
	Endpoint string `yaml:"endpoint" env:"NER_ENDPOINT"`
	Enabled  bool   `yaml:"enabled" env:"USE_NER"`
}

// CorefConfig points at a coreference service. Empty endpoint selects
// passthrough resolution.
type CorefConfig struct {
	Endpoint string `yaml:"endpoint" env:"COREF_ENDPOINT"`
}

// PresidioConfig points at a Presidio analyzer. Empty endpoint disables the
// specialized PII detector.
type PresidioConfig struct {
	Endpoint      string  `yaml:"endpoint" env:"PRESIDIO_ENDPOINT"`
	Language      string  `yaml:"language" env:"PRESIDIO_LANGUAGE"`
	MinConfidence float64 `yaml:"minConfidence" env:"PII_MIN_CONFIDENCE"`
}

// EmbeddingConfig configures the embedding-similarity intent strategy.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" env:"EMBEDDING_PROVIDER"` // none, ollama, genai
	Endpoint  string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT"`
	Model     string `yaml:"model" env:"EMBEDDING_MODEL"`
	APIKey    string `yaml:"apiKey" env:"EMBEDDING_API_KEY"`
	CachePath string `yaml:"cachePath" env:"EMBEDDING_CACHE_PATH"`
	// CacheSize caps the number of cached exemplar vectors.
	CacheSize int `yaml:"cacheSize" env:"EMBEDDING_CACHE_SIZE"`
}

// IntentConfig configures the generative intent strategy.
type IntentConfig struct {
	UseLLM     bool   `yaml:"useLlm" env:"USE_LLM_INTENT"`
	Provider   string `yaml:"provider" env:"INTENT_PROVIDER"` // ollama, openai, azure, anthropic
	Model      string `yaml:"model" env:"INTENT_MODEL"`
	APIBase    string `yaml:"apiBase" env:"OLLAMA_API_BASE"`
	APIKey     string `yaml:"apiKey" env:"INTENT_API_KEY"`
	APIVersion string `yaml:"apiVersion" env:"INTENT_API_VERSION"`
}

// Load returns config with defaults overridden by the file at path and env vars.
// An empty path reads DefaultPath.
func Load(path string) *Config {
	if path == "" {
		path = DefaultPath
	}
	cfg := defaults()
	loadFile(cfg, path)
	loadEnv(cfg)
	cfg.normalize()
	return cfg
}

func defaults() *Config {
	return &Config{
		BindAddress:         "127.0.0.1",
		Port:                8000,
		LogLevel:            "info",
		RequestTimeout:      60 * time.Second,
		MaxUploadBytes:      10 << 20,
		RateLimitRPS:        20,
		RateLimitBurst:      40,
		EngineMaxConcurrent: 4,
		Audit: AuditConfig{
			Backend: "none",
			Path:    "redactor-audit.db",
		},
		NER: NERConfig{Enabled: true},
		Presidio: PresidioConfig{
			Language:      "en",
			MinConfidence: 0.7,
		},
		Embedding: EmbeddingConfig{
			Provider:  "none",
			Endpoint:  "http://localhost:11434",
			Model:     "nomic-embed-text",
			CachePath: "redactor-vectors.db",
			CacheSize: 1024,
		},
		Intent: IntentConfig{
			UseLLM:   true,
			Provider: "ollama",
			Model:    "gemma",
			APIBase:  "http://localhost:11434",
		},
	}
}

func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return // file is optional
	}
	// Decode into a copy so a malformed file leaves the defaults intact.
	next := *cfg
	if err := yaml.Unmarshal(data, &next); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
		return
	}
	*cfg = next
	log.Printf("[CONFIG] Loaded %s", path)
}

func loadEnv(cfg *Config) {
	if err := env.Parse(cfg); err != nil {
		log.Printf("[CONFIG] Warning: ignoring invalid environment values: %v", err)
	}

	// An Azure key switches the generative strategy to Azure OpenAI.
	if key := os.Getenv("AZURE_OPENAI_API_KEY"); key != "" {
		cfg.Intent.UseLLM = true
		cfg.Intent.Provider = "azure"
		cfg.Intent.APIKey = key
		cfg.Intent.APIBase = os.Getenv("AZURE_OPENAI_ENDPOINT")
		cfg.Intent.Model = envOr("AZURE_OPENAI_MODEL", "gpt-4")
		cfg.Intent.APIVersion = envOr("AZURE_OPENAI_API_VERSION", "2023-12-01-preview")
	}
}

func (c *Config) normalize() {
	d := defaults()
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.EngineMaxConcurrent <= 0 {
		c.EngineMaxConcurrent = d.EngineMaxConcurrent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.Presidio.MinConfidence <= 0 || c.Presidio.MinConfidence > 1 {
		c.Presidio.MinConfidence = d.Presidio.MinConfidence
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = d.Embedding.CacheSize
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = d.RateLimitBurst
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Watch reloads the file at path whenever it changes and passes the new
// Config to fn. It blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, fn func(*Config)) error {
	if path == "" {
		path = DefaultPath
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck // best-effort close on shutdown

	// Watch the directory: editors often replace the file via rename.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				fn(Load(path))
			}
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[CONFIG] Watch error: %v", werr)
		}
	}
}
