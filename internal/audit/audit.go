// Package audit persists per-request summaries of pipeline runs.
//
// A Record carries counts, types, and timings only. Request text, entity
// values, and pseudonym mappings are never written to a Store.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Record summarises one pipeline run.
type Record struct {
	ID           string         `json:"id"`
	Time         time.Time      `json:"time"`
	InputRef     string         `json:"inputRef"` // stable alias of the input, for spotting repeats
	Intent       string         `json:"intent"`
	PIICount     int            `json:"piiCount"`
	TypeCounts   map[string]int `json:"typeCounts"`
	Masked       int            `json:"masked"`
	Replacements int            `json:"replacements"`
	Failed       []string       `json:"failedDetectors,omitempty"`
	DurationMs   int64          `json:"durationMs"`
}

// Store is a persistent audit sink. All implementations must be safe for
// concurrent use.
type Store interface {
	Write(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open returns the Store for backend: "none" (or empty), "bbolt", or "sqlite".
func Open(backend, path string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", "none":
		return Nop{}, nil
	case "bbolt", "bolt":
		return OpenBolt(path)
	case "sqlite":
		return OpenSQLite(path)
	}
	return nil, fmt.Errorf("audit: unknown backend %q", backend)
}

// Nop discards records.
type Nop struct{}

func (Nop) Write(context.Context, Record) error { return nil }

func (Nop) Recent(context.Context, int) ([]Record, error) { return nil, nil }

func (Nop) Close() error { return nil }
