// Package metrics provides lightweight, lock-minimal counters for the
// redaction pipeline.
//
// Counters use sync/atomic so request handling incurs no mutex contention.
// Latency statistics use a single mutex per dimension; they are updated at
// most once per request.
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"pii-redaction-pipeline/internal/entity"
)

// knownDetectors lists the detector names the ensemble can contain. Used to
// pre-populate the failure map in New() so Snapshot() iterates a fixed set.
var knownDetectors = []string{"pattern", "ner", "pii"}

// Metrics holds all runtime counters for a running redactor.
// The zero value is NOT valid for the per-type counters; use New().
type Metrics struct {
	// Request counters
	RequestsTotal    atomic.Int64
	RequestsFailed   atomic.Int64 // pipeline errors
	RequestsTimedOut atomic.Int64 // request budget expired
	RequestsRejected atomic.Int64 // auth, rate limit, bad input, unsupported format

	// Intent outcomes
	IntentSearch    atomic.Int64
	IntentReasoning atomic.Int64
	IntentTies      atomic.Int64

	// ClassifierFallbacks counts votes an optional strategy delegated to the
	// keyword strategy.
	ClassifierFallbacks atomic.Int64

	// Pseudonyms issued by name replacement.
	Replacements atomic.Int64

	// Maps are written only in New(); concurrent reads are safe without a lock.
	entities         map[entity.Type]*atomic.Int64
	detectorFailures map[string]*atomic.Int64

	pipelineMu   sync.Mutex
	pipelineStat latencyStats

	detectMu   sync.Mutex
	detectStat latencyStats

	startTime time.Time
}

// New returns a Metrics with the start time recorded and per-type and
// per-detector maps pre-populated.
func New() *Metrics {
	m := &Metrics{
		startTime:        time.Now(),
		entities:         make(map[entity.Type]*atomic.Int64, len(entity.Priority)+1),
		detectorFailures: make(map[string]*atomic.Int64, len(knownDetectors)),
	}
	for _, t := range append([]entity.Type{entity.Time}, entity.Priority...) {
		m.entities[t] = new(atomic.Int64)
	}
	for _, d := range knownDetectors {
		m.detectorFailures[d] = new(atomic.Int64)
	}
	return m
}

// RecordEntities counts merged entities by type. Unknown types are ignored.
func (m *Metrics) RecordEntities(es []entity.Entity) {
	for _, e := range es {
		if c, ok := m.entities[e.Type]; ok {
			c.Add(1)
		}
	}
}

// RecordDetectorFailure counts one failed detector call. Unknown names are
// ignored.
func (m *Metrics) RecordDetectorFailure(name string) {
	if c, ok := m.detectorFailures[name]; ok {
		c.Add(1)
	}
}

// RecordIntent counts one classification outcome.
func (m *Metrics) RecordIntent(label string, tie bool) {
	switch label {
	case "search":
		m.IntentSearch.Add(1)
	case "reasoning":
		m.IntentReasoning.Add(1)
	}
	if tie {
		m.IntentTies.Add(1)
	}
}

// RecordPipelineLatency records the duration of one full pipeline run.
func (m *Metrics) RecordPipelineLatency(d time.Duration) {
	m.pipelineMu.Lock()
	m.pipelineStat.record(float64(d.Microseconds()) / 1000.0)
	m.pipelineMu.Unlock()
}

// RecordDetectLatency records the duration of one detection fan-out.
func (m *Metrics) RecordDetectLatency(d time.Duration) {
	m.detectMu.Lock()
	m.detectStat.record(float64(d.Microseconds()) / 1000.0)
	m.detectMu.Unlock()
}

// Snapshot returns a point-in-time copy of all metrics, safe for JSON encoding.
func (m *Metrics) Snapshot() Snapshot {
	m.pipelineMu.Lock()
	pipeline := m.pipelineStat.snapshot()
	m.pipelineMu.Unlock()

	m.detectMu.Lock()
	detect := m.detectStat.snapshot()
	m.detectMu.Unlock()

	byType := make(map[string]int64, len(m.entities))
	for t, c := range m.entities {
		if n := c.Load(); n > 0 {
			byType[string(t)] = n
		}
	}
	failures := make(map[string]int64, len(m.detectorFailures))
	for d, c := range m.detectorFailures {
		if n := c.Load(); n > 0 {
			failures[d] = n
		}
	}

	return Snapshot{
		Requests: RequestSnapshot{
			Total:    m.RequestsTotal.Load(),
			Failed:   m.RequestsFailed.Load(),
			TimedOut: m.RequestsTimedOut.Load(),
			Rejected: m.RequestsRejected.Load(),
		},
		Intents: IntentSnapshot{
			Search:    m.IntentSearch.Load(),
			Reasoning: m.IntentReasoning.Load(),
			Ties:      m.IntentTies.Load(),
			Fallbacks: m.ClassifierFallbacks.Load(),
		},
		Entities: EntitySnapshot{
			ByType:           byType,
			Replacements:     m.Replacements.Load(),
			DetectorFailures: failures,
		},
		Latency: LatencyGroup{
			PipelineMs: pipeline,
			DetectMs:   detect,
		},
		UptimeSecs: time.Since(m.startTime).Seconds(),
	}
}

// --- JSON-serialisable snapshot types ---

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Requests   RequestSnapshot `json:"requests"`
	Intents    IntentSnapshot  `json:"intents"`
	Entities   EntitySnapshot  `json:"entities"`
	Latency    LatencyGroup    `json:"latency"`
	UptimeSecs float64         `json:"uptimeSecs"`
}

// RequestSnapshot holds request-level counters.
type RequestSnapshot struct {
	Total    int64 `json:"total"`
	Failed   int64 `json:"failed"`
	TimedOut int64 `json:"timedOut"`
	Rejected int64 `json:"rejected"`
}

// IntentSnapshot holds classification counters.
type IntentSnapshot struct {
	Search    int64 `json:"search"`
	Reasoning int64 `json:"reasoning"`
	Ties      int64 `json:"ties"`
	Fallbacks int64 `json:"classifierFallbacks"`
}

// EntitySnapshot holds detection volume. Maps list only non-zero entries.
type EntitySnapshot struct {
	ByType           map[string]int64 `json:"byType,omitempty"`
	Replacements     int64            `json:"replacements"`
	DetectorFailures map[string]int64 `json:"detectorFailures,omitempty"`
}

// LatencyGroup groups the latency dimensions.
type LatencyGroup struct {
	PipelineMs LatencySnapshot `json:"pipelineMs"`
	DetectMs   LatencySnapshot `json:"detectMs"`
}

// LatencySnapshot is a min/mean/max summary for one latency dimension.
type LatencySnapshot struct {
	Count  int64   `json:"count"`
	MinMs  float64 `json:"minMs"`
	MeanMs float64 `json:"meanMs"`
	MaxMs  float64 `json:"maxMs"`
}

// --- internal accumulator ---

type latencyStats struct {
	count int64
	sum   float64
	min   float64
	max   float64
}

func (s *latencyStats) record(ms float64) {
	s.count++
	s.sum += ms
	if s.count == 1 || ms < s.min {
		s.min = ms
	}
	if ms > s.max {
		s.max = ms
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func (s *latencyStats) snapshot() LatencySnapshot {
	if s.count == 0 {
		return LatencySnapshot{}
	}
	return LatencySnapshot{
		Count:  s.count,
		MinMs:  round2(s.min),
		MeanMs: round2(s.sum / float64(s.count)),
		MaxMs:  round2(s.max),
	}
}
