package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"pii-redaction-pipeline/internal/entity"
)

func TestNew_StartTimeSet(t *testing.T) {
	before := time.Now()
	m := New()
	after := time.Now()

	if m.startTime.Before(before) || m.startTime.After(after) {
		t.Errorf("startTime %v not in expected range [%v, %v]", m.startTime, before, after)
	}
}

func TestZeroValue_SnapshotSafe(t *testing.T) {
	var m Metrics
	m.RecordEntities([]entity.Entity{{Type: entity.Email, Value: "x"}})
	m.RecordDetectorFailure("ner")
	s := m.Snapshot()
	if s.Requests.Total != 0 {
		t.Errorf("expected 0 total requests, got %d", s.Requests.Total)
	}
	if len(s.Entities.ByType) != 0 {
		t.Errorf("zero value should not count entities, got %v", s.Entities.ByType)
	}
}

func TestRequestCounters(t *testing.T) {
	m := New()
	m.RequestsTotal.Add(10)
	m.RequestsFailed.Add(2)
	m.RequestsTimedOut.Add(1)
	m.RequestsRejected.Add(3)

	s := m.Snapshot()
	if s.Requests.Total != 10 {
		t.Errorf("Total: got %d, want 10", s.Requests.Total)
	}
	if s.Requests.Failed != 2 {
		t.Errorf("Failed: got %d, want 2", s.Requests.Failed)
	}
	if s.Requests.TimedOut != 1 {
		t.Errorf("TimedOut: got %d, want 1", s.Requests.TimedOut)
	}
	if s.Requests.Rejected != 3 {
		t.Errorf("Rejected: got %d, want 3", s.Requests.Rejected)
	}
}

func TestRecordIntent(t *testing.T) {
	m := New()
	m.RecordIntent("search", false)
	m.RecordIntent("search", true)
	m.RecordIntent("reasoning", false)
	m.RecordIntent("neutral", false)
	m.ClassifierFallbacks.Add(4)

	s := m.Snapshot()
	if s.Intents.Search != 2 || s.Intents.Reasoning != 1 || s.Intents.Ties != 1 {
		t.Errorf("intents: got %+v", s.Intents)
	}
	if s.Intents.Fallbacks != 4 {
		t.Errorf("Fallbacks: got %d, want 4", s.Intents.Fallbacks)
	}
}

func TestRecordEntities(t *testing.T) {
	m := New()
	m.RecordEntities([]entity.Entity{
		{Type: entity.Email, Value: "a"},
		{Type: entity.Email, Value: "b"},
		{Type: entity.Time, Value: "noon"},
		{Type: "EVENT", Value: "x"},
	})

	s := m.Snapshot()
	if s.Entities.ByType["EMAIL"] != 2 {
		t.Errorf("EMAIL: got %d, want 2", s.Entities.ByType["EMAIL"])
	}
	if s.Entities.ByType["TIME"] != 1 {
		t.Errorf("TIME: got %d, want 1", s.Entities.ByType["TIME"])
	}
	if _, present := s.Entities.ByType["EVENT"]; present {
		t.Error("unknown type should not appear in snapshot")
	}
	if _, present := s.Entities.ByType["SSN"]; present {
		t.Error("SSN should be absent from snapshot when count is 0")
	}
}

func TestRecordDetectorFailure(t *testing.T) {
	m := New()
	m.RecordDetectorFailure("pii")
	m.RecordDetectorFailure("pii")
	m.RecordDetectorFailure("spacy")

	s := m.Snapshot()
	if s.Entities.DetectorFailures["pii"] != 2 {
		t.Errorf("pii failures: got %d, want 2", s.Entities.DetectorFailures["pii"])
	}
	if len(s.Entities.DetectorFailures) != 1 {
		t.Errorf("unexpected failure entries: %v", s.Entities.DetectorFailures)
	}
}

func TestRecordPipelineLatency_MinMaxMean(t *testing.T) {
	m := New()
	m.RecordPipelineLatency(50 * time.Millisecond)
	m.RecordPipelineLatency(150 * time.Millisecond)
	m.RecordPipelineLatency(100 * time.Millisecond)

	ls := m.Snapshot().Latency.PipelineMs
	if ls.Count != 3 {
		t.Errorf("Count: got %d, want 3", ls.Count)
	}
	if ls.MinMs != 50 {
		t.Errorf("MinMs: got %f, want 50", ls.MinMs)
	}
	if ls.MaxMs != 150 {
		t.Errorf("MaxMs: got %f, want 150", ls.MaxMs)
	}
	if ls.MeanMs != 100 {
		t.Errorf("MeanMs: got %f, want 100", ls.MeanMs)
	}
}

func TestRecordDetectLatency(t *testing.T) {
	m := New()
	m.RecordDetectLatency(20 * time.Millisecond)

	s := m.Snapshot()
	if s.Latency.DetectMs.Count != 1 {
		t.Errorf("Count: got %d, want 1", s.Latency.DetectMs.Count)
	}
	if s.Latency.PipelineMs.Count != 0 {
		t.Errorf("pipeline latency should be empty")
	}
}

func TestSnapshot_UptimePositive(t *testing.T) {
	m := New()
	time.Sleep(5 * time.Millisecond)
	if s := m.Snapshot(); s.UptimeSecs <= 0 {
		t.Errorf("UptimeSecs should be positive, got %f", s.UptimeSecs)
	}
}

func TestSnapshot_JSONShape(t *testing.T) {
	m := New()
	m.Replacements.Add(2)
	data, err := json.Marshal(m.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{"requests", "intents", "entities", "latency", "uptimeSecs"} {
		if _, ok := got[k]; !ok {
			t.Errorf("missing key %q in %s", k, data)
		}
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		input float64
		want  float64
	}{
		{1.236, 1.24},
		{1.234, 1.23},
		{100.0, 100.0},
		{0.0, 0.0},
	}
	for _, c := range cases {
		if got := round2(c.input); got != c.want {
			t.Errorf("round2(%f) = %f, want %f", c.input, got, c.want)
		}
	}
}

func TestLatencyStats_Empty(t *testing.T) {
	var s latencyStats
	snap := s.snapshot()
	if snap.Count != 0 || snap.MinMs != 0 || snap.MaxMs != 0 || snap.MeanMs != 0 {
		t.Errorf("empty stats snapshot should be zero, got %+v", snap)
	}
}
