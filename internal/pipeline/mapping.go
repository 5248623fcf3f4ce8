package pipeline

import (
	"bytes"
	"encoding/json"
)

// Mapping is an insertion-ordered original -> replacement ledger. The first
// value set for a key wins. It is not safe for concurrent use; a Mapping
// belongs to one request.
type Mapping struct {
	keys []string
	vals map[string]string
}

// NewMapping returns an empty Mapping.
func NewMapping() *Mapping {
	return &Mapping{vals: make(map[string]string)}
}

// Set records k -> v unless k is already present. It reports whether the
// pair was added.
func (m *Mapping) Set(k, v string) bool {
	if _, ok := m.vals[k]; ok {
		return false
	}
	if m.vals == nil {
		m.vals = make(map[string]string)
	}
	m.keys = append(m.keys, k)
	m.vals[k] = v
	return true
}

// Get returns the replacement for k.
func (m *Mapping) Get(k string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.vals[k]
	return v, ok
}

// Len returns the number of pairs.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the originals in insertion order.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Map returns an unordered copy.
func (m *Mapping) Map() map[string]string {
	out := make(map[string]string, m.Len())
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out[k] = m.vals[k]
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (m *Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if m != nil {
		for i, k := range m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := json.Marshal(m.vals[k])
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
