package pipeline

import (
	"time"

	"github.com/google/uuid"

	"pii-redaction-pipeline/internal/entity"
	"pii-redaction-pipeline/internal/intent"
)

// State is a Context's position in the run. Runs move strictly forward;
// only NamesReplaced may be skipped.
type State int

const (
	Created State = iota
	CorefResolved
	IntentClassified
	PIIDetected
	Masked
	NamesReplaced
	Audited
	Complete
	Failed
)

var stateNames = [...]string{
	Created:          "created",
	CorefResolved:    "coreference-resolved",
	IntentClassified: "intent-classified",
	PIIDetected:      "pii-detected",
	Masked:           "masked",
	NamesReplaced:    "name-replaced",
	Audited:          "audited",
	Complete:         "complete",
	Failed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Context is the per-request state threaded through the stages. It is owned
// by one run at a time and must be discarded after Process returns, whether
// or not it succeeded.
type Context struct {
	ID       string
	Resolved string // coreference-resolved text
	// Processed is the working buffer each transformation stage rewrites.
	Processed string
	Decision  intent.Decision
	Entities  []entity.Entity
	// Failed lists detectors that errored during this run.
	Failed   []string
	Masked   int
	Mapping  *Mapping
	Metadata map[string]any

	original string
	state    State
	history  []State
	started  time.Time
}

// NewContext returns a Context in state Created.
func NewContext(text string) *Context {
	return &Context{
		ID:       uuid.NewString(),
		original: text,
		Mapping:  NewMapping(),
		Metadata: make(map[string]any),
		state:    Created,
		history:  []State{Created},
		started:  time.Now(),
	}
}

// Original returns the input text. It never changes.
func (c *Context) Original() string { return c.original }

// Intent returns the classified intent, or intent.Unset before classification.
func (c *Context) Intent() intent.Intent { return c.Decision.Intent }

// State returns the current state.
func (c *Context) State() State { return c.state }

// History returns every state the context has entered, in order.
func (c *Context) History() []State { return append([]State(nil), c.history...) }

func (c *Context) advance(s State) {
	c.state = s
	c.history = append(c.history, s)
}

// Result is the caller-facing outcome of a successful run.
type Result struct {
	Text    string        `json:"anonymized_text"`
	Intent  intent.Intent `json:"intent"`
	Mapping *Mapping      `json:"mapping"`
}

// Result returns the run's output. It is only meaningful in state Complete.
func (c *Context) Result() Result {
	return Result{Text: c.Processed, Intent: c.Intent(), Mapping: c.Mapping}
}
