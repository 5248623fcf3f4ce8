package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrStage matches every StageError via errors.Is.
	ErrStage = errors.New("pipeline stage failed")
	// ErrCoreference is wrapped when the coreference engine fails. There is
	// no fallback: every later stage reads its output.
	ErrCoreference = errors.New("coreference resolution failed")
	// ErrContextReused is returned when a Context that already ran (or
	// failed) is passed to Process again.
	ErrContextReused = errors.New("pipeline context already used")
)

// StageError reports which stage aborted a run and the state the context was
// in at the time. Its message never includes request text.
type StageError struct {
	Stage string
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed in state %s: %v", e.Stage, e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStage) true for any StageError.
func (e *StageError) Is(target error) bool { return target == ErrStage }
