package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when a staged call does not match the
	// stage of the state it is given.
	ErrInvalidTransition = errors.New("pipeline: invalid stage transition")

	// ErrUnknownTemplate is returned when a template ID supplied by a caller
	// or reviewer is not in the registry.
	ErrUnknownTemplate = errors.New("pipeline: unknown template")
)

// TranscriptionError aborts a run: without a transcript there is nothing to
// classify or extract.
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("pipeline: transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// ExportError reports a failed export. The text report it was produced from
// is still valid.
type ExportError struct {
	Format string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("pipeline: export %s: %v", e.Format, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }
