package pipeline

import (
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Stage is the position of a run in the pipeline.
type Stage int

const (
	StageRecorded Stage = iota
	StageTranscribed
	StageClassified
	StageExtracted
	StageNormalized
	StageAssembled
)

var stageNames = [...]string{
	StageRecorded:    "recorded",
	StageTranscribed: "transcribed",
	StageClassified:  "classified",
	StageExtracted:   "extracted",
	StageNormalized:  "normalized",
	StageAssembled:   "assembled",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// MarshalText implements [encoding.TextMarshaler].
func (s Stage) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(stageNames) {
		return nil, fmt.Errorf("pipeline: invalid stage %d", int(s))
	}
	return []byte(stageNames[s]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (s *Stage) UnmarshalText(b []byte) error {
	for i, n := range stageNames {
		if n == string(b) {
			*s = Stage(i)
			return nil
		}
	}
	return fmt.Errorf("pipeline: unknown stage %q", b)
}

// State is the caller-held progress of one run. The orchestrator keeps no
// per-run state; Staged callers pass State back on every call.
type State struct {
	// RunID correlates logs and spans of one run.
	RunID string `json:"run_id"`
	Stage Stage  `json:"stage"`
}

func newRunID() string {
	return ulid.Make().String()
}

// expect checks that st is at stage want.
func expect(st State, want Stage) error {
	if st.Stage != want {
		return fmt.Errorf("%w: at %s, need %s", ErrInvalidTransition, st.Stage, want)
	}
	return nil
}

func (st State) next() State {
	st.Stage++
	return st
}

// Resume returns a State positioned at stage, for callers that carry a run
// across requests without keeping the State. An empty runID starts a new run.
func (o *Orchestrator) Resume(runID string, stage Stage) State {
	if runID == "" {
		runID = newRunID()
	}
	return State{RunID: runID, Stage: stage}
}
