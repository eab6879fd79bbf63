package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/sitereport/internal/extract"
	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/report"
)

// Mode selects how [Orchestrator.Drive] interacts with a human. It is either
// [Atomic] or [Staged].
type Mode interface {
	mode() string
}

// Atomic runs every stage without pausing.
type Atomic struct{}

// Staged pauses after classification and after extraction to let Reviewer
// override the template and edit fields. A nil Reviewer makes Staged behave
// exactly like [Atomic].
type Staged struct {
	Reviewer Reviewer
}

func (Atomic) mode() string { return "atomic" }
func (Staged) mode() string { return "staged" }

// Reviewer is the human in the loop of a staged run.
type Reviewer interface {
	// ReviewTemplate returns the template to extract with. Returning "" or
	// templateID keeps the classifier's choice.
	ReviewTemplate(ctx context.Context, transcript, templateID string) (string, error)

	// ReviewFields returns the edited field map, or nil to keep res.Fields.
	ReviewFields(ctx context.Context, res extract.Result) (map[string]string, error)
}

// RunResult is everything a completed run produced. Document is the outcome.
// The other fields are a diagnostic record of what each stage returned, kept
// for callers that echo them (the /api/pipeline/auto response); Atomic runs
// expose no stage between Begin and Assembled while they execute.
type RunResult struct {
	State      State            `json:"state"`
	Transcript string           `json:"transcript"`
	TemplateID string           `json:"template_id"`
	Extraction extract.Result   `json:"extraction"`
	Normalized NormalizedFields `json:"normalized"`
	Document   report.Document  `json:"document"`
}

// Run drives a whole run in [Atomic] mode.
func (o *Orchestrator) Run(ctx context.Context, in Input) (RunResult, error) {
	return o.Drive(ctx, Atomic{}, in)
}

// Drive runs every stage in order. The clock is read once: the same instant
// is the reference date for normalization and the generation time of the
// document.
func (o *Orchestrator) Drive(ctx context.Context, m Mode, in Input) (RunResult, error) {
	if m == nil {
		m = Atomic{}
	}
	o.metrics.ActiveRuns.Add(ctx, 1)
	defer o.metrics.ActiveRuns.Add(ctx, -1)

	res, err := o.drive(ctx, m, in)
	o.metrics.RecordRun(ctx, m.mode(), runResult(res, err))
	return res, err
}

func (o *Orchestrator) drive(ctx context.Context, m Mode, in Input) (RunResult, error) {
	var reviewer Reviewer
	if s, ok := m.(Staged); ok {
		reviewer = s.Reviewer
	}

	start := time.Now()
	now := o.Now()
	var (
		out RunResult
		err error
	)
	out.State = o.Begin()
	log := observe.Logger(ctx).With("run_id", out.State.RunID, "mode", m.mode())

	if out.Transcript, out.State, err = o.Transcribe(ctx, out.State, in); err != nil {
		return out, err
	}
	if out.TemplateID, out.State, err = o.Classify(ctx, out.State, out.Transcript); err != nil {
		return out, err
	}

	if reviewer != nil {
		id, err := reviewer.ReviewTemplate(ctx, out.Transcript, out.TemplateID)
		if err != nil {
			return out, fmt.Errorf("pipeline: review template: %w", err)
		}
		if id != "" && id != out.TemplateID {
			if !o.reg.Has(id) {
				return out, fmt.Errorf("%w: %q", ErrUnknownTemplate, id)
			}
			log.Info("template overridden by reviewer", "from", out.TemplateID, "to", id)
			out.TemplateID = id
		}
	}

	if out.Extraction, out.State, err = o.Extract(ctx, out.State, out.Transcript, out.TemplateID); err != nil {
		return out, err
	}

	if reviewer != nil {
		edited, err := reviewer.ReviewFields(ctx, out.Extraction)
		if err != nil {
			return out, fmt.Errorf("pipeline: review fields: %w", err)
		}
		if edited != nil {
			out.Extraction.Fields = edited
		}
	}

	if out.Normalized, out.State, err = o.Normalize(ctx, out.State, out.Extraction, now); err != nil {
		return out, err
	}
	if out.Document, out.State, err = o.Assemble(ctx, out.State, out.Normalized, out.Transcript, now); err != nil {
		return out, err
	}

	log.Info("run complete",
		"template", out.TemplateID,
		"needs_review", out.Document.NeedsReview,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return out, nil
}

func runResult(res RunResult, err error) string {
	var te *TranscriptionError
	switch {
	case err == nil && res.Document.NeedsReview:
		return "degraded"
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return "transcription_error"
	default:
		return "error"
	}
}
