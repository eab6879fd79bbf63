// Package pipeline drives a field memo from audio to an assembled report.
//
// A run moves through six stages: recorded, transcribed, classified,
// extracted, normalized and assembled. The [Orchestrator] exposes one method
// per transition for human-in-the-loop callers, who keep the [State] between
// calls, and [Orchestrator.Drive] for running the whole chain in one call.
// Both paths share the same methods, so they produce identical documents for
// identical inputs and clock.
//
// Only transcription failures abort a run. Extraction failures and timeouts
// degrade to empty fields marked for review.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/MrWong99/sitereport/internal/datenorm"
	"github.com/MrWong99/sitereport/internal/export"
	"github.com/MrWong99/sitereport/internal/extract"
	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/report"
	"github.com/MrWong99/sitereport/internal/template"
	"github.com/MrWong99/sitereport/pkg/provider/stt"
)

const (
	defaultTranscriptionTimeout = 60 * time.Second
	defaultExtractionTimeout    = 30 * time.Second
	defaultLanguage             = "fr"

	// keywordBoost is the weight given to template keywords as recognition
	// hints for the transcriber.
	keywordBoost = 1.5
)

// Input is the material a run starts from. A non-blank Transcript skips
// speech recognition.
type Input struct {
	Audio      []byte
	Filename   string
	Language   string
	Transcript string
}

// NormalizedFields is an extraction result after human edits have been
// reconciled with the schema and dates and times have been canonicalised.
type NormalizedFields struct {
	TemplateID string            `json:"template_id"`
	Fields     map[string]string `json:"fields"`
	Degraded   bool              `json:"degraded"`

	// Dropped lists keys that were not part of the schema, sorted.
	Dropped []string `json:"dropped,omitempty"`
}

// Config holds the collaborators of an [Orchestrator].
type Config struct {
	Registry  *template.Registry
	STT       stt.Provider
	Extractor *extract.Extractor

	// Exporters defaults to [export.Default].
	Exporters *export.Set

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// STTName and LLMName label provider metrics.
	STTName string
	LLMName string

	// Language is passed to the transcriber. Default: "fr".
	Language string

	// TranscriptionTimeout and ExtractionTimeout bound each stage.
	// Defaults: 60s and 30s.
	TranscriptionTimeout time.Duration
	ExtractionTimeout    time.Duration

	// Location is the time zone reference dates and generation times are
	// expressed in. Default: time.Local.
	Location *time.Location

	// Now is the clock. Default: time.Now.
	Now func() time.Time
}

// Orchestrator runs the pipeline. It holds no per-run state and is safe for
// concurrent use.
type Orchestrator struct {
	reg        *template.Registry
	classifier *template.Classifier
	stt        stt.Provider
	extractor  *extract.Extractor
	assembler  *report.Assembler
	exporters  *export.Set
	metrics    *observe.Metrics
	sttName    string
	llmName    string
	language   string
	sttTimeout time.Duration
	extTimeout time.Duration
	loc        *time.Location
	now        func() time.Time
	hints      []stt.KeywordBoost
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	var errs []error
	if cfg.Registry == nil {
		errs = append(errs, errors.New("registry is required"))
	}
	if cfg.STT == nil {
		errs = append(errs, errors.New("stt provider is required"))
	}
	if cfg.Extractor == nil {
		errs = append(errs, errors.New("extractor is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	o := &Orchestrator{
		reg:        cfg.Registry,
		classifier: template.NewClassifier(cfg.Registry),
		stt:        cfg.STT,
		extractor:  cfg.Extractor,
		assembler:  report.NewAssembler(cfg.Registry),
		exporters:  cfg.Exporters,
		metrics:    cfg.Metrics,
		sttName:    orDefault(cfg.STTName, "stt"),
		llmName:    orDefault(cfg.LLMName, "llm"),
		language:   orDefault(cfg.Language, defaultLanguage),
		sttTimeout: cfg.TranscriptionTimeout,
		extTimeout: cfg.ExtractionTimeout,
		loc:        cfg.Location,
		now:        cfg.Now,
		hints:      keywordHints(cfg.Registry),
	}
	if o.exporters == nil {
		o.exporters = export.Default()
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.sttTimeout <= 0 {
		o.sttTimeout = defaultTranscriptionTimeout
	}
	if o.extTimeout <= 0 {
		o.extTimeout = defaultExtractionTimeout
	}
	if o.loc == nil {
		o.loc = time.Local
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// keywordHints collects every template keyword once, in catalog order.
func keywordHints(reg *template.Registry) []stt.KeywordBoost {
	var hints []stt.KeywordBoost
	seen := map[string]bool{}
	for _, def := range reg.All() {
		for _, k := range def.Keywords {
			if !seen[k] {
				seen[k] = true
				hints = append(hints, stt.KeywordBoost{Keyword: k, Boost: keywordBoost})
			}
		}
	}
	return hints
}

// Registry returns the template registry the orchestrator was built with.
func (o *Orchestrator) Registry() *template.Registry { return o.reg }

// Now returns the current time in the configured location.
func (o *Orchestrator) Now() time.Time { return o.now().In(o.loc) }

// Begin starts a new run.
func (o *Orchestrator) Begin() State {
	return State{RunID: newRunID(), Stage: StageRecorded}
}

// Transcribe turns the input audio into text, or passes a typed transcript
// through. Failures and timeouts return a [*TranscriptionError].
func (o *Orchestrator) Transcribe(ctx context.Context, st State, in Input) (string, State, error) {
	if err := expect(st, StageRecorded); err != nil {
		return "", st, err
	}
	if t := strings.TrimSpace(in.Transcript); t != "" {
		return t, st.next(), nil
	}
	if len(in.Audio) == 0 {
		return "", st, &TranscriptionError{Err: stt.ErrEmptyAudio}
	}

	ctx, span := observe.StartStage(ctx, st.RunID, StageTranscribed.String())
	defer span.End()
	log := observe.Logger(ctx).With("run_id", st.RunID)

	ctx, cancel := context.WithTimeout(ctx, o.sttTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.stt.Transcribe(ctx, stt.Request{
		Audio:    in.Audio,
		Filename: in.Filename,
		Language: orDefault(in.Language, o.language),
		Keywords: o.hints,
	})
	o.metrics.RecordStage(ctx, StageTranscribed.String(), time.Since(start))
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.sttName, "stt", "error")
		o.metrics.RecordProviderError(ctx, o.sttName, "stt")
		span.RecordError(err)
		log.Error("transcription failed", "err", err)
		return "", st, &TranscriptionError{Err: err}
	}
	o.metrics.RecordProviderRequest(ctx, o.sttName, "stt", "ok")

	text := strings.TrimSpace(res.Text)
	log.Info("transcribed", "chars", len(text), "audio_bytes", len(in.Audio))
	return text, st.next(), nil
}

// Classify picks the template for transcript.
func (o *Orchestrator) Classify(ctx context.Context, st State, transcript string) (string, State, error) {
	if err := expect(st, StageTranscribed); err != nil {
		return "", st, err
	}
	_, span := observe.StartStage(ctx, st.RunID, StageClassified.String())
	defer span.End()

	id := o.classifier.Classify(transcript)
	observe.Logger(ctx).Debug("classified", "run_id", st.RunID, "template", id)
	return id, st.next(), nil
}

// Reclassify moves a run back to the transcribed stage so another template
// can be chosen. It is valid from classified onwards.
func (o *Orchestrator) Reclassify(st State) (State, error) {
	if st.Stage < StageClassified || st.Stage > StageAssembled {
		return st, fmt.Errorf("%w: cannot reclassify at %s", ErrInvalidTransition, st.Stage)
	}
	st.Stage = StageTranscribed
	return st, nil
}

// Extract fills the fields of templateID from transcript. Model failures
// never fail the call; they yield a degraded result.
func (o *Orchestrator) Extract(ctx context.Context, st State, transcript, templateID string) (extract.Result, State, error) {
	if err := expect(st, StageClassified); err != nil {
		return extract.Result{}, st, err
	}
	if !o.reg.Has(templateID) {
		return extract.Result{}, st, fmt.Errorf("%w: %q", ErrUnknownTemplate, templateID)
	}

	ctx, span := observe.StartStage(ctx, st.RunID, StageExtracted.String())
	defer span.End()

	ectx, cancel := context.WithTimeout(ctx, o.extTimeout)
	defer cancel()

	start := time.Now()
	res, err := o.extractor.Extract(ectx, transcript, templateID)
	o.metrics.RecordStage(ctx, StageExtracted.String(), time.Since(start))
	if err != nil {
		return extract.Result{}, st, fmt.Errorf("%w: %w", ErrUnknownTemplate, err)
	}

	for i := range res.Attempts {
		status := "ok"
		if res.DegradedReason == extract.ReasonTransport || i < res.Attempts-1 {
			status = "error"
			o.metrics.RecordProviderError(ctx, o.llmName, "llm")
		}
		o.metrics.RecordProviderRequest(ctx, o.llmName, "llm", status)
	}
	o.metrics.RecordExtraction(ctx, templateID, res.Method, res.Degraded, res.DegradedReason)
	if res.Err != nil {
		span.RecordError(res.Err)
	}

	observe.Logger(ctx).Info("extracted",
		"run_id", st.RunID,
		"template", templateID,
		"method", res.Method,
		"degraded", res.Degraded,
		"attempts", res.Attempts)
	return res, st.next(), nil
}

// Normalize reconciles res with its schema and canonicalises dates and times
// against ref. Keys a reviewer added that are not in the schema are dropped
// and reported; missing schema keys are added empty.
func (o *Orchestrator) Normalize(ctx context.Context, st State, res extract.Result, ref time.Time) (NormalizedFields, State, error) {
	if err := expect(st, StageExtracted); err != nil {
		return NormalizedFields{}, st, err
	}
	def, err := o.reg.Get(res.TemplateID)
	if err != nil {
		return NormalizedFields{}, st, fmt.Errorf("%w: %q", ErrUnknownTemplate, res.TemplateID)
	}

	fields := def.EmptyFields()
	var dropped []string
	for k, v := range res.Fields {
		if !def.HasField(k) {
			dropped = append(dropped, k)
			continue
		}
		fields[k] = strings.TrimSpace(v)
	}
	if len(dropped) > 0 {
		slices.Sort(dropped)
		observe.Logger(ctx).Warn("dropping fields not in template",
			"run_id", st.RunID, "template", def.ID, "fields", dropped)
	}

	fields = datenorm.Normalize(fields, def.FieldsOfKind(template.KindDate), ref)
	fields = datenorm.NormalizeTimes(fields, def.FieldsOfKind(template.KindTime), ref)

	return NormalizedFields{
		TemplateID: def.ID,
		Fields:     fields,
		Degraded:   res.Degraded,
		Dropped:    dropped,
	}, st.next(), nil
}

// Assemble builds the report document.
func (o *Orchestrator) Assemble(ctx context.Context, st State, nf NormalizedFields, transcript string, generatedAt time.Time) (report.Document, State, error) {
	if err := expect(st, StageNormalized); err != nil {
		return report.Document{}, st, err
	}
	_, span := observe.StartStage(ctx, st.RunID, StageAssembled.String())
	defer span.End()

	doc, err := o.assembler.Assemble(nf.TemplateID, nf.Fields, nf.Degraded, transcript, generatedAt)
	if err != nil {
		return report.Document{}, st, err
	}
	return doc, st.next(), nil
}

// Export renders doc in format. Failures return an [*ExportError].
func (o *Orchestrator) Export(ctx context.Context, doc report.Document, format string) (export.Artifact, error) {
	e, err := o.exporters.Get(format)
	if err != nil {
		o.metrics.RecordExport(ctx, format, "unknown")
		return export.Artifact{}, &ExportError{Format: format, Err: err}
	}
	art, err := e.Render(ctx, doc)
	if err != nil {
		o.metrics.RecordExport(ctx, e.Format(), "error")
		slog.Warn("export failed", "format", e.Format(), "template", doc.TemplateID, "err", err)
		return export.Artifact{}, &ExportError{Format: e.Format(), Err: err}
	}
	o.metrics.RecordExport(ctx, e.Format(), "ok")
	return art, nil
}

// ExportFormats lists the available export formats.
func (o *Orchestrator) ExportFormats() []string { return o.exporters.Formats() }
