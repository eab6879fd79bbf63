// Package extract turns a transcript into the field set of a report template
// by asking a language model and interpreting its reply.
//
// Extraction never fails on account of the model: a transport error (after
// one retry) or an unusable reply yields a degraded [Result] whose fields are
// all empty. The only error returned by [Extractor.Extract] is an unknown
// template ID.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrWong99/sitereport/internal/resilience"
	"github.com/MrWong99/sitereport/internal/template"
	"github.com/MrWong99/sitereport/pkg/provider/llm"
)

// Degradation reasons reported in [Result.DegradedReason].
const (
	ReasonTransport  = "transport"
	ReasonUnparsable = "unparsable"
)

const (
	defaultTemperature  = 0.1
	defaultMaxTokens    = 1000
	defaultRetryBackoff = 500 * time.Millisecond

	// maxAttempts is the initial call plus one retry.
	maxAttempts = 2
)

// Result is the outcome of one extraction.
type Result struct {
	TemplateID string            `json:"template_id"`
	Fields     map[string]string `json:"fields"`
	Degraded   bool              `json:"degraded"`

	// DegradedReason is "", [ReasonTransport] or [ReasonUnparsable].
	DegradedReason string `json:"degraded_reason,omitempty"`

	// Method names the parse step that produced Fields; empty when degraded.
	Method string `json:"method,omitempty"`

	// RawResponse is the model's reply, empty after a transport failure.
	RawResponse string `json:"raw_response"`

	// Attempts is the number of completion calls made.
	Attempts int `json:"attempts"`

	// Err is the last transport error, if any.
	Err error `json:"-"`
}

// Option is a functional option for [New].
type Option func(*Extractor)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(t float64) Option {
	return func(e *Extractor) { e.temperature = t }
}

// WithMaxTokens caps the reply length. Default: 1000.
func WithMaxTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithRetryBackoff sets the pause before the single retry. Default: 500ms.
func WithRetryBackoff(d time.Duration) Option {
	return func(e *Extractor) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// Extractor fills template fields from transcripts. It is safe for concurrent
// use provided the underlying [llm.Provider] is.
type Extractor struct {
	llm         llm.Provider
	reg         *template.Registry
	temperature float64
	maxTokens   int
	backoff     time.Duration
}

// New returns an Extractor that queries p for templates in reg.
func New(p llm.Provider, reg *template.Registry, opts ...Option) *Extractor {
	e := &Extractor{
		llm:         p,
		reg:         reg,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		backoff:     defaultRetryBackoff,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract asks the model for the fields of templateID found in transcript.
func (e *Extractor) Extract(ctx context.Context, transcript, templateID string) (Result, error) {
	def, err := e.reg.Get(templateID)
	if err != nil {
		return Result{}, fmt.Errorf("extract: %w", err)
	}

	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{llm.UserMessage(buildUserPrompt(def, transcript))},
		Temperature:  e.temperature,
		MaxTokens:    e.maxTokens,
		JSONOutput:   true,
	}

	resp, attempts, err := resilience.Retry(ctx, maxAttempts, e.backoff,
		func(ctx context.Context) (*llm.CompletionResponse, error) {
			return e.llm.Complete(ctx, req)
		})
	if err != nil {
		slog.Warn("extraction degraded: completion failed",
			"template", templateID, "attempts", attempts, "err", err)
		return Result{
			TemplateID:     templateID,
			Fields:         def.EmptyFields(),
			Degraded:       true,
			DegradedReason: ReasonTransport,
			Attempts:       attempts,
			Err:            err,
		}, nil
	}

	var raw string
	if resp != nil {
		raw = resp.Content
	}

	switch o := Parse(def, raw).(type) {
	case Parsed:
		return Result{
			TemplateID:  templateID,
			Fields:      o.Fields,
			Method:      o.Method,
			RawResponse: raw,
			Attempts:    attempts,
		}, nil
	case Degraded:
		slog.Warn("extraction degraded: reply not parsable",
			"template", templateID, "reply_len", len(o.Raw))
	}
	return Result{
		TemplateID:     templateID,
		Fields:         def.EmptyFields(),
		Degraded:       true,
		DegradedReason: ReasonUnparsable,
		RawResponse:    raw,
		Attempts:       attempts,
	}, nil
}
