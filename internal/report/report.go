// Package report assembles normalized field values into the final report
// document and renders its plain-text form.
//
// Assembly is deterministic: the same inputs and the same generation time
// always produce byte-identical RenderedText.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrWong99/sitereport/internal/template"
)

// Placeholder replaces empty field values in the document.
const Placeholder = "Non renseigné"

// ErrAssemblyPrecondition reports inputs that normalization should have
// ruled out: an unknown template, or field keys that do not match the
// schema. It signals a bug in the caller, not a user error.
var ErrAssemblyPrecondition = errors.New("report: assembly precondition violated")

// Field is one labelled value of a report, in schema order.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Document is an assembled report.
type Document struct {
	TemplateID  string    `json:"template_id"`
	Title       string    `json:"title"`
	GeneratedAt time.Time `json:"generated_at"`
	Fields      []Field   `json:"fields"`
	Transcript  string    `json:"transcript"`
	// NeedsReview is set when extraction degraded and the values were not
	// produced by the model.
	NeedsReview  bool   `json:"needs_review"`
	RenderedText string `json:"rendered_text"`
}

// Value returns the value for label, or "" when absent.
func (d Document) Value(label string) string {
	for _, f := range d.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

// Assembler builds documents against a template registry.
type Assembler struct {
	reg *template.Registry
}

// NewAssembler returns an Assembler for reg.
func NewAssembler(reg *template.Registry) *Assembler {
	return &Assembler{reg: reg}
}

// Assemble pairs every schema field of templateID with its value from
// fields, in declared order, substituting [Placeholder] for empty values.
//
// fields must hold exactly the schema keys; anything else returns an error
// wrapping [ErrAssemblyPrecondition].
func (a *Assembler) Assemble(templateID string, fields map[string]string, needsReview bool, transcript string, generatedAt time.Time) (Document, error) {
	def, err := a.reg.Get(templateID)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrAssemblyPrecondition, err)
	}
	if err := checkKeys(def, fields); err != nil {
		return Document{}, err
	}

	doc := Document{
		TemplateID:  def.ID,
		Title:       def.Label,
		GeneratedAt: generatedAt,
		Fields:      make([]Field, 0, len(def.Fields)),
		Transcript:  transcript,
		NeedsReview: needsReview,
	}
	for _, f := range def.Fields {
		v := strings.TrimSpace(fields[f.Name])
		if v == "" {
			v = Placeholder
		}
		doc.Fields = append(doc.Fields, Field{Label: f.Name, Value: v})
	}
	doc.RenderedText = Render(doc)
	return doc, nil
}

func checkKeys(def template.Definition, fields map[string]string) error {
	var errs []error
	for k := range fields {
		if !def.HasField(k) {
			errs = append(errs, fmt.Errorf("unknown field %q", k))
		}
	}
	for _, f := range def.Fields {
		if _, ok := fields[f.Name]; !ok {
			errs = append(errs, fmt.Errorf("missing field %q", f.Name))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: template %s: %w", ErrAssemblyPrecondition, def.ID, errors.Join(errs...))
}
