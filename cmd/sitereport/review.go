package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/MrWong99/sitereport/internal/extract"
	"github.com/MrWong99/sitereport/internal/pipeline"
	"github.com/MrWong99/sitereport/internal/template"
)

// promptReviewer is a line-oriented [pipeline.Reviewer] for the terminal.
type promptReviewer struct {
	in  *bufio.Scanner
	out io.Writer
	reg *template.Registry
}

var _ pipeline.Reviewer = (*promptReviewer)(nil)

func newPromptReviewer(in io.Reader, out io.Writer, reg *template.Registry) *promptReviewer {
	return &promptReviewer{in: bufio.NewScanner(in), out: out, reg: reg}
}

// readLine returns the next trimmed line. End of input reads as an empty
// line so an exhausted reader accepts every default.
func (r *promptReviewer) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !r.in.Scan() {
		return "", r.in.Err()
	}
	return strings.TrimSpace(r.in.Text()), nil
}

func (r *promptReviewer) ReviewTemplate(ctx context.Context, transcript, templateID string) (string, error) {
	fmt.Fprintf(r.out, "\nTranscript:\n  %s\n\nTemplates:\n", transcript)
	for _, d := range r.reg.All() {
		mark := " "
		if d.ID == templateID {
			mark = "*"
		}
		fmt.Fprintf(r.out, " %s %-20s %s\n", mark, d.ID, d.Label)
	}
	for {
		fmt.Fprintf(r.out, "Template [%s]: ", templateID)
		line, err := r.readLine(ctx)
		if err != nil {
			return "", err
		}
		if line == "" || r.reg.Has(line) {
			return line, nil
		}
		fmt.Fprintf(r.out, "unknown template %q\n", line)
	}
}

func (r *promptReviewer) ReviewFields(ctx context.Context, res extract.Result) (map[string]string, error) {
	def, err := r.reg.Get(res.TemplateID)
	if err != nil {
		return nil, err
	}
	if res.Degraded {
		fmt.Fprintf(r.out, "\nExtraction degraded (%s); fill the fields by hand.\n", res.DegradedReason)
	}
	fmt.Fprintln(r.out, "\nFields:")
	for _, name := range def.FieldNames() {
		fmt.Fprintf(r.out, "  %s: %s\n", name, res.Fields[name])
	}
	fmt.Fprintln(r.out, "Edit with Name=value, empty line when done.")

	var edited map[string]string
	for {
		fmt.Fprint(r.out, "> ")
		line, err := r.readLine(ctx)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return edited, nil
		}
		name, value, ok := strings.Cut(line, "=")
		name = strings.TrimSpace(name)
		if !ok || !hasField(def, name) {
			fmt.Fprintf(r.out, "expected one of %s as Name=value\n", strings.Join(def.FieldNames(), ", "))
			continue
		}
		if edited == nil {
			edited = maps.Clone(res.Fields)
			if edited == nil {
				edited = make(map[string]string, len(def.Fields))
			}
		}
		edited[name] = strings.TrimSpace(value)
	}
}

func hasField(def template.Definition, name string) bool {
	for _, f := range def.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}
