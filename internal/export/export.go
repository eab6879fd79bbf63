// Package export renders an assembled report into a downloadable artifact:
// plain text, Word (.docx) or PDF.
//
// Exporters are stateless and safe for concurrent use.
package export

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/sitereport/internal/report"
)

// Formats understood by [New].
const (
	FormatText = "txt"
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
)

// ErrUnknownFormat is returned for a format with no registered exporter.
var ErrUnknownFormat = errors.New("export: unknown format")

// Artifact is a rendered document ready to be written or served.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exporter renders a report into one format.
type Exporter interface {
	// Format returns the format key, which is also the file extension.
	Format() string

	// Render produces the artifact for doc.
	Render(ctx context.Context, doc report.Document) (Artifact, error)
}

// Set is a read-only collection of exporters keyed by format.
type Set struct {
	byFormat map[string]Exporter
}

// NewSet indexes exps by format. A later exporter replaces an earlier one of
// the same format.
func NewSet(exps ...Exporter) *Set {
	s := &Set{byFormat: make(map[string]Exporter, len(exps))}
	for _, e := range exps {
		s.byFormat[e.Format()] = e
	}
	return s
}

// Default returns a Set with the text, docx and pdf exporters.
func Default() *Set {
	return NewSet(Text{}, DOCX{}, PDF{})
}

// New returns the built-in exporter for format.
func New(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case FormatText, "text":
		return Text{}, nil
	case FormatDOCX:
		return DOCX{}, nil
	case FormatPDF:
		return PDF{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Get returns the exporter for format.
func (s *Set) Get(format string) (Exporter, error) {
	e, ok := s.byFormat[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return e, nil
}

// Formats lists the registered formats in sorted order.
func (s *Set) Formats() []string {
	out := make([]string, 0, len(s.byFormat))
	for f := range s.byFormat {
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

// Filename returns rapport_<template>_<dd-mm-yyyy>.<ext> for doc.
func Filename(doc report.Document, ext string) string {
	return fmt.Sprintf("rapport_%s_%s.%s", doc.TemplateID, doc.GeneratedAt.Format("02-01-2006"), ext)
}
