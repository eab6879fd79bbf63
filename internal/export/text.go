package export

import (
	"context"

	"github.com/MrWong99/sitereport/internal/report"
)

// Text exports the rendered plain-text report as UTF-8.
type Text struct{}

var _ Exporter = Text{}

// Format implements [Exporter].
func (Text) Format() string { return FormatText }

// Render implements [Exporter]. RenderedText is recomputed when empty.
func (Text) Render(_ context.Context, doc report.Document) (Artifact, error) {
	text := doc.RenderedText
	if text == "" {
		text = report.Render(doc)
	}
	return Artifact{
		Filename:    Filename(doc, FormatText),
		ContentType: "text/plain; charset=utf-8",
		Data:        []byte(text),
	}, nil
}
