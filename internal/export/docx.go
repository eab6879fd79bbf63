package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/MrWong99/sitereport/internal/report"
)

// DOCX exports a minimal WordprocessingML document: a title, the generation
// line, one paragraph per field with a bold label, and the transcript.
type DOCX struct{}

var _ Exporter = DOCX{}

// Format implements [Exporter].
func (DOCX) Format() string { return FormatDOCX }

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

	docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`
)

// Render implements [Exporter].
func (DOCX) Render(ctx context.Context, doc report.Document) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct{ name, body string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", documentXML(doc)},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return Artifact{}, fmt.Errorf("export docx: create %s: %w", p.name, err)
		}
		if _, err := w.Write([]byte(p.body)); err != nil {
			return Artifact{}, fmt.Errorf("export docx: write %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, fmt.Errorf("export docx: %w", err)
	}

	return Artifact{
		Filename:    Filename(doc, FormatDOCX),
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:        buf.Bytes(),
	}, nil
}

func documentXML(doc report.Document) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	para(&b, true, "32", "", doc.Title)
	para(&b, false, "", "", "Généré le: "+doc.GeneratedAt.Format("02/01/2006")+" à "+doc.GeneratedAt.Format("15:04"))
	if doc.NeedsReview {
		para(&b, true, "", "C00000", "À VÉRIFIER : extraction automatique incomplète")
	}

	para(&b, true, "26", "", "Détails du rapport")
	for _, f := range doc.Fields {
		b.WriteString("<w:p>")
		run(&b, true, "", "", f.Label+" : ")
		run(&b, false, "", "", f.Value)
		b.WriteString("</w:p>")
	}

	para(&b, true, "26", "", "Transcription audio")
	for line := range strings.Lines(doc.Transcript) {
		para(&b, false, "", "", strings.TrimRight(line, "\r\n"))
	}

	b.WriteString(`<w:sectPr/></w:body></w:document>`)
	return b.String()
}

func para(b *strings.Builder, bold bool, size, color, text string) {
	b.WriteString("<w:p>")
	run(b, bold, size, color, text)
	b.WriteString("</w:p>")
}

// run writes one text run. size is in half-points.
func run(b *strings.Builder, bold bool, size, color, text string) {
	b.WriteString("<w:r>")
	if bold || size != "" || color != "" {
		b.WriteString("<w:rPr>")
		if bold {
			b.WriteString("<w:b/>")
		}
		if color != "" {
			b.WriteString(`<w:color w:val="` + color + `"/>`)
		}
		if size != "" {
			b.WriteString(`<w:sz w:val="` + size + `"/>`)
		}
		b.WriteString("</w:rPr>")
	}
	b.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(b, []byte(text))
	b.WriteString("</w:t></w:r>")
}
