package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/text/encoding/charmap"

	"github.com/MrWong99/sitereport/internal/report"
)

// PDF exports the report as an A4 document set in Helvetica. The layout is
// described as pdfcpu page content JSON, origin lower left, and rendered with
// [api.Create].
type PDF struct{}

var _ Exporter = PDF{}

// Format implements [Exporter].
func (PDF) Format() string { return FormatPDF }

const (
	pdfMarginLeft   = 50
	pdfTop          = 800
	pdfBottom       = 50
	pdfLeading      = 14
	pdfFontSize     = 10
	pdfTitleSize    = 14
	pdfWrapColumn   = 95
	pdfLinesPerPage = (pdfTop - pdfBottom) / pdfLeading
)

type pdfFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type pdfText struct {
	Value string  `json:"value"`
	Pos   [2]int  `json:"pos"`
	Font  pdfFont `json:"font"`
}

type pdfContent struct {
	Text []pdfText `json:"text,omitempty"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfDescription struct {
	Paper string             `json:"paper"`
	Pages map[string]pdfPage `json:"pages"`
}

type pdfLine struct {
	text string
	bold bool
	size int
}

// Render implements [Exporter].
func (PDF) Render(ctx context.Context, doc report.Document) (Artifact, error) {
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}

	desc, err := json.Marshal(describe(pdfLines(doc)))
	if err != nil {
		return Artifact{}, fmt.Errorf("export pdf: encode layout: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	var out bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(desc), &out, conf); err != nil {
		return Artifact{}, fmt.Errorf("export pdf: create: %w", err)
	}

	return Artifact{
		Filename:    Filename(doc, FormatPDF),
		ContentType: "application/pdf",
		Data:        out.Bytes(),
	}, nil
}

func pdfLines(doc report.Document) []pdfLine {
	var lines []pdfLine
	add := func(s string, bold bool, size int) {
		for _, w := range wrap(winAnsi(s), pdfWrapColumn) {
			lines = append(lines, pdfLine{text: w, bold: bold, size: size})
		}
	}

	add(doc.Title, true, pdfTitleSize)
	add("Généré le: "+doc.GeneratedAt.Format("02/01/2006")+" à "+doc.GeneratedAt.Format("15:04"), false, pdfFontSize)
	if doc.NeedsReview {
		add("À VÉRIFIER : extraction automatique incomplète", true, pdfFontSize)
	}
	add("", false, pdfFontSize)
	add("DÉTAILS DU RAPPORT", true, pdfFontSize)
	for _, f := range doc.Fields {
		add("- "+f.Label+": "+f.Value, false, pdfFontSize)
	}
	add("", false, pdfFontSize)
	add("TRANSCRIPTION AUDIO", true, pdfFontSize)
	for l := range strings.Lines(doc.Transcript) {
		add(strings.TrimRight(l, "\r\n"), false, pdfFontSize)
	}
	return lines
}

func describe(lines []pdfLine) pdfDescription {
	d := pdfDescription{Paper: "A4P", Pages: map[string]pdfPage{}}
	for i, l := range lines {
		if l.text == "" {
			continue
		}
		page := strconv.Itoa(i/pdfLinesPerPage + 1)
		y := pdfTop - (i%pdfLinesPerPage)*pdfLeading
		font := pdfFont{Name: "Helvetica", Size: l.size}
		if l.bold {
			font.Name = "Helvetica-Bold"
		}
		p := d.Pages[page]
		p.Content.Text = append(p.Content.Text, pdfText{Value: l.text, Pos: [2]int{pdfMarginLeft, y}, Font: font})
		d.Pages[page] = p
	}
	// Pages must be contiguous even when one holds only blank lines.
	pages := max(1, (len(lines)+pdfLinesPerPage-1)/pdfLinesPerPage)
	for n := 1; n <= pages; n++ {
		if _, ok := d.Pages[strconv.Itoa(n)]; !ok {
			d.Pages[strconv.Itoa(n)] = pdfPage{}
		}
	}
	return d
}

// winAnsi replaces runes the standard Type 1 fonts cannot show.
func winAnsi(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '\t' {
			b.WriteString("    ")
			continue
		}
		if _, ok := charmap.Windows1252.EncodeRune(r); ok && r >= ' ' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('?')
	}
	return b.String()
}

// wrap splits s into lines of at most width runes, breaking at spaces when
// possible. An empty s yields one empty line.
func wrap(s string, width int) []string {
	if utf8.RuneCountInString(s) <= width {
		return []string{s}
	}
	var out []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > width {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = nil
			}
			out = append(out, string(w[:width]))
			w = w[width:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= width:
			cur = append(append(cur, ' '), w...)
		default:
			out = append(out, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}
