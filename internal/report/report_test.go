package report_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/sitereport/internal/report"
	"github.com/MrWong99/sitereport/internal/template"
)

var generatedAt = time.Date(2025, time.November, 12, 14, 30, 0, 0, time.UTC)

func tourFields() map[string]string {
	return map[string]string{
		"Date":                "12/11/2025",
		"Heure":               "10:15",
		"Opérateur":           "",
		"Zone inspectée":      "Niveau 2, voile nord",
		"Observations":        "Fissure dans le béton",
		"Non-conformités":     "  ",
		"Actions correctives": "Faire passer le bureau d'études",
	}
}

func TestAssemble(t *testing.T) {
	t.Parallel()

	a := report.NewAssembler(template.BuiltinRegistry())
	transcript := "Inspection du 12 novembre 2025.\nFissure dans le béton du voile nord."

	doc, err := a.Assemble(template.IDTourSecurite, tourFields(), false, transcript, generatedAt)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	wantLabels := []string{"Date", "Heure", "Opérateur", "Zone inspectée", "Observations", "Non-conformités", "Actions correctives"}
	if len(doc.Fields) != len(wantLabels) {
		t.Fatalf("len(Fields)=%d, want %d", len(doc.Fields), len(wantLabels))
	}
	for i, want := range wantLabels {
		if doc.Fields[i].Label != want {
			t.Errorf("Fields[%d].Label=%q, want %q", i, doc.Fields[i].Label, want)
		}
	}
	if got := doc.Value("Opérateur"); got != report.Placeholder {
		t.Errorf("empty value=%q, want placeholder", got)
	}
	if got := doc.Value("Non-conformités"); got != report.Placeholder {
		t.Errorf("blank value=%q, want placeholder", got)
	}
	if doc.Title != "RAPPORT DE SÉCURITÉ - Tour de Chantier" {
		t.Errorf("Title=%q", doc.Title)
	}

	for _, want := range []string{
		strings.Repeat("=", 60) + "\nRAPPORT DE SÉCURITÉ - Tour de Chantier\n",
		"Généré le: 12/11/2025 à 14:30\n",
		"▪ Date: 12/11/2025\n",
		"▪ Opérateur: Non renseigné\n",
		"TRANSCRIPTION AUDIO\n" + strings.Repeat("─", 60) + "\n\n" + transcript + "\n",
	} {
		if !strings.Contains(doc.RenderedText, want) {
			t.Errorf("RenderedText missing %q\n%s", want, doc.RenderedText)
		}
	}
	if strings.Contains(doc.RenderedText, "À VÉRIFIER") {
		t.Error("review notice rendered for a confident extraction")
	}
	if strings.Index(doc.RenderedText, "▪ Date:") > strings.Index(doc.RenderedText, "▪ Heure:") {
		t.Error("fields not rendered in schema order")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	t.Parallel()

	a := report.NewAssembler(template.BuiltinRegistry())
	first, err := a.Assemble(template.IDTourSecurite, tourFields(), true, "x", generatedAt)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for range 5 {
		again, _ := a.Assemble(template.IDTourSecurite, tourFields(), true, "x", generatedAt)
		if again.RenderedText != first.RenderedText {
			t.Fatal("RenderedText differs between identical calls")
		}
	}
	if got := report.Render(first); got != first.RenderedText {
		t.Error("Render(doc) differs from doc.RenderedText")
	}
}

func TestAssemble_NeedsReview(t *testing.T) {
	t.Parallel()

	def, _ := template.BuiltinRegistry().Get(template.IDRapportGenerique)
	a := report.NewAssembler(template.BuiltinRegistry())
	doc, err := a.Assemble(def.ID, def.EmptyFields(), true, "", generatedAt)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !doc.NeedsReview {
		t.Error("NeedsReview=false")
	}
	if !strings.Contains(doc.RenderedText, "À VÉRIFIER") {
		t.Error("review notice missing")
	}
	for _, f := range doc.Fields {
		if f.Value != report.Placeholder {
			t.Errorf("%s=%q, want placeholder", f.Label, f.Value)
		}
	}
}

func TestAssemble_Preconditions(t *testing.T) {
	t.Parallel()

	a := report.NewAssembler(template.BuiltinRegistry())

	if _, err := a.Assemble("inconnu", map[string]string{}, false, "", generatedAt); !errors.Is(err, report.ErrAssemblyPrecondition) {
		t.Errorf("unknown template: err=%v, want ErrAssemblyPrecondition", err)
	}

	extra := tourFields()
	extra["Météo"] = "pluie"
	if _, err := a.Assemble(template.IDTourSecurite, extra, false, "", generatedAt); !errors.Is(err, report.ErrAssemblyPrecondition) {
		t.Errorf("unknown key: err=%v, want ErrAssemblyPrecondition", err)
	}

	missing := tourFields()
	delete(missing, "Date")
	if _, err := a.Assemble(template.IDTourSecurite, missing, false, "", generatedAt); !errors.Is(err, report.ErrAssemblyPrecondition) {
		t.Errorf("missing key: err=%v, want ErrAssemblyPrecondition", err)
	}
}
