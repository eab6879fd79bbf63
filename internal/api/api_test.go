package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/MrWong99/sitereport/internal/export"
	"github.com/MrWong99/sitereport/internal/extract"
	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/pipeline"
	"github.com/MrWong99/sitereport/internal/report"
	"github.com/MrWong99/sitereport/internal/template"
	"github.com/MrWong99/sitereport/pkg/provider/llm"
	llmmock "github.com/MrWong99/sitereport/pkg/provider/llm/mock"
	"github.com/MrWong99/sitereport/pkg/provider/stt"
	sttmock "github.com/MrWong99/sitereport/pkg/provider/stt/mock"
)

var refTime = time.Date(2025, time.January, 5, 9, 7, 0, 0, time.UTC)

const inspectionReply = `{"Date": "12 novembre 2025", "Zone inspectée": "niveau 2", "Observations": "fissure dans le béton"}`

type fixture struct {
	srv *Server
	stt *sttmock.Provider
	llm *llmmock.Provider
	h   http.Handler
}

func newFixture(t *testing.T, mod func(*pipeline.Config)) *fixture {
	t.Helper()
	reg := template.BuiltinRegistry()
	met, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	f := &fixture{
		stt: &sttmock.Provider{Result: stt.Result{Text: "Tour de sécurité au niveau 2, fissure dans le béton."}},
		llm: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: inspectionReply}},
	}
	cfg := pipeline.Config{
		Registry:  reg,
		STT:       f.stt,
		Extractor: extract.New(f.llm, reg, extract.WithRetryBackoff(0)),
		Metrics:   met,
		Location:  time.UTC,
		Now:       func() time.Time { return refTime },
	}
	if mod != nil {
		mod(&cfg)
	}
	orch, err := pipeline.New(cfg)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	f.srv = New(orch, WithDefaultFormat("txt"))
	f.h = f.srv.Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

// ── /api/transcribe ──────────────────────────────────────────────────────────

func TestTranscribe(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/transcribe", map[string]any{"audio_b64": b64("RIFF....WAVE"), "language": "fr"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeBody[transcribeResponse](t, rec)
	if !strings.Contains(resp.Text, "fissure") {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.State.Stage != pipeline.StageTranscribed || resp.State.RunID == "" {
		t.Errorf("state = %+v, want transcribed with a run id", resp.State)
	}
	if got := string(f.stt.Calls[0].Req.Audio); got != "RIFF....WAVE" {
		t.Errorf("audio passed to stt = %q", got)
	}
}

func TestTranscribe_DataURL(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/transcribe", map[string]any{"audio_b64": "data:audio/webm;base64," + b64("webm")})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := string(f.stt.Calls[0].Req.Audio); got != "webm" {
		t.Errorf("audio passed to stt = %q", got)
	}
}

func TestTranscribe_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body any
	}{
		{"empty body", ""},
		{"malformed json", "{"},
		{"missing audio", map[string]any{}},
		{"invalid base64", map[string]any{"audio_b64": "%%%"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			rec := f.do(t, "POST", "/api/transcribe", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body = %s", rec.Code, rec.Body)
			}
			if f.stt.CallCount() != 0 {
				t.Error("stt must not be called")
			}
		})
	}
}

func TestTranscribe_ProviderFailureIs502(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.stt.Err = errors.New("upstream down")

	rec := f.do(t, "POST", "/api/transcribe", map[string]any{"audio_b64": b64("x")})
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decodeBody[errorBody](t, rec)
	if !strings.Contains(body.Error, "upstream down") {
		t.Errorf("error = %q", body.Error)
	}
}

func TestTranscribe_BodyTooLarge(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.srv.maxBody = 16
	f.h = f.srv.Handler()

	rec := f.do(t, "POST", "/api/transcribe", map[string]any{"audio_b64": b64(strings.Repeat("a", 64))})
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

// ── /api/report/template ─────────────────────────────────────────────────────

func TestTemplate_InfersAndExtracts(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/template", map[string]any{
		"transcript": "Inspection de sécurité : fissure dans le béton au niveau 2.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeBody[templateResponse](t, rec)
	if resp.TemplateType != template.IDTourSecurite {
		t.Errorf("template_type = %q", resp.TemplateType)
	}
	if resp.Fields["Zone inspectée"] != "niveau 2" {
		t.Errorf("fields = %v", resp.Fields)
	}
	if resp.Degraded {
		t.Error("degraded = true, want false")
	}
	if resp.State.Stage != pipeline.StageExtracted {
		t.Errorf("stage = %s, want extracted", resp.State.Stage)
	}
}

func TestTemplate_EmptyTranscriptIs400(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/template", map[string]any{"transcript": "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if f.llm.Calls() != 0 {
		t.Error("llm must not be called")
	}
}

func TestTemplate_Override(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/template", map[string]any{
		"transcript":    "Inspection de sécurité au niveau 2.",
		"template_type": template.IDRapportGenerique,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decodeBody[templateResponse](t, rec).TemplateType; got != template.IDRapportGenerique {
		t.Errorf("template_type = %q, want override", got)
	}

	rec = f.do(t, "POST", "/api/report/template", map[string]any{
		"transcript":    "Inspection de sécurité au niveau 2.",
		"template_type": "inconnu",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown override: status = %d, want 400", rec.Code)
	}
}

func TestTemplate_StateAtWrongStageIs409(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/template", map[string]any{
		"transcript": "Inspection.",
		"state":      map[string]any{"run_id": "01J0000000000000000000000", "stage": "assembled"},
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409; body = %s", rec.Code, rec.Body)
	}
}

func TestTemplate_LLMFailureDegrades(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.llm.CompleteResponse = nil
	f.llm.CompleteErr = errors.New("timeout")

	rec := f.do(t, "POST", "/api/report/template", map[string]any{"transcript": "Inspection de sécurité."})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeBody[templateResponse](t, rec)
	if !resp.Degraded || resp.DegradedReason != extract.ReasonTransport {
		t.Errorf("degraded = %v reason = %q", resp.Degraded, resp.DegradedReason)
	}
}

// ── /api/report/generate ─────────────────────────────────────────────────────

func TestGenerate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/generate", map[string]any{
		"template_type":  template.IDTourSecurite,
		"fields":         map[string]string{"Zone inspectée": "parking", "Date": "", "Météo": "pluie"},
		"transcript":     "Tour du parking.",
		"reference_date": "2025-03-10",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeBody[generateResponse](t, rec)
	if resp.Fields["Date"] != "10/03/2025" {
		t.Errorf("Date = %q, want reference date 10/03/2025", resp.Fields["Date"])
	}
	if resp.Fields["Heure"] != "09:07" {
		t.Errorf("Heure = %q, want the request clock 09:07", resp.Fields["Heure"])
	}
	if len(resp.Dropped) != 1 || resp.Dropped[0] != "Météo" {
		t.Errorf("dropped = %v, want [Météo]", resp.Dropped)
	}
	if !strings.Contains(resp.ReportText, "RAPPORT DE SÉCURITÉ") || !strings.Contains(resp.ReportText, "▪ Zone inspectée: parking") {
		t.Errorf("report_text = %q", resp.ReportText)
	}
	if resp.ReportText != resp.Report.RenderedText {
		t.Error("report_text differs from report.rendered_text")
	}
	if resp.State.Stage != pipeline.StageAssembled {
		t.Errorf("stage = %s", resp.State.Stage)
	}
}

func TestGenerate_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"no fields", map[string]any{"template_type": template.IDTourSecurite, "fields": map[string]string{}}, http.StatusBadRequest},
		{"no template", map[string]any{"fields": map[string]string{"Date": "x"}}, http.StatusBadRequest},
		{"unknown template", map[string]any{"template_type": "inconnu", "fields": map[string]string{"Date": "x"}}, http.StatusBadRequest},
		{"bad reference date", map[string]any{"template_type": template.IDTourSecurite, "fields": map[string]string{"Date": "x"}, "reference_date": "demain"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, nil)
			rec := f.do(t, "POST", "/api/report/generate", tc.body)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d; body = %s", rec.Code, tc.want, rec.Body)
			}
		})
	}
}

func TestParseReferenceDate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"2025-03-10", "10/03/2025 09:07"},
		{"10/03/2025", "10/03/2025 09:07"},
		{"2025-03-10T08:00:00Z", "10/03/2025 08:00"},
	}
	for _, tc := range tests {
		got, ok := parseReferenceDate(tc.in, refTime)
		if !ok {
			t.Errorf("parseReferenceDate(%q) failed", tc.in)
			continue
		}
		if s := got.Format("02/01/2006 15:04"); s != tc.want {
			t.Errorf("parseReferenceDate(%q) = %s, want %s", tc.in, s, tc.want)
		}
	}
	if _, ok := parseReferenceDate("lundi", refTime); ok {
		t.Error("parseReferenceDate(lundi) should fail")
	}
}

// ── /api/pipeline/auto ───────────────────────────────────────────────────────

func TestAuto_FromAudio(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/pipeline/auto", map[string]any{"audio_b64": b64("audio")})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	resp := decodeBody[autoResponse](t, rec)
	if resp.TemplateType != template.IDTourSecurite {
		t.Errorf("template_type = %q", resp.TemplateType)
	}
	if resp.Fields["Date"] != "12/11/2025" {
		t.Errorf("Date = %q, want 12/11/2025", resp.Fields["Date"])
	}
	if resp.ReportText == "" || resp.Report.TemplateID != template.IDTourSecurite {
		t.Errorf("report missing: %+v", resp.Report)
	}
}

func TestAuto_TranscriptSkipsSTT(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/pipeline/auto", map[string]any{"transcript": "Inspection de sécurité du niveau 2."})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if f.stt.CallCount() != 0 {
		t.Error("stt must not be called for a typed transcript")
	}
}

func TestAuto_TranscriptionFailureIs502(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.stt.Err = errors.New("quota exceeded")

	rec := f.do(t, "POST", "/api/pipeline/auto", map[string]any{"audio_b64": b64("audio")})
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	if f.llm.Calls() != 0 {
		t.Error("llm must not be called after a transcription failure")
	}
}

// ── exports ──────────────────────────────────────────────────────────────────

func sampleDocument() report.Document {
	doc := report.Document{
		TemplateID:  template.IDTourSecurite,
		Title:       "RAPPORT DE SÉCURITÉ - Tour de Chantier",
		GeneratedAt: refTime,
		Fields:      []report.Field{{Label: "Date", Value: "05/01/2025"}},
		Transcript:  "Tour.",
	}
	doc.RenderedText = report.Render(doc)
	return doc
}

func TestExport_Text(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/export?format=txt", sampleDocument())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=rapport_tour_securite_05-01-2025.txt" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if rec.Body.String() != sampleDocument().RenderedText {
		t.Error("body differs from rendered text")
	}
}

func TestExport_DefaultFormat(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/export", sampleDocument())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.HasSuffix(rec.Header().Get("Content-Disposition"), ".txt") {
		t.Errorf("default format not used: %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestExport_UnknownFormatIs400(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/export?format=odt", sampleDocument())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

type failingExporter struct{}

func (failingExporter) Format() string { return "pdf" }

func (failingExporter) Render(context.Context, report.Document) (export.Artifact, error) {
	return export.Artifact{}, errors.New("font missing")
}

func TestExport_FailureKeepsReportText(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(c *pipeline.Config) {
		c.Exporters = export.NewSet(export.Text{}, failingExporter{})
	})

	rec := f.do(t, "POST", "/api/report/export?format=pdf", sampleDocument())
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decodeBody[errorBody](t, rec)
	if body.ReportText != sampleDocument().RenderedText {
		t.Errorf("report_text = %q", body.ReportText)
	}
	if !strings.Contains(body.Error, "font missing") {
		t.Errorf("error = %q", body.Error)
	}
}

func TestDownload_DOCX(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "POST", "/api/report/download/docx", map[string]any{
		"template_type": template.IDProblemeDecouverte,
		"fields": map[string]string{
			"Nom de l'incident":         "Fuite",
			"Description de l'incident": "Fuite d'eau au sous-sol",
			"Niveau d'urgence":          "Élevé",
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Disposition"); got != "attachment; filename=rapport_probleme_decouverte_05-01-2025.docx" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("docx body is not a zip archive")
	}
}

// ── /api/templates ───────────────────────────────────────────────────────────

func TestTemplates(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := f.do(t, "GET", "/api/templates", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeBody[templatesResponse](t, rec)
	if len(resp.Templates) != len(template.Builtin()) {
		t.Errorf("templates = %d, want %d", len(resp.Templates), len(template.Builtin()))
	}
	if resp.Default != template.IDRapportGenerique {
		t.Errorf("default = %q", resp.Default)
	}
	if strings.Join(resp.Formats, ",") != "docx,pdf,txt" {
		t.Errorf("formats = %v", resp.Formats)
	}
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{&pipeline.TranscriptionError{Err: errors.New("x")}, http.StatusBadGateway},
		{&pipeline.ExportError{Format: "pdf", Err: errors.New("x")}, http.StatusBadGateway},
		{pipeline.ErrInvalidTransition, http.StatusConflict},
		{pipeline.ErrUnknownTemplate, http.StatusBadRequest},
		{report.ErrAssemblyPrecondition, http.StatusBadRequest},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
