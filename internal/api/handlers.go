package api

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrWong99/sitereport/internal/export"
	"github.com/MrWong99/sitereport/internal/extract"
	"github.com/MrWong99/sitereport/internal/pipeline"
	"github.com/MrWong99/sitereport/internal/report"
	"github.com/MrWong99/sitereport/internal/template"
)

// ── /api/transcribe ──────────────────────────────────────────────────────────

type transcribeRequest struct {
	AudioB64 string          `json:"audio_b64"`
	Language string          `json:"language,omitempty"`
	Filename string          `json:"filename,omitempty"`
	State    *pipeline.State `json:"state,omitempty"`
}

type transcribeResponse struct {
	Text  string         `json:"text"`
	State pipeline.State `json:"state"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	var req transcribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	audio, ok := decodeAudio(w, req.AudioB64)
	if !ok {
		return
	}

	st := s.stateOr(req.State, pipeline.StageRecorded)
	text, st, err := s.orch.Transcribe(r.Context(), st, pipeline.Input{
		Audio:    audio,
		Filename: req.Filename,
		Language: req.Language,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: text, State: st})
}

// ── /api/report/template ─────────────────────────────────────────────────────

type templateRequest struct {
	Transcript   string          `json:"transcript"`
	TemplateType string          `json:"template_type,omitempty"`
	State        *pipeline.State `json:"state,omitempty"`
}

type templateResponse struct {
	TemplateType   string            `json:"template_type"`
	Fields         map[string]string `json:"fields"`
	Degraded       bool              `json:"degraded"`
	DegradedReason string            `json:"degraded_reason,omitempty"`
	Method         string            `json:"method,omitempty"`
	RawResponse    string            `json:"raw_response,omitempty"`
	State          pipeline.State    `json:"state"`
}

func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if !s.decode(w, r, &req) {
		return
	}
	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		badRequest(w, "transcript cannot be empty")
		return
	}

	ctx := r.Context()
	st := s.stateOr(req.State, pipeline.StageTranscribed)
	id, st, err := s.orch.Classify(ctx, st, transcript)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if req.TemplateType != "" && req.TemplateType != id {
		if !s.orch.Registry().Has(req.TemplateType) {
			s.fail(w, r, fmt.Errorf("%w: %q", pipeline.ErrUnknownTemplate, req.TemplateType))
			return
		}
		id = req.TemplateType
	}

	res, st, err := s.orch.Extract(ctx, st, transcript, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, templateResponse{
		TemplateType:   res.TemplateID,
		Fields:         res.Fields,
		Degraded:       res.Degraded,
		DegradedReason: res.DegradedReason,
		Method:         res.Method,
		RawResponse:    res.RawResponse,
		State:          st,
	})
}

// ── /api/report/generate ─────────────────────────────────────────────────────

type generateRequest struct {
	TemplateType  string            `json:"template_type"`
	Fields        map[string]string `json:"fields"`
	Transcript    string            `json:"transcript,omitempty"`
	Degraded      bool              `json:"degraded,omitempty"`
	ReferenceDate string            `json:"reference_date,omitempty"`
	State         *pipeline.State   `json:"state,omitempty"`
}

type generateResponse struct {
	Report     report.Document   `json:"report"`
	ReportText string            `json:"report_text"`
	Fields     map[string]string `json:"fields"`
	Dropped    []string          `json:"dropped,omitempty"`
	State      pipeline.State    `json:"state"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, ok := s.generate(w, r, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// generate normalizes and assembles req. On failure the error response has
// already been written.
func (s *Server) generate(w http.ResponseWriter, r *http.Request, req generateRequest) (generateResponse, bool) {
	if req.TemplateType == "" {
		badRequest(w, "template_type is required")
		return generateResponse{}, false
	}
	if len(req.Fields) == 0 {
		badRequest(w, "at least one field is required to build the report")
		return generateResponse{}, false
	}

	now := s.orch.Now()
	ref := now
	if req.ReferenceDate != "" {
		t, ok := parseReferenceDate(req.ReferenceDate, now)
		if !ok {
			badRequest(w, fmt.Sprintf("reference_date %q is not a date (YYYY-MM-DD or JJ/MM/AAAA)", req.ReferenceDate))
			return generateResponse{}, false
		}
		ref = t
	}

	ctx := r.Context()
	st := s.stateOr(req.State, pipeline.StageExtracted)
	nf, st, err := s.orch.Normalize(ctx, st, extract.Result{
		TemplateID: req.TemplateType,
		Fields:     req.Fields,
		Degraded:   req.Degraded,
	}, ref)
	if err != nil {
		s.fail(w, r, err)
		return generateResponse{}, false
	}
	doc, st, err := s.orch.Assemble(ctx, st, nf, strings.TrimSpace(req.Transcript), now)
	if err != nil {
		s.fail(w, r, err)
		return generateResponse{}, false
	}
	return generateResponse{
		Report:     doc,
		ReportText: doc.RenderedText,
		Fields:     nf.Fields,
		Dropped:    nf.Dropped,
		State:      st,
	}, true
}

// ── /api/pipeline/auto ───────────────────────────────────────────────────────

type autoRequest struct {
	AudioB64   string `json:"audio_b64,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Language   string `json:"language,omitempty"`
	Filename   string `json:"filename,omitempty"`
}

type autoResponse struct {
	Text           string            `json:"text"`
	TemplateType   string            `json:"template_type"`
	Fields         map[string]string `json:"fields"`
	Degraded       bool              `json:"degraded"`
	DegradedReason string            `json:"degraded_reason,omitempty"`
	Report         report.Document   `json:"report"`
	ReportText     string            `json:"report_text"`
	State          pipeline.State    `json:"state"`
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	var req autoRequest
	if !s.decode(w, r, &req) {
		return
	}
	in := pipeline.Input{
		Transcript: req.Transcript,
		Language:   req.Language,
		Filename:   req.Filename,
	}
	if strings.TrimSpace(req.Transcript) == "" {
		audio, ok := decodeAudio(w, req.AudioB64)
		if !ok {
			return
		}
		in.Audio = audio
	}

	res, err := s.orch.Run(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, autoResponse{
		Text:           res.Transcript,
		TemplateType:   res.TemplateID,
		Fields:         res.Normalized.Fields,
		Degraded:       res.Normalized.Degraded,
		DegradedReason: res.Extraction.DegradedReason,
		Report:         res.Document,
		ReportText:     res.Document.RenderedText,
		State:          res.State,
	})
}

// ── exports ──────────────────────────────────────────────────────────────────

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var doc report.Document
	if !s.decode(w, r, &doc) {
		return
	}
	if doc.TemplateID == "" {
		badRequest(w, "template_id is required")
		return
	}
	s.export(w, r, doc, s.formatOr(r.URL.Query().Get("format")))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, ok := s.generate(w, r, req)
	if !ok {
		return
	}
	s.export(w, r, resp.Report, s.formatOr(r.PathValue("format")))
}

// export renders doc and streams the artifact. When rendering fails the JSON
// error still carries the plain-text report.
func (s *Server) export(w http.ResponseWriter, r *http.Request, doc report.Document, format string) {
	art, err := s.orch.Export(r.Context(), doc, format)
	if err != nil {
		if errors.Is(err, export.ErrUnknownFormat) {
			badRequest(w, fmt.Sprintf("unknown format %q; available: %s", format, strings.Join(s.orch.ExportFormats(), ", ")))
			return
		}
		text := doc.RenderedText
		if text == "" {
			text = report.Render(doc)
		}
		s.failWithReport(w, r, err, text)
		return
	}
	writeArtifact(w, art)
}

func writeArtifact(w http.ResponseWriter, art export.Artifact) {
	h := w.Header()
	h.Set("Content-Type", art.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(art.Data)))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(art.Data)
}

// ── /api/templates ───────────────────────────────────────────────────────────

type templatesResponse struct {
	Templates []template.Definition `json:"templates"`
	Default   string                `json:"default"`
	Formats   []string              `json:"formats"`
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	reg := s.orch.Registry()
	writeJSON(w, http.StatusOK, templatesResponse{
		Templates: reg.All(),
		Default:   reg.Default().ID,
		Formats:   s.orch.ExportFormats(),
	})
}

// ── helpers ──────────────────────────────────────────────────────────────────

// stateOr returns st, or a fresh run positioned at stage when the client did
// not send one.
func (s *Server) stateOr(st *pipeline.State, stage pipeline.Stage) pipeline.State {
	if st != nil {
		return *st
	}
	return s.orch.Resume("", stage)
}

func (s *Server) formatOr(format string) string {
	if format == "" {
		return s.defaultFormat
	}
	return format
}

func decodeAudio(w http.ResponseWriter, b64 string) ([]byte, bool) {
	if strings.TrimSpace(b64) == "" {
		badRequest(w, "audio_b64 is required")
		return nil, false
	}
	// Tolerate data URLs as produced by browser recorders.
	if i := strings.Index(b64, ";base64,"); i >= 0 {
		b64 = b64[i+len(";base64,"):]
	}
	audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		badRequest(w, "audio_b64 is not valid base64: "+err.Error())
		return nil, false
	}
	return audio, true
}
