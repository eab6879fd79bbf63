// Package api serves the JSON HTTP surface of the report pipeline.
//
// Every stage is reachable on its own so a front end can let a person check
// the transcript, the template and the fields between calls. Clients that
// want to keep one run ID across calls send back the "state" object each
// response carries; clients that do not are placed at the right stage
// automatically.
//
//	POST /api/transcribe                audio → text
//	POST /api/report/template           transcript → template + fields
//	POST /api/report/generate           fields → report
//	POST /api/pipeline/auto             audio or transcript → report in one call
//	POST /api/report/export?format=     report → document download
//	POST /api/report/download/{format}  fields → document download
//	GET  /api/templates                 template catalog
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/pipeline"
	"github.com/MrWong99/sitereport/internal/report"
	"github.com/MrWong99/sitereport/internal/template"
)

// DefaultMaxBodyBytes bounds request bodies. Base64 audio of a few minutes of
// compressed speech fits comfortably.
const DefaultMaxBodyBytes = 32 << 20

// Server holds the handlers. It is safe for concurrent use.
type Server struct {
	orch          *pipeline.Orchestrator
	defaultFormat string
	maxBody       int64
}

// Option configures a [Server].
type Option func(*Server)

// WithDefaultFormat sets the export format used when the request names none.
func WithDefaultFormat(format string) Option {
	return func(s *Server) { s.defaultFormat = format }
}

// WithMaxBodyBytes overrides [DefaultMaxBodyBytes].
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// New returns a Server driving orch.
func New(orch *pipeline.Orchestrator, opts ...Option) *Server {
	s := &Server{
		orch:          orch,
		defaultFormat: "docx",
		maxBody:       DefaultMaxBodyBytes,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the API routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("POST /api/report/template", s.handleTemplate)
	mux.HandleFunc("POST /api/report/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/pipeline/auto", s.handleAuto)
	mux.HandleFunc("POST /api/report/export", s.handleExport)
	mux.HandleFunc("POST /api/report/download/{format}", s.handleDownload)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
}

// Handler returns a mux with only the API routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// errorBody is the JSON error response. ReportText is set when an export
// failed after the report itself was built.
type errorBody struct {
	Error      string `json:"error"`
	ReportText string `json:"report_text,omitempty"`
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	var (
		te *pipeline.TranscriptionError
		ee *pipeline.ExportError
	)
	switch {
	case errors.As(err, &te), errors.As(err, &ee):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrUnknownTemplate),
		errors.Is(err, template.ErrNotFound),
		errors.Is(err, report.ErrAssemblyPrecondition):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.failWithReport(w, r, err, "")
}

func (s *Server) failWithReport(w http.ResponseWriter, r *http.Request, err error, reportText string) {
	status := statusFor(err)
	log := observe.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "route", r.Pattern, "status", status, "err", err)
	} else {
		log.Info("request rejected", "route", r.Pattern, "status", status, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), ReportText: reportText})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// decode reads a JSON body bounded by the server's size limit.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		case errors.Is(err, io.EOF):
			badRequest(w, "request body is empty")
		default:
			badRequest(w, "invalid request body: "+err.Error())
		}
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response", "err", err)
	}
}

// parseReferenceDate accepts ISO dates and the French dd/mm/yyyy form. A
// bare date keeps now's clock time, so time fields left empty default to the
// moment of the request rather than an invented hour. An RFC 3339 timestamp
// is used as is.
func parseReferenceDate(s string, now time.Time) (time.Time, bool) {
	loc := now.Location()
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006"} {
		if d, err := time.ParseInLocation(layout, s, loc); err == nil {
			return time.Date(d.Year(), d.Month(), d.Day(), now.Hour(), now.Minute(), now.Second(), 0, loc), true
		}
	}
	return time.Time{}, false
}
