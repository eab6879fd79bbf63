package extract

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/MrWong99/sitereport/internal/template"
	"github.com/MrWong99/sitereport/internal/textfold"
)

// Parse methods reported in [Parsed.Method] and [Result.Method].
const (
	MethodJSON         = "json"
	MethodEmbeddedJSON = "embedded_json"
	MethodRepairedJSON = "repaired_json"
	MethodLines        = "lines"
)

// Outcome is the result of interpreting a model reply. It is either [Parsed]
// or [Degraded].
type Outcome interface {
	outcome()
}

// Parsed carries the recovered field values. Fields holds exactly the schema
// keys; values the reply did not provide are "".
type Parsed struct {
	Fields map[string]string
	Method string
}

// Degraded means nothing usable could be recovered from Raw.
type Degraded struct {
	Raw string
}

func (Parsed) outcome()   {}
func (Degraded) outcome() {}

// Parse interprets raw against the schema of def. It tries, in order: a strict
// JSON object, a JSON object embedded in surrounding prose, a repaired JSON
// object, and finally a "label: value" line scan.
func Parse(def template.Definition, raw string) Outcome {
	m := newMatcher(def)
	cleaned := stripFences(raw)

	// An object naming no schema field is a reply about something else, not
	// an extraction with every field blank. {} is still accepted.
	if obj, ok := decodeObject(cleaned); ok && (len(obj) == 0 || m.knows(obj)) {
		return Parsed{Fields: m.fromObject(obj), Method: MethodJSON}
	}

	if i, j := strings.IndexByte(cleaned, '{'), strings.LastIndexByte(cleaned, '}'); i >= 0 && j > i {
		if obj, ok := decodeObject(cleaned[i : j+1]); ok && m.knows(obj) {
			return Parsed{Fields: m.fromObject(obj), Method: MethodEmbeddedJSON}
		}
	}

	if fixed, err := jsonrepair.JSONRepair(cleaned); err == nil {
		if obj, ok := decodeObject(fixed); ok && m.knows(obj) {
			return Parsed{Fields: m.fromObject(obj), Method: MethodRepairedJSON}
		}
	}

	if fields, ok := m.fromLines(cleaned); ok {
		return Parsed{Fields: fields, Method: MethodLines}
	}
	return Degraded{Raw: raw}
}

// stripFences removes an optional markdown code fence around the reply.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```JSON", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}

// decodeObject strictly decodes s as a single JSON object.
func decodeObject(s string) (map[string]any, bool) {
	if s == "" {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// matcher maps reply labels onto schema field names.
type matcher struct {
	def    template.Definition
	folded map[string]string
}

func newMatcher(def template.Definition) *matcher {
	m := &matcher{def: def, folded: make(map[string]string, len(def.Fields))}
	for _, f := range def.Fields {
		m.folded[textfold.Fold(f.Name)] = f.Name
	}
	return m
}

// lookup resolves a label to a schema name, exact match first.
func (m *matcher) lookup(label string) (string, bool) {
	if m.def.HasField(label) {
		return label, true
	}
	name, ok := m.folded[textfold.Fold(strings.TrimSpace(label))]
	return name, ok
}

// knows reports whether obj carries at least one schema key.
func (m *matcher) knows(obj map[string]any) bool {
	for k := range obj {
		if _, ok := m.lookup(k); ok {
			return true
		}
	}
	return false
}

// fromObject projects obj onto the schema. Unknown keys are discarded. When
// both an exact key and a folded variant are present, the exact key wins.
func (m *matcher) fromObject(obj map[string]any) map[string]string {
	fields := m.def.EmptyFields()
	exact := make(map[string]bool, len(obj))
	for k, v := range obj {
		if m.def.HasField(k) {
			fields[k] = stringify(v)
			exact[k] = true
		}
	}
	for k, v := range obj {
		if m.def.HasField(k) {
			continue
		}
		if name, ok := m.lookup(k); ok && !exact[name] {
			fields[name] = stringify(v)
		}
	}
	return fields
}

// fromLines scans "label: value" lines. Bullets, quotes, markdown emphasis and
// trailing commas are tolerated. It succeeds if any line names a schema field.
func (m *matcher) fromLines(s string) (map[string]string, bool) {
	fields := m.def.EmptyFields()
	found := false
	for line := range strings.Lines(s) {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•▪· \t")
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		label = strings.Trim(strings.TrimSpace(label), `"'*_`)
		name, ok := m.lookup(label)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.TrimSuffix(value, ",")
		value = strings.Trim(strings.TrimSpace(value), `"`)
		fields[name] = strings.TrimSpace(value)
		found = true
	}
	return fields, found
}

// stringify renders a decoded JSON value as field text.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "oui"
		}
		return "non"
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			if s := stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(x); err != nil {
			return ""
		}
		return strings.TrimSpace(buf.String())
	}
}
