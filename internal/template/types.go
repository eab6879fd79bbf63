// Package template holds the catalog of report templates and the keyword
// classifier that picks one for a transcript.
//
// A [Registry] is built once at process start, either from the built-in
// French catalog ([Builtin]) or from a YAML file ([LoadFile]), and is
// read-only afterwards. All methods are safe for concurrent use.
package template

// FieldKind tells the normalizer how to treat a field value.
type FieldKind string

const (
	// KindText is free text and passes through normalization untouched.
	KindText FieldKind = "text"

	// KindDate holds a calendar date, canonicalised to dd/mm/yyyy.
	KindDate FieldKind = "date"

	// KindTime holds a time of day, canonicalised to HH:MM.
	KindTime FieldKind = "time"
)

// IsValid reports whether k is a recognised kind. The empty kind is valid and
// means [KindText].
func (k FieldKind) IsValid() bool {
	switch k {
	case "", KindText, KindDate, KindTime:
		return true
	}
	return false
}

// FieldSpec declares one field of a template.
type FieldSpec struct {
	// Name is the field key and its display label (e.g., "Zone inspectée").
	Name string `yaml:"name" json:"name"`

	// Required marks fields a complete report must carry.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Kind selects date/time normalization. Empty means text.
	Kind FieldKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Hint is the per-field instruction given to the language model.
	Hint string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Definition is one report template.
type Definition struct {
	// ID is the stable identifier (e.g., "tour_securite").
	ID string `yaml:"id" json:"id"`

	// Label is the report header (e.g., "RAPPORT DE SÉCURITÉ - Tour de Chantier").
	Label string `yaml:"label" json:"label"`

	// Priority breaks classification ties; lower wins.
	Priority int `yaml:"priority" json:"priority"`

	// Keywords trigger the template. A template without keywords is a
	// default candidate.
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// Fields is the ordered schema.
	Fields []FieldSpec `yaml:"fields" json:"fields"`
}

// FieldNames returns the schema field names in declared order.
func (d Definition) FieldNames() []string {
	names := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		names[i] = f.Name
	}
	return names
}

// FieldsOfKind returns the names of fields with the given kind, in order.
func (d Definition) FieldsOfKind(kind FieldKind) []string {
	var names []string
	for _, f := range d.Fields {
		if f.Kind == kind {
			names = append(names, f.Name)
		}
	}
	return names
}

// HasField reports whether name is part of the schema.
func (d Definition) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// EmptyFields returns a map holding "" for every schema field.
func (d Definition) EmptyFields() map[string]string {
	m := make(map[string]string, len(d.Fields))
	for _, f := range d.Fields {
		m[f.Name] = ""
	}
	return m
}

// MissingRequired lists the required fields whose value in fields is empty.
func (d Definition) MissingRequired(fields map[string]string) []string {
	var missing []string
	for _, f := range d.Fields {
		if f.Required && fields[f.Name] == "" {
			missing = append(missing, f.Name)
		}
	}
	return missing
}
