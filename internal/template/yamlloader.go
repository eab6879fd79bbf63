package template

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the top-level structure of a templates YAML file.
//
// Example:
//
//	templates:
//	  - id: tour_securite
//	    label: "RAPPORT DE SÉCURITÉ - Tour de Chantier"
//	    priority: 2
//	    keywords: [tour, sécurité, inspection, fissure, béton]
//	    fields:
//	      - name: Date
//	        kind: date
//	        required: true
//	        hint: "date mentionnée (format JJ/MM/AAAA)"
//	      - name: Zone inspectée
type File struct {
	Templates []Definition `yaml:"templates"`
}

// LoadFile reads a templates YAML file and builds a Registry from it.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("template: open templates file %q: %w", path, err)
	}
	defer f.Close()

	r, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("template: load templates file %q: %w", path, err)
	}
	return r, nil
}

// LoadFromReader parses templates YAML from an [io.Reader] and builds a
// Registry. The reader is consumed entirely; the caller closes it.
func LoadFromReader(r io.Reader) (*Registry, error) {
	var tf File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil {
		return nil, fmt.Errorf("template: decode yaml: %w", err)
	}
	return NewRegistry(tf.Templates)
}
