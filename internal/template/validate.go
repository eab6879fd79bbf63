package template

import (
	"errors"
	"fmt"
)

// Validate checks a single [Definition].
//
// Rules:
//   - ID and Label must be non-empty.
//   - At least one field; field names non-empty and unique.
//   - Every field kind is recognised.
func Validate(def Definition) error {
	var errs []error

	if def.ID == "" {
		errs = append(errs, errors.New("id must not be empty"))
	}
	if def.Label == "" {
		errs = append(errs, errors.New("label must not be empty"))
	}
	if len(def.Fields) == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}

	seen := make(map[string]bool, len(def.Fields))
	for i, f := range def.Fields {
		if f.Name == "" {
			errs = append(errs, fmt.Errorf("fields[%d]: name must not be empty", i))
			continue
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("fields[%d]: duplicate field name %q", i, f.Name))
		}
		seen[f.Name] = true
		if !f.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("fields[%d]: kind %q is not one of text, date, time", i, f.Kind))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
