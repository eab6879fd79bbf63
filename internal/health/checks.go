package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/sitereport/internal/resilience"
	"github.com/MrWong99/sitereport/internal/template"
)

// Templates fails when the catalog is empty.
func Templates(reg *template.Registry) Checker {
	return Checker{
		Name: "templates",
		Check: func(context.Context) error {
			if reg == nil || reg.Len() == 0 {
				return errors.New("no report templates loaded")
			}
			return nil
		},
		Detail: func() any {
			if reg == nil {
				return 0
			}
			return reg.Len()
		},
	}
}

// Providers fails when a provider group has no backend or every backend's
// circuit breaker is open. status is typically a fallback group's Status
// method.
func Providers(kind string, status func() []resilience.EntryStatus) Checker {
	return Checker{
		Name: kind,
		Check: func(context.Context) error {
			entries := status()
			if len(entries) == 0 {
				return fmt.Errorf("no %s provider configured", kind)
			}
			for _, e := range entries {
				if e.State != resilience.StateOpen.String() {
					return nil
				}
			}
			return fmt.Errorf("all %d %s providers have an open circuit", len(entries), kind)
		},
		Detail: func() any { return status() },
	}
}
