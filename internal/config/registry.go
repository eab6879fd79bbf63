package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/MrWong99/sitereport/internal/export"
	"github.com/MrWong99/sitereport/pkg/provider/llm"
	"github.com/MrWong99/sitereport/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	llm      map[string]func(ProviderEntry) (llm.Provider, error)
	stt      map[string]func(ProviderEntry) (stt.Provider, error)
	exporter map[string]func() (export.Exporter, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:      make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:      make(map[string]func(ProviderEntry) (stt.Provider, error)),
		exporter: make(map[string]func() (export.Exporter, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers an STT provider factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterExporter registers a document exporter factory under format.
// Format names are case-insensitive.
func (r *Registry) RegisterExporter(format string, factory func() (export.Exporter, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exporter[strings.ToLower(format)] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates an STT provider using the factory registered under entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateExporters builds an [export.Set] holding the exporters for formats.
// An empty list selects every registered format.
func (r *Registry) CreateExporters(formats []string) (*export.Set, error) {
	r.mu.RLock()
	if len(formats) == 0 {
		for f := range r.exporter {
			formats = append(formats, f)
		}
		slices.Sort(formats)
	}
	factories := make([]func() (export.Exporter, error), 0, len(formats))
	var errs []error
	for _, f := range formats {
		factory, ok := r.exporter[strings.ToLower(f)]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: export/%q", ErrProviderNotRegistered, f))
			continue
		}
		factories = append(factories, factory)
	}
	r.mu.RUnlock()
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	exps := make([]export.Exporter, 0, len(factories))
	for _, factory := range factories {
		e, err := factory()
		if err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return export.NewSet(exps...), nil
}

// Names returns the registered provider names of kind ("llm", "stt" or
// "export") in sorted order.
func (r *Registry) Names(kind string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	switch kind {
	case "llm":
		for n := range r.llm {
			out = append(out, n)
		}
	case "stt":
		for n := range r.stt {
			out = append(out, n)
		}
	case "export":
		for n := range r.exporter {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}
