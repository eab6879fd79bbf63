package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/sitereport/internal/config"
	"github.com/MrWong99/sitereport/internal/export"
	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/resilience"
	"github.com/MrWong99/sitereport/pkg/provider/llm"
	"github.com/MrWong99/sitereport/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/sitereport/pkg/provider/llm/openai"
	"github.com/MrWong99/sitereport/pkg/provider/llm/vertex"
	"github.com/MrWong99/sitereport/pkg/provider/stt"
	"github.com/MrWong99/sitereport/pkg/provider/stt/deepgram"
	oaistt "github.com/MrWong99/sitereport/pkg/provider/stt/openai"
	"github.com/MrWong99/sitereport/pkg/provider/stt/stub"
	"github.com/MrWong99/sitereport/pkg/provider/stt/whisper"
)

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// anthropic, gemini, deepseek, mistral, groq, llamacpp and llamafile all
	// go through any-llm with an optional APIKey and BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts...)
	})

	reg.RegisterLLM("vertex", func(entry config.ProviderEntry) (llm.Provider, error) {
		return vertex.New(context.Background(),
			optString(entry.Options, "project"),
			optString(entry.Options, "region"),
			entry.Model)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []oaistt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaistt.WithBaseURL(entry.BaseURL))
		}
		return oaistt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterSTT("stub", func(config.ProviderEntry) (stt.Provider, error) {
		return stub.Provider{}, nil
	})

	// ── Export ────────────────────────────────────────────────────────────────

	for _, format := range []string{export.FormatText, export.FormatDOCX, export.FormatPDF} {
		reg.RegisterExporter(format, func() (export.Exporter, error) { return export.New(format) })
	}
}

// providers are the instantiated backends, each kind wrapped in a failover
// group.
type providers struct {
	LLM     llm.Provider
	LLMName string
	// LLMStatus reports breaker states for readiness; nil when no model is
	// configured.
	LLMStatus func() []resilience.EntryStatus

	STT       stt.Provider
	STTName   string
	STTStatus func() []resilience.EntryStatus

	closers []io.Closer
}

// Close releases backends holding connections.
func (p *providers) Close() error {
	var errs []error
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// errNoLLM is returned for every completion when no language model is
// configured, so every extraction degrades instead of the service refusing
// to start.
var errNoLLM = errors.New("no language model configured (providers.llm)")

type unconfiguredLLM struct{}

func (unconfiguredLLM) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, errNoLLM
}

// buildProviders instantiates the primary and fallback providers named in
// cfg. Breaker transitions are exported through met.
func buildProviders(cfg *config.Config, reg *config.Registry, met *observe.Metrics) (*providers, error) {
	ps := &providers{}
	cbCfg := resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Providers.CircuitBreaker.MaxFailures,
		ResetTimeout: cfg.Providers.CircuitBreaker.ResetTimeout,
		HalfOpenMax:  cfg.Providers.CircuitBreaker.HalfOpenMax,
		OnStateChange: func(name string, from, to resilience.State) {
			slog.Info("circuit breaker state changed", "breaker", name, "from", from, "to", to)
			met.RecordBreakerTransition(context.Background(), name, to.String())
		},
	}
	fbCfg := resilience.FallbackConfig{CircuitBreaker: cbCfg}

	track := func(v any) {
		if c, ok := v.(io.Closer); ok {
			ps.closers = append(ps.closers, c)
		}
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	if entry := cfg.Providers.LLM; entry.Name != "" {
		primary, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		track(primary)
		group := resilience.NewLLMFallback(primary, "llm/"+entry.Name, fbCfg)
		for _, fb := range cfg.Providers.LLMFallbacks {
			p, err := reg.CreateLLM(fb)
			if err != nil {
				_ = ps.Close()
				return nil, fmt.Errorf("create llm fallback %q: %w", fb.Name, err)
			}
			track(p)
			group.AddFallback("llm/"+fb.Name, p)
		}
		ps.LLM, ps.LLMName, ps.LLMStatus = group, entry.Name, group.Status
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "fallbacks", len(cfg.Providers.LLMFallbacks))
	} else {
		ps.LLM, ps.LLMName = unconfiguredLLM{}, "none"
		slog.Warn("no llm provider configured; reports will need manual completion")
	}

	// ── STT ───────────────────────────────────────────────────────────────────
	entry := cfg.Providers.STT
	if entry.Name == "" {
		entry = config.ProviderEntry{Name: "stub"}
		slog.Warn("no stt provider configured; using the placeholder transcriber")
	}
	primary, err := reg.CreateSTT(entry)
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	track(primary)
	group := resilience.NewSTTFallback(primary, "stt/"+entry.Name, fbCfg)
	for _, fb := range cfg.Providers.STTFallbacks {
		p, err := reg.CreateSTT(fb)
		if err != nil {
			_ = ps.Close()
			return nil, fmt.Errorf("create stt fallback %q: %w", fb.Name, err)
		}
		track(p)
		group.AddFallback("stt/"+fb.Name, p)
	}
	ps.STT, ps.STTName, ps.STTStatus = group, entry.Name, group.Status
	slog.Info("provider created", "kind", "stt", "name", entry.Name, "fallbacks", len(cfg.Providers.STTFallbacks))

	return ps, nil
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}
