package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "vertex"},
	"stt": {"deepgram", "whisper", "openai", "stub"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, expands ${VAR} references
// against the process environment, applies defaults and validates the result.
// An empty document yields the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	expanded := os.ExpandEnv(string(raw))

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if _, err := cfg.Location(); err != nil {
		errs = append(errs, fmt.Errorf("server.timezone %q: %w", cfg.Server.Timezone, err))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	errs = append(errs, validateEntries("llm", cfg.Providers.LLM, cfg.Providers.LLMFallbacks)...)
	errs = append(errs, validateEntries("stt", cfg.Providers.STT, cfg.Providers.STTFallbacks)...)
	cb := cfg.Providers.CircuitBreaker
	if cb.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("providers.circuit_breaker.max_failures %d must not be negative", cb.MaxFailures))
	}
	if cb.HalfOpenMax < 0 {
		errs = append(errs, fmt.Errorf("providers.circuit_breaker.half_open_max %d must not be negative", cb.HalfOpenMax))
	}
	if cb.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("providers.circuit_breaker.reset_timeout %s must not be negative", cb.ResetTimeout))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("providers.llm is not configured; every extraction will be degraded")
	}

	// Pipeline
	p := cfg.Pipeline
	if p.Temperature != nil && (*p.Temperature < 0 || *p.Temperature > 2) {
		errs = append(errs, fmt.Errorf("pipeline.temperature %.2f is out of range [0, 2]", *p.Temperature))
	}
	if p.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_tokens %d must not be negative", p.MaxTokens))
	}
	if p.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("pipeline.retry_backoff %s must not be negative", p.RetryBackoff))
	}
	if p.TranscriptionTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.transcription_timeout %s must not be negative", p.TranscriptionTimeout))
	}
	if p.ExtractionTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.extraction_timeout %s must not be negative", p.ExtractionTimeout))
	}
	if p.TemplatesFile != "" {
		if _, err := os.Stat(p.TemplatesFile); err != nil {
			errs = append(errs, fmt.Errorf("pipeline.templates_file: %w", err))
		}
	}

	// Export
	if f := cfg.Export.DefaultFormat; f != "" && !slices.Contains(KnownExportFormats, strings.ToLower(f)) {
		errs = append(errs, fmt.Errorf("export.default_format %q is invalid; valid values: %s", f, strings.Join(KnownExportFormats, ", ")))
	}
	for i, f := range cfg.Export.Formats {
		if !slices.Contains(KnownExportFormats, strings.ToLower(f)) {
			errs = append(errs, fmt.Errorf("export.formats[%d] %q is invalid; valid values: %s", i, f, strings.Join(KnownExportFormats, ", ")))
		}
	}
	if len(cfg.Export.Formats) > 0 && cfg.Export.DefaultFormat != "" &&
		!slices.ContainsFunc(cfg.Export.Formats, func(f string) bool { return strings.EqualFold(f, cfg.Export.DefaultFormat) }) {
		errs = append(errs, fmt.Errorf("export.default_format %q is not listed in export.formats", cfg.Export.DefaultFormat))
	}

	return errors.Join(errs...)
}

// KnownExportFormats lists the document formats the service can render.
var KnownExportFormats = []string{"docx", "pdf", "txt"}

func validateEntries(kind string, primary ProviderEntry, fallbacks []ProviderEntry) []error {
	var errs []error
	validateProviderName(kind, primary.Name)
	for i, fb := range fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.%s_fallbacks[%d].name is required", kind, i))
			continue
		}
		validateProviderName(kind, fb.Name)
	}
	if primary.Name == "" && len(fallbacks) > 0 {
		errs = append(errs, fmt.Errorf("providers.%s_fallbacks is set but providers.%s is not configured", kind, kind))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
