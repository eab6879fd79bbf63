// Package config provides the configuration schema, loader, and provider registry
// for the sitereport service.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Defaults applied by [Config.ApplyDefaults].
const (
	DefaultListenAddr           = ":8080"
	DefaultLanguage             = "fr"
	DefaultTemperature          = 0.1
	DefaultMaxTokens            = 1000
	DefaultRetryBackoff         = 500 * time.Millisecond
	DefaultTranscriptionTimeout = 60 * time.Second
	DefaultExtractionTimeout    = 30 * time.Second
	DefaultExportFormat         = "docx"
	DefaultServiceName          = "sitereport"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Export    ExportConfig    `yaml:"export"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network, logging and clock settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Timezone is an IANA zone name used for reference dates and the
	// "Généré le" stamp. Empty means the host's local zone.
	Timezone string `yaml:"timezone"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ProvidersConfig selects the speech-to-text and language-model backends.
// The primary entry is tried first; fallbacks are tried in order when the
// primary fails or its circuit breaker is open.
type ProvidersConfig struct {
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
	STT          ProviderEntry   `yaml:"stt"`
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig tunes the breaker placed in front of every provider.
// Zero values fall back to the resilience package defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific values (vertex project/region,
	// transcription language overrides, ...).
	Options map[string]any `yaml:"options"`
}

// PipelineConfig tunes the report pipeline.
type PipelineConfig struct {
	// Language is the transcription language hint. Default: "fr".
	Language string `yaml:"language"`

	// TemplatesFile optionally replaces the built-in template catalog.
	TemplatesFile string `yaml:"templates_file"`

	// Temperature for the extraction call. A pointer so an explicit 0 is kept.
	Temperature *float64 `yaml:"temperature"`

	MaxTokens            int           `yaml:"max_tokens"`
	RetryBackoff         time.Duration `yaml:"retry_backoff"`
	TranscriptionTimeout time.Duration `yaml:"transcription_timeout"`
	ExtractionTimeout    time.Duration `yaml:"extraction_timeout"`
}

// ExportConfig controls which document formats are offered.
type ExportConfig struct {
	// DefaultFormat is used by the CLI when --export is given without a value
	// and by the HTTP export route when no format query is set.
	DefaultFormat string `yaml:"default_format"`

	// Formats restricts the enabled exporters. Empty enables every
	// registered format.
	Formats []string `yaml:"formats"`
}

// TelemetryConfig configures the OpenTelemetry resource.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Pipeline.Language == "" {
		c.Pipeline.Language = DefaultLanguage
	}
	if c.Pipeline.Temperature == nil {
		t := DefaultTemperature
		c.Pipeline.Temperature = &t
	}
	if c.Pipeline.MaxTokens == 0 {
		c.Pipeline.MaxTokens = DefaultMaxTokens
	}
	if c.Pipeline.RetryBackoff == 0 {
		c.Pipeline.RetryBackoff = DefaultRetryBackoff
	}
	if c.Pipeline.TranscriptionTimeout == 0 {
		c.Pipeline.TranscriptionTimeout = DefaultTranscriptionTimeout
	}
	if c.Pipeline.ExtractionTimeout == 0 {
		c.Pipeline.ExtractionTimeout = DefaultExtractionTimeout
	}
	if c.Export.DefaultFormat == "" {
		c.Export.DefaultFormat = DefaultExportFormat
		if len(c.Export.Formats) > 0 {
			c.Export.DefaultFormat = c.Export.Formats[0]
		}
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}

// Location resolves Server.Timezone. Empty yields [time.Local].
func (c *Config) Location() (*time.Location, error) {
	if c.Server.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Server.Timezone)
}
