package main

import (
	"fmt"

	"github.com/MrWong99/sitereport/internal/config"
	"github.com/MrWong99/sitereport/internal/extract"
	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/pipeline"
	"github.com/MrWong99/sitereport/internal/template"
)

// stack is everything a command needs to drive the pipeline.
type stack struct {
	orch      *pipeline.Orchestrator
	templates *template.Registry
	providers *providers
}

func (s *stack) Close() error { return s.providers.Close() }

// buildStack instantiates providers, exporters and the orchestrator from the
// loaded configuration.
func (c *cli) buildStack(met *observe.Metrics) (*stack, error) {
	cfg := c.cfg
	tmpl, err := c.templates()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	exporters, err := reg.CreateExporters(cfg.Export.Formats)
	if err != nil {
		return nil, fmt.Errorf("create exporters: %w", err)
	}

	ps, err := buildProviders(cfg, reg, met)
	if err != nil {
		return nil, err
	}

	opts := []extract.Option{
		extract.WithMaxTokens(cfg.Pipeline.MaxTokens),
		extract.WithRetryBackoff(cfg.Pipeline.RetryBackoff),
	}
	if cfg.Pipeline.Temperature != nil {
		opts = append(opts, extract.WithTemperature(*cfg.Pipeline.Temperature))
	}

	orch, err := pipeline.New(pipeline.Config{
		Registry:             tmpl,
		STT:                  ps.STT,
		Extractor:            extract.New(ps.LLM, tmpl, opts...),
		Exporters:            exporters,
		Metrics:              met,
		STTName:              ps.STTName,
		LLMName:              ps.LLMName,
		Language:             cfg.Pipeline.Language,
		TranscriptionTimeout: cfg.Pipeline.TranscriptionTimeout,
		ExtractionTimeout:    cfg.Pipeline.ExtractionTimeout,
		Location:             loc,
	})
	if err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return &stack{orch: orch, templates: tmpl, providers: ps}, nil
}
