package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sitereport/internal/api"
	"github.com/MrWong99/sitereport/internal/config"
	"github.com/MrWong99/sitereport/internal/health"
	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/resilience"
)

// Version is reported in telemetry. Set with -ldflags "-X main.Version=...".
var Version = "dev"

const shutdownTimeout = 15 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the JSON API together with /healthz, /readyz and /metrics.

Shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				c.cfg.Server.ListenAddr = addr
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "override server.listen_addr")
	return cmd
}

func (c *cli) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := c.cfg
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: Version,
		Registerer:     promReg,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	met, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	st, err := c.buildStack(met)
	if err != nil {
		return err
	}
	defer st.Close()

	checks := []health.Checker{
		health.Templates(st.templates),
		health.Providers("stt", st.providers.STTStatus),
	}
	if st.providers.LLMStatus != nil {
		checks = append(checks, health.Providers("llm", st.providers.LLMStatus))
	}

	mux := http.NewServeMux()
	api.New(st.orch, api.WithDefaultFormat(cfg.Export.DefaultFormat)).Register(mux)
	health.New(checks...).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(met)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		// Transcription and extraction deadlines bound the handlers; leave
		// headroom for the export on top.
		WriteTimeout: cfg.Pipeline.TranscriptionTimeout + 2*cfg.Pipeline.ExtractionTimeout + 30*time.Second,
	}

	printStartupSummary(os.Stdout, cfg, st)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr, "tls", cfg.Server.TLS != nil)
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("goodbye")
	return nil
}

// ── Startup summary ────────────────────────────────────────────────────────────

func printStartupSummary(w io.Writer, cfg *config.Config, st *stack) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║       sitereport · startup summary    ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "LLM", chain(st.providers.LLMStatus))
	printRow(w, "STT", chain(st.providers.STTStatus))
	printRow(w, "Templates", fmt.Sprintf("%d", st.templates.Len()))
	printRow(w, "Formats", strings.Join(st.orch.ExportFormats(), ","))
	printRow(w, "Language", cfg.Pipeline.Language)
	printRow(w, "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printRow(w io.Writer, label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if r := []rune(value); len(r) > 19 {
		value = string(r[:18]) + "…"
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}

// chain lists the provider names of a failover group in call order.
func chain(status func() []resilience.EntryStatus) string {
	if status == nil {
		return ""
	}
	var names []string
	for _, e := range status() {
		names = append(names, strings.TrimPrefix(strings.TrimPrefix(e.Name, "llm/"), "stt/"))
	}
	return strings.Join(names, ">")
}
