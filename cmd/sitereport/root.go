package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sitereport/internal/config"
	"github.com/MrWong99/sitereport/internal/template"
)

const defaultConfigPath = "sitereport.yaml"

// cli holds state shared by all subcommands.
type cli struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "sitereport",
		Short: "Turn spoken site memos into structured reports",
		Long: `sitereport - field memo to structured report.

A recorded memo is transcribed, matched to a report template (incident,
safety tour, task assignment or generic), its fields are extracted by a
language model, dates and times are normalized, and a stable report is
assembled. Extraction never fails a run: when the model is unavailable or
answers garbage, the report is produced with empty fields marked for review.

Configuration is read from sitereport.yaml (override with --config). When
the default file does not exist, built-in defaults are used. ${VAR}
references in the file are expanded from the environment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", defaultConfigPath, "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override server.log_level (debug, info, warn, error)")

	root.AddCommand(
		c.serveCmd(),
		c.runCmd(),
		c.classifyCmd(),
		c.templatesCmd(),
	)
	return root
}

// load reads the configuration and installs the default logger.
func (c *cli) load(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config"):
		cfg, err = config.LoadFromReader(strings.NewReader(""))
		if err != nil {
			return err
		}
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("config file %q not found", c.configPath)
	default:
		return err
	}

	if c.logLevel != "" {
		lvl := config.LogLevel(c.logLevel)
		if !lvl.IsValid() {
			return fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", c.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}
	c.cfg = cfg
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	return nil
}

// templates returns the configured catalog.
func (c *cli) templates() (*template.Registry, error) {
	if f := c.cfg.Pipeline.TemplatesFile; f != "" {
		reg, err := template.LoadFile(f)
		if err != nil {
			return nil, err
		}
		slog.Info("templates loaded", "file", f, "count", reg.Len())
		return reg, nil
	}
	return template.BuiltinRegistry(), nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
