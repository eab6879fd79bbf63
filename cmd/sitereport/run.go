package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sitereport/internal/observe"
	"github.com/MrWong99/sitereport/internal/pipeline"
)

type runFlags struct {
	audio      string
	transcript string
	language   string
	review     bool
	format     string
	outDir     string
	asJSON     bool
}

func (c *cli) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one memo through the pipeline",
		Long: `Transcribe a recording (or take a transcript), pick a template, extract
the fields and print the report.

With --review the run pauses after classification and after extraction so the
template and the fields can be corrected. With --export the report is also
written to --out in the given format (the configured default when the flag has
no value).`,
		Example: `  sitereport run --audio memo.wav --export
  sitereport run --transcript "tour de sécurité zone B, aucun incident" --review`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (f.audio == "") == (f.transcript == "") {
				return errors.New("exactly one of --audio or --transcript is required")
			}
			if f.format == "-" {
				f.format = c.cfg.Export.DefaultFormat
			}
			return c.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.audio, "audio", "", "audio file to transcribe")
	fl.StringVar(&f.transcript, "transcript", "", "transcript text, skips transcription")
	fl.StringVar(&f.language, "language", "", "transcription language (default pipeline.language)")
	fl.BoolVar(&f.review, "review", false, "review template and fields before the report is assembled")
	fl.StringVar(&f.format, "export", "", "write the report in this format (docx, pdf, txt)")
	fl.Lookup("export").NoOptDefVal = "-"
	fl.StringVarP(&f.outDir, "out", "o", ".", "directory for exported files")
	fl.BoolVar(&f.asJSON, "json", false, "print the full run result as JSON")
	return cmd
}

func (c *cli) run(ctx context.Context, in io.Reader, out io.Writer, f runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := c.buildStack(observe.DefaultMetrics())
	if err != nil {
		return err
	}
	defer st.Close()

	input := pipeline.Input{Transcript: f.transcript, Language: f.language}
	if f.audio != "" {
		input.Audio, err = os.ReadFile(f.audio)
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
		input.Filename = filepath.Base(f.audio)
	}

	var mode pipeline.Mode = pipeline.Atomic{}
	if f.review {
		// Prompts go to stderr so stdout stays the report.
		mode = pipeline.Staged{Reviewer: newPromptReviewer(in, os.Stderr, st.templates)}
	}

	res, err := st.orch.Drive(ctx, mode, input)
	if err != nil {
		return err
	}

	if f.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(out, res.Document.RenderedText)
	}

	if f.format == "" {
		return nil
	}
	art, err := st.orch.Export(ctx, res.Document, strings.ToLower(f.format))
	if err != nil {
		// The report text is already printed; only the file is missing.
		return err
	}
	path := filepath.Join(f.outDir, art.Filename)
	if err := os.WriteFile(path, art.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("report exported", "path", path, "bytes", len(art.Data))
	return nil
}
