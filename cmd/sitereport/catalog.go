package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/sitereport/internal/template"
)

func (c *cli) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [TRANSCRIPT...]",
		Short: "Show which template a transcript would use",
		Long: `Score every template against the transcript and print the winner. The
transcript is read from the arguments, or from stdin when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			reg, err := c.templates()
			if err != nil {
				return err
			}
			return classify(cmd.OutOrStdout(), reg, text)
		},
	}
}

func classify(w io.Writer, reg *template.Registry, text string) error {
	cl := template.NewClassifier(reg)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEMPLATE\tPRIORITY\tMATCHED")
	for _, s := range cl.Scores(text) {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.TemplateID, s.Priority, strings.Join(s.Matched, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n→ %s\n", cl.Classify(text))
	return err
}

func (c *cli) templatesCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the report templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := c.templates()
			if err != nil {
				return err
			}
			return listTemplates(cmd.OutOrStdout(), reg, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "also list keywords and fields")
	return cmd
}

func listTemplates(w io.Writer, reg *template.Registry, verbose bool) error {
	def := reg.Default().ID
	for _, d := range reg.All() {
		mark := ""
		if d.ID == def {
			mark = " (default)"
		}
		fmt.Fprintf(w, "%s%s\n  %s\n", d.ID, mark, d.Label)
		if !verbose {
			continue
		}
		if len(d.Keywords) > 0 {
			fmt.Fprintf(w, "  keywords: %s\n", strings.Join(d.Keywords, ", "))
		}
		for _, f := range d.Fields {
			attrs := string(f.Kind)
			if attrs == "" {
				attrs = string(template.KindText)
			}
			if f.Required {
				attrs += ", required"
			}
			fmt.Fprintf(w, "    - %s (%s)\n", f.Name, attrs)
		}
	}
	return nil
}
