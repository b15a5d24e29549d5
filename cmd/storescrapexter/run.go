// cmd/storescrapexter/run.go
package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/valpere/StoreScrapexter/internal/pipeline"
)

func (a *app) runCommand() *cobra.Command {
	var format, file string

	cmd := &cobra.Command{
		Use:   "run [spider...]",
		Short: "Crawl the named spiders, or every enabled spider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if format != "" {
				cfg.Output.Format = format
			}
			if file != "" {
				cfg.Output.File = file
			}
			if format != "" || file != "" {
				if err := cfg.Validate(); err != nil {
					return fmt.Errorf("invalid output override: %w", err)
				}
			}

			runner := pipeline.NewRunner(cfg,
				pipeline.WithRegistry(a.registry),
				pipeline.WithErrorService(a.errors),
			)
			names := args
			if len(names) == 0 {
				names = runner.EnabledSpiders()
			}
			if len(names) == 0 {
				return fmt.Errorf("no enabled spiders in configuration")
			}

			results, err := runner.RunAll(cmd.Context(), names)
			renderResults(cmd.OutOrStdout(), results)
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "override output.format")
	cmd.Flags().StringVarP(&file, "output", "o", "", "override output.file ({spider} is replaced)")
	return cmd
}

func renderResults(out io.Writer, results []*pipeline.RunResult) {
	if len(results) == 0 {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Spider", "Emitted", "Valid", "Invalid", "Duplicates", "Written", "Incomplete hours", "Duration", "Target", "Error"})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Spider, r.Emitted, r.Valid, r.Invalid, r.Duplicates, r.Written, r.IncompleteHours,
			r.Duration.Round(time.Millisecond), r.Target, r.Error,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
