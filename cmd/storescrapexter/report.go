// cmd/storescrapexter/report.go
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/StoreScrapexter/internal/quality"
)

func reportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "report <file...>",
		Short: "Write a data-quality report for exported JSON or JSONL files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make(quality.Summary, 0, len(args))
			for _, path := range args {
				r, err := quality.AnalyzeFile(path)
				if err != nil {
					return err
				}
				reports = append(reports, r)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create report file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := writeReports(out, reports); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", output)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the markdown report to a file")
	return cmd
}

func writeReports(w io.Writer, reports quality.Summary) error {
	if len(reports) > 1 {
		if _, err := io.WriteString(w, reports.Markdown()+"\n"); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	for _, r := range reports {
		if _, err := io.WriteString(w, r.Markdown()+"\n"); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	return nil
}
