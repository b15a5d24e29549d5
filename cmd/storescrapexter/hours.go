// cmd/storescrapexter/hours.go
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

func hoursCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "hours <text>",
		Short: "Parse free-form business hours text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			h := hours.NewParser(utils.NewComponentLogger("hours")).Parse(text)
			out := cmd.OutOrStdout()

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(h)
			}

			fmt.Fprintf(out, "Normalized: %s\n", hours.Normalize(text))
			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.AppendHeader(table.Row{"Day", "Open", "Close"})
			for _, day := range hours.Week {
				iv, ok := h[day]
				if !ok {
					t.AppendRow(table.Row{day, "-", "-"})
					continue
				}
				t.AppendRow(table.Row{day, iv.Open, iv.Close})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed hours as JSON")
	return cmd
}
