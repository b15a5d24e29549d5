// cmd/storescrapexter/list.go
package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func (a *app) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the registered spiders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Spider", "Description", "Seeded", "Render", "Enabled", "Schedule"})
			for _, info := range a.registry.List() {
				sc := cfg.Spider(info.Name)
				t.AppendRow(table.Row{info.Name, info.Description, yesNo(info.Seeded), yesNo(info.Render), yesNo(sc.IsEnabled()), sc.Schedule})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
