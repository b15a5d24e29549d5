// cmd/storescrapexter/config.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/StoreScrapexter/internal/config"
)

func (a *app) validateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(args[0])
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			for name := range cfg.Spiders {
				if _, ok := a.registry.Info(name); !ok {
					return config.ValidationErrors{{
						Field:   "spiders." + name,
						Value:   name,
						Message: "unknown spider",
					}}
				}
			}

			out := cmd.OutOrStdout()
			if a.verbose {
				fmt.Fprintf(out, "Configuration details:\n")
				fmt.Fprintf(out, "  Output format: %s\n", cfg.Output.Format)
				fmt.Fprintf(out, "  Dedupe backend: %s\n", cfg.Dedupe.Backend)
				fmt.Fprintf(out, "  Browser enabled: %t\n", cfg.Browser.Enabled)
				fmt.Fprintf(out, "  Spider overrides: %d\n", len(cfg.Spiders))
			}
			fmt.Fprintf(out, "✓ Configuration file '%s' is valid\n", args[0])
			return nil
		},
	}
}

func (a *app) templateCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate a configuration template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := config.GenerateTemplate(a.registry.Names())
			if output == "" {
				return config.SaveToWriter(tmpl, cmd.OutOrStdout())
			}
			if err := config.SaveToFile(tmpl, output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Template written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the template to a file instead of stdout")
	return cmd
}
