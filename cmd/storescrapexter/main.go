// cmd/storescrapexter/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/errors"
	"github.com/valpere/StoreScrapexter/internal/spiders"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Version information (set by build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// app holds the state shared by every command.
type app struct {
	configPath string
	verbose    bool
	errors     *errors.Service
	registry   *spiders.Registry
}

func newApp() *app {
	return &app{
		errors:   errors.NewService(),
		registry: spiders.Default(),
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "storescrapexter",
		Short:         "StoreScrapexter collects retail store locations into one normalized shape.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.errors.WithVerbose(a.verbose)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "configuration file (defaults apply when omitted)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output and debug logging")

	root.AddCommand(
		a.runCommand(),
		a.listCommand(),
		a.validateCommand(),
		a.templateCommand(),
		hoursCommand(),
		reportCommand(),
		a.serveCommand(),
		versionCommand(),
	)
	return root
}

// loadConfig reads --config, or the defaults when it is empty, and
// reconfigures logging from the result.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath == "" {
		if err := config.LoadDotEnv(config.DotEnvFile); err != nil {
			return nil, err
		}
		cfg = config.Default()
	} else if cfg, err = config.LoadFromFile(a.configPath); err != nil {
		return nil, err
	}

	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if err := utils.Configure(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, nil
}

// execute runs the CLI and maps the error to an exit code.
func execute(ctx context.Context, a *app, args []string, stdout, stderr io.Writer) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprint(stderr, a.errors.FormatErrorForCLI(err))
		return a.errors.GetExitCode(err)
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newApp(), os.Args[1:], os.Stdout, os.Stderr)
	stop()
	_ = utils.Sync()
	os.Exit(code)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "StoreScrapexter %s\n", version)
			fmt.Fprintf(out, "Build time: %s\n", buildTime)
			fmt.Fprintf(out, "Git commit: %s\n", gitCommit)
		},
	}
}
