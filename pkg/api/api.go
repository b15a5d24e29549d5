// pkg/api/api.go

// Package api is the embeddable entry point to StoreScrapexter: load a
// configuration, run spiders, parse hours text and check exported data.
package api

import (
	"context"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/quality"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// LoadConfig loads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	return config.LoadFromFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// Client runs the built-in spiders.
type Client struct {
	runner *pipeline.Runner
}

// NewClient creates a client for cfg, or the defaults when cfg is nil.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{runner: pipeline.NewRunner(cfg)}, nil
}

// Spiders describes every registered spider.
func (c *Client) Spiders() []SpiderInfo {
	return c.runner.Registry().List()
}

// Run crawls one spider and writes its stores to the configured output.
func (c *Client) Run(ctx context.Context, spider string) (*RunResult, error) {
	return c.runner.Run(ctx, spider)
}

// RunAll crawls the given spiders, or every enabled one when none are named.
func (c *Client) RunAll(ctx context.Context, spiders ...string) ([]*RunResult, error) {
	if len(spiders) == 0 {
		spiders = c.runner.EnabledSpiders()
	}
	return c.runner.RunAll(ctx, spiders)
}

// ParseHours parses free-form opening hours such as "Mon-Sat 9am-9pm, Sun 10am-6pm".
func ParseHours(text string) Hours {
	return hours.NewParser(utils.NewNopLogger()).Parse(text)
}

// Analyze builds a data-quality report for stores.
func Analyze(source string, stores []Store) (*Report, error) {
	return quality.Analyze(source, stores)
}

// AnalyzeFile builds a data-quality report for an exported JSON or JSONL file.
func AnalyzeFile(path string) (*Report, error) {
	return quality.AnalyzeFile(path)
}
