// internal/config/types.go

// Package config loads, validates and watches the StoreScrapexter YAML
// configuration: global HTTP and browser settings, seeds, progress tracking,
// de-duplication, output and per-spider overrides.
package config

import (
	"time"

	"github.com/valpere/StoreScrapexter/internal/browser"
	"github.com/valpere/StoreScrapexter/internal/dedupe"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Config is the root of the configuration file.
type Config struct {
	Log      utils.LogConfig         `yaml:"log" json:"log"`
	HTTP     HTTPConfig              `yaml:"http" json:"http"`
	Browser  browser.BrowserConfig   `yaml:"browser" json:"browser"`
	Seeds    SeedsConfig             `yaml:"seeds" json:"seeds"`
	Progress ProgressConfig          `yaml:"progress" json:"progress"`
	Dedupe   DedupeConfig            `yaml:"dedupe" json:"dedupe"`
	Output   OutputConfig            `yaml:"output" json:"output"`
	Server   ServerConfig            `yaml:"server" json:"server"`
	Spiders  map[string]SpiderConfig `yaml:"spiders,omitempty" json:"spiders,omitempty"`
}

// HTTPConfig defines the HTTP client settings. Spiders may override any of them.
type HTTPConfig struct {
	Timeout       time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	RetryAttempts int               `yaml:"retry_attempts,omitempty" json:"retry_attempts,omitempty"`
	RetryDelay    time.Duration     `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	RateLimit     float64           `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"` // requests per second
	RateBurst     int               `yaml:"rate_burst,omitempty" json:"rate_burst,omitempty"`
	UserAgents    []string          `yaml:"user_agents,omitempty" json:"user_agents,omitempty"`
	Headers       map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Concurrency   int               `yaml:"concurrency,omitempty" json:"concurrency,omitempty"` // store pages fetched in parallel
	Proxies       []string          `yaml:"proxies,omitempty" json:"proxies,omitempty"`         // used round-robin
}

// SeedsConfig points at the zipcode seed file used by search-API spiders.
type SeedsConfig struct {
	Zipcodes string `yaml:"zipcodes" json:"zipcodes"`
}

// ProgressConfig controls the per-seed progress database.
type ProgressConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// DedupeConfig selects the de-duplication backend.
type DedupeConfig struct {
	Backend string             `yaml:"backend" json:"backend"` // "memory" or "redis"
	Redis   dedupe.RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// OutputConfig defines where stores are written.
type OutputConfig struct {
	Format string `yaml:"format" json:"format"`
	// Dir receives <spider>-YYYYMMDD.<ext> files when File is empty.
	Dir string `yaml:"dir,omitempty" json:"dir,omitempty"`
	// File may contain {spider}, replaced with the spider name.
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	DSN        string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
	Table      string `yaml:"table,omitempty" json:"table,omitempty"`
	Database   string `yaml:"database,omitempty" json:"database,omitempty"`
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty"`
	BatchSize  int    `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
}

// ServerConfig configures service mode.
type ServerConfig struct {
	Address         string        `yaml:"address" json:"address"`
	RateLimit       float64       `yaml:"rate_limit" json:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst" json:"rate_burst"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// SpiderConfig holds the per-spider settings.
type SpiderConfig struct {
	// Enabled defaults to true when omitted.
	Enabled  *bool       `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Schedule string      `yaml:"schedule,omitempty" json:"schedule,omitempty"` // cron expression
	BaseURL  string      `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIURL   string      `yaml:"api_url,omitempty" json:"api_url,omitempty"`
	Render   *bool       `yaml:"render,omitempty" json:"render,omitempty"`
	HTTP     *HTTPConfig `yaml:"http,omitempty" json:"http,omitempty"`
}

// IsEnabled reports whether the spider may run.
func (sc SpiderConfig) IsEnabled() bool {
	return sc.Enabled == nil || *sc.Enabled
}
