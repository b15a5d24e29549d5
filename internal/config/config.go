// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/valpere/StoreScrapexter/internal/browser"
	"github.com/valpere/StoreScrapexter/internal/dedupe"
	"github.com/valpere/StoreScrapexter/internal/scraper"
)

// DotEnvFile is loaded from the configuration directory before ${VAR} expansion.
const DotEnvFile = ".env"

// LoadFromFile loads configuration from a YAML file. A .env file next to it is
// loaded first; variables already set in the environment win.
func LoadFromFile(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("configuration filename cannot be empty")
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", filename)
	}

	if err := LoadDotEnv(filepath.Join(filepath.Dir(filename), DotEnvFile)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadDotEnv loads path into the environment when it exists.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromBytes loads configuration from YAML bytes
func LoadFromBytes(data []byte) (*Config, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("configuration data cannot be empty")
	}

	expanded := os.ExpandEnv(string(data))

	// Browser defaults are prefilled so boolean fields left out of the file
	// keep their defaults.
	config := Config{Browser: *browser.DefaultBrowserConfig()}
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// LoadFromReader loads configuration from an io.Reader
func LoadFromReader(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("reader cannot be nil")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read from reader: %w", err)
	}
	return LoadFromBytes(data)
}

// Default returns a configuration with every default applied and no spider overrides.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

// SaveToFile saves configuration to a YAML file
func SaveToFile(config *Config, filename string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	if err := SaveToWriter(config, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SaveToWriter validates config and writes it as YAML
func SaveToWriter(config *Config, writer io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if writer == nil {
		return fmt.Errorf("writer cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}
	return encoder.Close()
}

// GenerateTemplate returns a starter configuration covering every section and
// one entry per known spider.
func GenerateTemplate(spiders []string) *Config {
	config := Default()
	config.Seeds.Zipcodes = "data/zipcodes.json"
	config.Progress.Enabled = true
	config.Output.Dir = "output"

	config.Spiders = make(map[string]SpiderConfig, len(spiders))
	for _, name := range spiders {
		config.Spiders[name] = SpiderConfig{Schedule: "0 3 * * 1"}
	}
	return config
}

// applyDefaults applies default values to the configuration
func applyDefaults(config *Config) {
	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "json"
	}

	if config.HTTP.Timeout == 0 {
		config.HTTP.Timeout = 30 * time.Second
	}
	if config.HTTP.RetryAttempts == 0 {
		config.HTTP.RetryAttempts = 3
	}
	if config.HTTP.RetryDelay == 0 {
		config.HTTP.RetryDelay = time.Second
	}
	if config.HTTP.RateLimit == 0 {
		config.HTTP.RateLimit = 2
	}
	if config.HTTP.RateBurst == 0 {
		config.HTTP.RateBurst = 1
	}
	if config.HTTP.Concurrency == 0 {
		config.HTTP.Concurrency = 4
	}
	if len(config.HTTP.UserAgents) == 0 {
		config.HTTP.UserAgents = scraper.DefaultUserAgents()
	}

	if config.Browser == (browser.BrowserConfig{}) {
		config.Browser = *browser.DefaultBrowserConfig()
	}
	if config.Browser.Timeout == 0 {
		config.Browser.Timeout = 30 * time.Second
	}

	if config.Progress.Path == "" {
		config.Progress.Path = ".storescrapexter/progress.db"
	}

	if config.Dedupe.Backend == "" {
		config.Dedupe.Backend = "memory"
	}
	if config.Dedupe.Redis.Prefix == "" {
		config.Dedupe.Redis.Prefix = dedupe.DefaultRedisPrefix
	}

	if config.Output.Format == "" {
		config.Output.Format = "json"
	}
	if config.Output.Dir == "" && config.Output.File == "" {
		config.Output.Dir = "."
	}

	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.RateLimit == 0 {
		config.Server.RateLimit = 10
	}
	if config.Server.RateBurst == 0 {
		config.Server.RateBurst = 20
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 15 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}
}

// Spider returns the settings for name; unknown names get the zero value,
// which is enabled with no overrides.
func (c *Config) Spider(name string) SpiderConfig {
	return c.Spiders[name]
}

// SpiderHTTP returns the spider's HTTP overrides merged over the global
// settings. Only non-zero override fields win; headers are merged key by key.
func (c *Config) SpiderHTTP(name string) (HTTPConfig, error) {
	var merged HTTPConfig
	if override := c.Spider(name).HTTP; override != nil {
		merged = *override
		if override.Headers != nil {
			merged.Headers = make(map[string]string, len(override.Headers))
			for k, v := range override.Headers {
				merged.Headers[k] = v
			}
		}
	}
	if err := mergo.Merge(&merged, c.HTTP); err != nil {
		return HTTPConfig{}, fmt.Errorf("failed to merge http settings for %s: %w", name, err)
	}
	return merged, nil
}

// ClientConfig converts the settings for scraper.NewHTTPClient.
func (h HTTPConfig) ClientConfig() scraper.ClientConfig {
	return scraper.ClientConfig{
		Timeout:       h.Timeout,
		RetryAttempts: h.RetryAttempts,
		RetryDelay:    h.RetryDelay,
		UserAgents:    h.UserAgents,
		Headers:       h.Headers,
		RateLimit:     h.RateLimit,
		RateBurst:     h.RateBurst,
		Proxies:       h.Proxies,
	}
}
