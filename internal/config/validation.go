// internal/config/validation.go
package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/robfig/cron/v3"

	"github.com/valpere/StoreScrapexter/internal/scraper"
)

// ValidationError is one problem found in the configuration, addressed by its
// YAML path (e.g. "spiders.tacobell.schedule").
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Value != "" {
		return fmt.Sprintf("%s: %s (value: %s)", ve.Field, ve.Message, ve.Value)
	}
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// ValidationErrors collects every problem found by Validate.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for i, err := range ve {
		fmt.Fprintf(&b, "\n  %d. %s", i+1, err.Error())
	}
	return b.String()
}

// Fields returns the paths of all failing fields.
func (ve ValidationErrors) Fields() []string {
	fields := make([]string, len(ve))
	for i, err := range ve {
		fields[i] = err.Field
	}
	return fields
}

var (
	validLogLevels     = []string{"debug", "info", "warn", "error"}
	validLogFormats    = []string{"json", "console"}
	validDedupeBackend = []string{"memory", "redis"}
	fileOutputFormats  = []string{"json", "jsonl", "csv", "yaml", "excel", "sqlite"}
	dsnOutputFormats   = []string{"postgres", "mysql", "mongodb"}
)

// cronParser accepts the standard five-field expressions plus descriptors like @daily.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses a spider schedule expression.
func ParseSchedule(spec string) (cron.Schedule, error) {
	return cronParser.Parse(spec)
}

// Validate checks the whole configuration and returns ValidationErrors when
// anything is wrong.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, value, message string) {
		errs = append(errs, ValidationError{Field: field, Value: value, Message: message})
	}

	if !contains(validLogLevels, c.Log.Level) {
		add("log.level", c.Log.Level, "must be one of "+strings.Join(validLogLevels, ", "))
	}
	if !contains(validLogFormats, c.Log.Format) {
		add("log.format", c.Log.Format, "must be one of "+strings.Join(validLogFormats, ", "))
	}

	c.HTTP.validate("http", add)

	if c.Browser.Enabled && c.Browser.Timeout <= 0 {
		add("browser.timeout", c.Browser.Timeout.String(), "must be positive")
	}
	if c.Browser.ViewportWidth < 0 || c.Browser.ViewportHeight < 0 {
		add("browser.viewport", fmt.Sprintf("%dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight), "must not be negative")
	}

	if c.Progress.Enabled && c.Progress.Path == "" {
		add("progress.path", "", "is required when progress tracking is enabled")
	}

	if !contains(validDedupeBackend, c.Dedupe.Backend) {
		add("dedupe.backend", c.Dedupe.Backend, "must be one of "+strings.Join(validDedupeBackend, ", "))
	}
	if c.Dedupe.Backend == "redis" && c.Dedupe.Redis.Address == "" {
		add("dedupe.redis.address", "", "is required for the redis backend")
	}
	if c.Dedupe.Redis.TTL < 0 {
		add("dedupe.redis.ttl", c.Dedupe.Redis.TTL.String(), "must not be negative")
	}

	c.validateOutput(add)

	if c.Server.Address == "" {
		add("server.address", "", "is required")
	}
	if c.Server.RateLimit < 0 {
		add("server.rate_limit", fmt.Sprint(c.Server.RateLimit), "must not be negative")
	}

	names := make([]string, 0, len(c.Spiders))
	for name := range c.Spiders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sc := c.Spiders[name]
		prefix := "spiders." + name
		if sc.Schedule != "" {
			if _, err := ParseSchedule(sc.Schedule); err != nil {
				add(prefix+".schedule", sc.Schedule, err.Error())
			}
		}
		for field, value := range map[string]string{"base_url": sc.BaseURL, "api_url": sc.APIURL} {
			if value == "" {
				continue
			}
			if u, err := url.Parse(value); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				add(prefix+"."+field, value, "must be an absolute http(s) URL")
			}
		}
		if sc.HTTP != nil {
			sc.HTTP.validateOverride(prefix+".http", add)
		}
	}

	if len(errs) > 0 {
		sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
		return errs
	}
	return nil
}

func (h HTTPConfig) validate(prefix string, add func(field, value, message string)) {
	if h.Timeout == 0 {
		add(prefix+".timeout", h.Timeout.String(), "must be positive")
	}
	h.validateOverride(prefix, add)
}

// validateOverride checks the fields that may appear in a partial override.
func (h HTTPConfig) validateOverride(prefix string, add func(field, value, message string)) {
	if h.Timeout < 0 {
		add(prefix+".timeout", h.Timeout.String(), "must not be negative")
	}
	if h.RetryAttempts < 0 || h.RetryAttempts > 10 {
		add(prefix+".retry_attempts", fmt.Sprint(h.RetryAttempts), "must be between 0 and 10")
	}
	if h.RateLimit < 0 {
		add(prefix+".rate_limit", fmt.Sprint(h.RateLimit), "must not be negative")
	}
	if h.RateBurst < 0 {
		add(prefix+".rate_burst", fmt.Sprint(h.RateBurst), "must not be negative")
	}
	if h.Concurrency < 0 || h.Concurrency > 64 {
		add(prefix+".concurrency", fmt.Sprint(h.Concurrency), "must be between 0 and 64")
	}
	for i, raw := range h.Proxies {
		if _, err := scraper.ParseProxy(raw); err != nil {
			add(fmt.Sprintf("%s.proxies[%d]", prefix, i), raw, err.Error())
		}
	}
}

func (c *Config) validateOutput(add func(field, value, message string)) {
	out := c.Output
	switch {
	case contains(fileOutputFormats, out.Format):
		if out.File == "" && out.Dir == "" {
			add("output.file", "", "file or dir is required for "+out.Format+" output")
		}
	case contains(dsnOutputFormats, out.Format):
		if out.DSN == "" {
			add("output.dsn", "", "is required for "+out.Format+" output")
		}
	default:
		valid := append(append([]string{}, fileOutputFormats...), dsnOutputFormats...)
		add("output.format", out.Format, "must be one of "+strings.Join(valid, ", "))
	}
	if out.BatchSize < 0 {
		add("output.batch_size", fmt.Sprint(out.BatchSize), "must not be negative")
	}
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
