// internal/config/config_test.go
package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadFromBytes_Defaults(t *testing.T) {
	config, err := LoadFromBytes([]byte("output:\n  format: csv\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}

	if config.Output.Format != "csv" {
		t.Errorf("expected csv output, got %q", config.Output.Format)
	}
	if config.HTTP.Timeout != 30*time.Second || config.HTTP.RetryAttempts != 3 {
		t.Errorf("unexpected http defaults: %+v", config.HTTP)
	}
	if len(config.HTTP.UserAgents) == 0 {
		t.Error("expected default user agents")
	}
	if !config.Browser.Headless || config.Browser.ViewportWidth != 1920 {
		t.Errorf("expected browser defaults, got %+v", config.Browser)
	}
	if config.Dedupe.Backend != "memory" {
		t.Errorf("expected memory dedupe, got %q", config.Dedupe.Backend)
	}
	if config.Server.Address != ":8080" {
		t.Errorf("expected default server address, got %q", config.Server.Address)
	}
}

func TestLoadFromBytes_BrowserPartial(t *testing.T) {
	config, err := LoadFromBytes([]byte("browser:\n  enabled: true\n"))
	if err != nil {
		t.Fatalf("LoadFromBytes failed: %v", err)
	}
	if !config.Browser.Enabled || !config.Browser.Headless || config.Browser.Timeout != 30*time.Second {
		t.Errorf("expected defaults kept beside enabled, got %+v", config.Browser)
	}
}

func TestLoadFromFile_DotEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
output:
  format: postgres
  dsn: ${STORESCRAPEXTER_TEST_DSN}
spiders:
  tacobell:
    schedule: "@daily"
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("STORESCRAPEXTER_TEST_DSN=postgres://localhost/stores\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("STORESCRAPEXTER_TEST_DSN") })

	config, err := LoadFromFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Output.DSN != "postgres://localhost/stores" {
		t.Errorf("expected DSN from .env, got %q", config.Output.DSN)
	}
	if config.Spider("tacobell").Schedule != "@daily" {
		t.Errorf("expected schedule, got %+v", config.Spider("tacobell"))
	}
}

func TestLoadFromFile_EnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("output:\n  format: json\n  dir: ${STORESCRAPEXTER_TEST_DIR}\n"), 0644)
	os.WriteFile(filepath.Join(dir, ".env"), []byte("STORESCRAPEXTER_TEST_DIR=from-dotenv\n"), 0644)
	t.Setenv("STORESCRAPEXTER_TEST_DIR", "from-env")

	config, err := LoadFromFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Output.Dir != "from-env" {
		t.Errorf("expected environment to win over .env, got %q", config.Output.Dir)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFromFile(""); err == nil {
		t.Error("expected error for empty filename")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		fields []string
	}{
		{
			name:   "bad log level",
			yaml:   "log:\n  level: loud\n",
			fields: []string{"log.level"},
		},
		{
			name:   "unknown output format",
			yaml:   "output:\n  format: xml\n",
			fields: []string{"output.format"},
		},
		{
			name:   "database output without dsn",
			yaml:   "output:\n  format: mongodb\n",
			fields: []string{"output.dsn"},
		},
		{
			name:   "redis without address",
			yaml:   "dedupe:\n  backend: redis\n",
			fields: []string{"dedupe.redis.address"},
		},
		{
			name: "spider problems",
			yaml: `
spiders:
  walmart:
    schedule: "every tuesday"
    base_url: "walmart.com"
    http:
      retry_attempts: 50
`,
			fields: []string{"spiders.walmart.base_url", "spiders.walmart.http.retry_attempts", "spiders.walmart.schedule"},
		},
		{
			name:   "negative http values",
			yaml:   "http:\n  timeout: -1s\n  rate_limit: -2\n",
			fields: []string{"http.rate_limit", "http.timeout"},
		},
		{
			name:   "bad proxy",
			yaml:   "http:\n  proxies:\n    - http://proxy.local:3128\n    - ftp://proxy.local\n",
			fields: []string{"http.proxies[1]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if diff := cmp.Diff(tt.fields, verrs.Fields()); diff != "" {
				t.Errorf("fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSpiderConfig_IsEnabled(t *testing.T) {
	off := false
	if !(SpiderConfig{}).IsEnabled() {
		t.Error("expected omitted enabled to default to true")
	}
	if (SpiderConfig{Enabled: &off}).IsEnabled() {
		t.Error("expected explicit false to disable")
	}
}

func TestSpiderHTTP(t *testing.T) {
	config := Default()
	config.HTTP.Headers = map[string]string{"Accept-Language": "en-US", "X-Global": "1"}
	config.Spiders = map[string]SpiderConfig{
		"walmart": {HTTP: &HTTPConfig{
			RateLimit: 0.5,
			Headers:   map[string]string{"Accept-Language": "en-GB"},
		}},
	}

	merged, err := config.SpiderHTTP("walmart")
	if err != nil {
		t.Fatalf("SpiderHTTP failed: %v", err)
	}
	if merged.RateLimit != 0.5 {
		t.Errorf("expected override rate limit, got %v", merged.RateLimit)
	}
	if merged.Timeout != config.HTTP.Timeout || merged.RetryAttempts != config.HTTP.RetryAttempts {
		t.Errorf("expected global timeout and retries, got %+v", merged)
	}
	want := map[string]string{"Accept-Language": "en-GB", "X-Global": "1"}
	if diff := cmp.Diff(want, merged.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
	if config.Spiders["walmart"].HTTP.Headers["X-Global"] != "" {
		t.Error("merge must not modify the override")
	}

	plain, err := config.SpiderHTTP("tjmaxx")
	if err != nil {
		t.Fatal(err)
	}
	if plain.RateLimit != config.HTTP.RateLimit {
		t.Errorf("expected global settings for spider without overrides, got %+v", plain)
	}

	client := merged.ClientConfig()
	if client.RateLimit != 0.5 || client.Timeout != config.HTTP.Timeout {
		t.Errorf("unexpected client config: %+v", client)
	}
}

func TestGenerateTemplate_RoundTrip(t *testing.T) {
	template := GenerateTemplate([]string{"tacobell", "walmart"})
	if err := template.Validate(); err != nil {
		t.Fatalf("template should be valid: %v", err)
	}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveToFile(template, path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if diff := cmp.Diff(template, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveToWriter_RejectsInvalid(t *testing.T) {
	config := Default()
	config.Output.Format = "pdf"
	var buf bytes.Buffer
	if err := SaveToWriter(config, &buf); err == nil {
		t.Error("expected invalid configuration to be rejected")
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for an invalid configuration")
	}
}
