// internal/utils/utils_test.go
package utils

import (
	"testing"
	"time"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://WWW.Example.com:443/stores/", "https://www.example.com/stores"},
		{"http://example.com:80", "http://example.com/"},
		{"https://example.com/a?b=2&a=1#top", "https://example.com/a?a=1&b=2"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.input)
		if err != nil {
			t.Fatalf("NormalizeURL(%q) failed: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestIsValidURL(t *testing.T) {
	tests := map[string]bool{
		"https://example.com/store/1": true,
		"http://example.com":          true,
		"/store/1":                    false,
		"ftp://example.com":           false,
		"":                            false,
	}
	for input, want := range tests {
		if got := IsValidURL(input); got != want {
			t.Errorf("IsValidURL(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  1 Main St\n\t Springfield  "); got != "1 Main St Springfield" {
		t.Errorf("CleanText = %q", got)
	}
}

func TestHashString(t *testing.T) {
	a, b := HashString("store"), HashString("store")
	if a != b || len(a) != 64 {
		t.Errorf("expected stable 64-char hex digest, got %q", a)
	}
	if a == HashString("other") {
		t.Error("expected different inputs to hash differently")
	}
}

func TestGenerateOutputFileName(t *testing.T) {
	now := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name, ext, expected string
	}{
		{"walmart", "json", "walmart-20240309.json"},
		{"taco/bell", ".csv", "taco_bell-20240309.csv"},
		{"...", "jsonl", "output-20240309.jsonl"},
	}
	for _, tt := range tests {
		if got := GenerateOutputFileName(tt.name, tt.ext, now); got != tt.expected {
			t.Errorf("GenerateOutputFileName(%q, %q) = %q, want %q", tt.name, tt.ext, got, tt.expected)
		}
	}
}

func TestConfigure(t *testing.T) {
	for _, cfg := range []LogConfig{{Level: "debug", Format: "console"}, {Level: "warning", Format: "json"}} {
		if err := Configure(cfg); err != nil {
			t.Fatalf("Configure(%+v) failed: %v", cfg, err)
		}
	}
	defer Configure(LogConfig{Level: "info", Format: "json"})

	logger := NewComponentLogger("test").WithField("spider", "walmart").WithFields(map[string]interface{}{"run": 1})
	logger.Infof("run %d finished", 1)
	NewNopLogger().Error("discarded")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "debug",
		"WARN":    "warn",
		"warning": "warn",
		"error":   "error",
		"bogus":   "info",
	}
	for input, want := range tests {
		if got := parseLevel(input).String(); got != want {
			t.Errorf("parseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}
