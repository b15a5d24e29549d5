// internal/browser/browser_test.go
package browser

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"
)

func TestDefaultBrowserConfig(t *testing.T) {
	config := DefaultBrowserConfig()

	if config.Enabled {
		t.Error("Expected browser rendering to be disabled by default")
	}
	if !config.Headless {
		t.Error("Expected headless mode by default")
	}
	if !config.BlockResources {
		t.Error("Expected resource blocking by default")
	}
	if config.ViewportWidth != 1920 || config.ViewportHeight != 1080 {
		t.Errorf("Unexpected viewport %dx%d", config.ViewportWidth, config.ViewportHeight)
	}
}

func TestAllocatorOptions(t *testing.T) {
	base := len(allocatorOptions(&BrowserConfig{}))
	full := len(allocatorOptions(&BrowserConfig{
		Headless:       true,
		ExecPath:       "/usr/bin/chromium",
		UserDataDir:    t.TempDir(),
		UserAgent:      "TestAgent/1.0",
		ViewportWidth:  800,
		ViewportHeight: 600,
		BlockResources: true,
	}))
	if full-base != 6 {
		t.Errorf("Expected 6 extra options, got %d", full-base)
	}
}

func TestRendererTasks(t *testing.T) {
	r := NewRenderer(&BrowserConfig{}, nil)
	defer r.Close()

	var html string
	// navigate, wait body, outer html
	if n := len(r.tasks("https://example.com", &html)); n != 3 {
		t.Errorf("Expected 3 tasks, got %d", n)
	}

	r.config = &BrowserConfig{BlockResources: true, WaitForElement: "#stores", WaitDelay: time.Millisecond}
	if n := len(r.tasks("https://example.com", &html)); n != 7 {
		t.Errorf("Expected 7 tasks, got %d", n)
	}
}

func TestRendererStats(t *testing.T) {
	r := NewRenderer(nil, nil)
	defer r.Close()

	r.record(100*time.Millisecond, nil)
	r.record(300*time.Millisecond, nil)
	r.record(time.Second, context.DeadlineExceeded)
	r.record(time.Second, errors.New("boom"))

	stats := r.Stats()
	if stats.PagesLoaded != 2 {
		t.Errorf("Expected 2 pages, got %d", stats.PagesLoaded)
	}
	if stats.AverageLoadTime != 200*time.Millisecond {
		t.Errorf("Expected 200ms average, got %v", stats.AverageLoadTime)
	}
	if stats.Errors != 2 || stats.TimeoutsOccurred != 1 {
		t.Errorf("Unexpected error counts %+v", stats)
	}
}

func TestRenderer_GetDocument(t *testing.T) {
	if _, err := exec.LookPath("google-chrome"); err != nil {
		if _, err := exec.LookPath("chromium"); err != nil {
			t.Skip("Chrome not available")
		}
	}
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	r := NewRenderer(&BrowserConfig{Headless: true, Timeout: 30 * time.Second}, nil)
	defer r.Close()

	doc, err := r.GetDocument(context.Background(), "data:text/html,<html><body><h1>Rendered</h1></body></html>")
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if got := doc.Find("h1").Text(); got != "Rendered" {
		t.Errorf("Expected rendered heading, got %q", got)
	}
}
