// internal/config/watcher_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/valpere/StoreScrapexter/internal/utils"
)

func TestWatcher_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  format: json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path, utils.NewNopLogger())
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	changes := make(chan *Config, 4)
	w.OnChange(func(c *Config) { changes <- c })

	// An invalid edit is ignored.
	if err := os.WriteFile(path, []byte("output:\n  format: pdf\n"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-changes:
		t.Fatalf("invalid config must not be delivered, got %+v", c.Output)
	case <-time.After(2 * reloadDebounce):
	}

	if err := os.WriteFile(path, []byte("output:\n  format: csv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	select {
	case c := <-changes:
		if c.Output.Format != "csv" {
			t.Errorf("expected reloaded csv format, got %q", c.Output.Format)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("{}\n"), 0644)

	w, err := NewWatcher(path, utils.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}
