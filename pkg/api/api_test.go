// pkg/api/api_test.go
package api

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/valpere/StoreScrapexter/internal/spiders"
)

func TestParseHours(t *testing.T) {
	got := ParseHours("Open Daily 6am - 11pm")
	want := Hours{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		want[day] = Interval{Open: "6:00 am", Close: "11:00 pm"}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseHours mismatch (-want +got):\n%s", diff)
	}
}

func TestClient(t *testing.T) {
	client, err := NewClient(nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if len(client.Spiders()) == 0 {
		t.Error("expected built-in spiders")
	}

	_, err = client.Run(context.Background(), "nope")
	if !stderrors.Is(err, spiders.ErrUnknownSpider) {
		t.Errorf("expected ErrUnknownSpider, got %v", err)
	}
}

func TestNewClient_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output.Format = "parquet"
	if _, err := NewClient(cfg); err == nil {
		t.Error("expected invalid configuration to be rejected")
	}
}

func TestAnalyze(t *testing.T) {
	report, err := Analyze("inline", []Store{{Name: "Only name"}})
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 1 || report.Source != "inline" {
		t.Errorf("unexpected report: %+v", report)
	}
}
