// internal/scheduler/scheduler_test.go
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

var names = []string{"dunkindonuts", "sweetgreen", "tacobell", "tjmaxx", "walmart"}

func testConfig(schedules map[string]string) *config.Config {
	cfg := config.Default()
	cfg.Spiders = make(map[string]config.SpiderConfig)
	for name, spec := range schedules {
		cfg.Spiders[name] = config.SpiderConfig{Schedule: spec}
	}
	return cfg
}

func scheduledNames(s *Scheduler) []string {
	var out []string
	for _, e := range s.Entries() {
		out = append(out, e.Spider)
	}
	return out
}

func TestApply(t *testing.T) {
	s := New(func(context.Context, string) error { return nil }, utils.NewNopLogger())

	cfg := testConfig(map[string]string{"tacobell": "0 3 * * 1", "walmart": "@daily", "tjmaxx": "@hourly"})
	disabled := false
	tj := cfg.Spiders["tjmaxx"]
	tj.Enabled = &disabled
	cfg.Spiders["tjmaxx"] = tj

	if err := s.Apply(cfg, names); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"tacobell", "walmart"}, scheduledNames(s)); diff != "" {
		t.Errorf("scheduled mismatch (-want +got):\n%s", diff)
	}
	tacoID := s.entries["tacobell"].id
	walmartID := s.entries["walmart"].id

	// Changing one schedule re-creates only that entry; dropping one removes it.
	if err := s.Apply(testConfig(map[string]string{"tacobell": "0 3 * * 1", "walmart": "@weekly"}), names); err != nil {
		t.Fatal(err)
	}
	if s.entries["tacobell"].id != tacoID {
		t.Error("unchanged schedule must keep its entry")
	}
	if s.entries["walmart"].id == walmartID {
		t.Error("changed schedule must get a new entry")
	}
	if got := s.Entries()[1].Schedule; got != "@weekly" {
		t.Errorf("expected walmart @weekly, got %q", got)
	}

	if err := s.Apply(testConfig(nil), names); err != nil {
		t.Fatal(err)
	}
	if len(s.Entries()) != 0 || len(s.cron.Entries()) != 0 {
		t.Error("expected every entry removed")
	}
}

func TestApply_InvalidSchedule(t *testing.T) {
	s := New(func(context.Context, string) error { return nil }, utils.NewNopLogger())
	err := s.Apply(testConfig(map[string]string{"tacobell": "not a cron", "walmart": "*/5 * * * *"}), names)
	if err == nil {
		t.Fatal("expected error for the bad expression")
	}
	if diff := cmp.Diff([]string{"walmart"}, scheduledNames(s)); diff != "" {
		t.Errorf("valid schedules must still apply (-want +got):\n%s", diff)
	}
}

func TestJob_RunsAndSkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 1)
	var calls int32
	s := New(func(ctx context.Context, spider string) error {
		atomic.AddInt32(&calls, 1)
		started <- spider
		<-release
		return nil
	}, utils.NewNopLogger())

	if err := s.Apply(testConfig(map[string]string{"walmart": "@daily"}), names); err != nil {
		t.Fatal(err)
	}
	job := s.cron.Entry(s.entries["walmart"].id).WrappedJob

	done := make(chan struct{})
	go func() {
		job.Run()
		close(done)
	}()
	select {
	case got := <-started:
		if got != "walmart" {
			t.Errorf("run called with %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}

	job.Run() // still running, must be skipped
	close(release)
	<-done

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected one run, got %d", n)
	}
}

func TestJob_SkipsSpiderRunningElsewhere(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	busy := &pipeline.AlreadyRunningError{Run: pipeline.ActiveRun{RunID: "api-run", Spider: "walmart"}}
	failing := fmt.Errorf("crawl failed: %w", errors.New("boom"))

	var result error
	s := New(func(context.Context, string) error { return result }, utils.NewZapLogger(zap.New(core)))
	if err := s.Apply(testConfig(map[string]string{"walmart": "@daily"}), names); err != nil {
		t.Fatal(err)
	}
	job := s.cron.Entry(s.entries["walmart"].id).WrappedJob

	result = busy
	job.Run()
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).Len(); n != 0 {
		t.Errorf("expected a busy spider to be skipped without errors, got %d error logs", n)
	}
	if logs.FilterMessageSnippet("skipping scheduled run").Len() != 1 {
		t.Errorf("expected one skip message, got %v", logs.All())
	}

	result = failing
	job.Run()
	if n := logs.FilterLevelExact(zapcore.ErrorLevel).FilterMessageSnippet("boom").Len(); n != 1 {
		t.Errorf("expected the failure to be logged as an error, got %d", n)
	}
}

func TestStartStop(t *testing.T) {
	s := New(func(context.Context, string) error { return nil }, utils.NewNopLogger())
	if err := s.Apply(testConfig(map[string]string{"tacobell": "@every 1h"}), names); err != nil {
		t.Fatal(err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if s.ctx.Err() == nil {
		t.Error("expected run context to be cancelled")
	}
}
