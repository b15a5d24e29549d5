// internal/monitoring/monitoring_test.go
package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/valpere/StoreScrapexter/internal/scraper"
)

var _ scraper.RequestObserver = (*MetricsManager)(nil)

func TestMetricsManager(t *testing.T) {
	mm := NewMetricsManager(MetricsConfig{})

	mm.ObserveRequest("GET", "example.com", 200, 20*time.Millisecond)
	mm.ObserveRequest("GET", "example.com", 200, 30*time.Millisecond)
	mm.ObserveRequest("GET", "example.com", 503, 10*time.Millisecond)

	if got := testutil.ToFloat64(mm.requestsTotal.WithLabelValues("GET", "example.com", "200")); got != 2 {
		t.Errorf("expected 2 successful requests, got %v", got)
	}

	mm.RecordStores("tacobell", OutcomeEmitted, 10)
	mm.RecordStores("tacobell", OutcomeDuplicate, 3)
	mm.RecordStores("tacobell", OutcomeInvalid, 0)
	if got := testutil.ToFloat64(mm.storesTotal.WithLabelValues("tacobell", OutcomeEmitted)); got != 10 {
		t.Errorf("expected 10 emitted, got %v", got)
	}

	mm.RecordRunStart("tacobell")
	if got := testutil.ToFloat64(mm.runsInFlight.WithLabelValues("tacobell")); got != 1 {
		t.Errorf("expected one run in flight, got %v", got)
	}
	mm.RecordRunComplete("tacobell", time.Second, nil)
	mm.RecordRunStart("tacobell")
	mm.RecordRunComplete("tacobell", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(mm.runsInFlight.WithLabelValues("tacobell")); got != 0 {
		t.Errorf("expected no runs in flight, got %v", got)
	}
	if got := testutil.ToFloat64(mm.runsTotal.WithLabelValues("tacobell", RunFailed)); got != 1 {
		t.Errorf("expected one failed run, got %v", got)
	}
	if got := testutil.ToFloat64(mm.lastRunSuccess.WithLabelValues("tacobell")); got == 0 {
		t.Error("expected last success timestamp to be set")
	}
}

func TestMetricsHandler(t *testing.T) {
	mm := NewMetricsManager(MetricsConfig{Namespace: "test"})
	mm.RecordStores("walmart", OutcomeWritten, 5)
	mm.RecordOutput("json", time.Millisecond)

	rec := httptest.NewRecorder()
	mm.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`test_spider_stores_total{outcome="written",spider="walmart"} 5`,
		"test_output_write_duration_seconds",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Registering the same names twice panics on a shared registry.
	NewMetricsManager(MetricsConfig{EnableGoMetrics: true})
	NewMetricsManager(MetricsConfig{EnableGoMetrics: true})
}

func TestHealthManager(t *testing.T) {
	hm := NewHealthManager(HealthConfig{Version: "test"})
	var redisErr error
	hm.RegisterCheck(PingHealthCheck("redis", true, func(ctx context.Context) error { return redisErr }))
	hm.RegisterCheck(GoroutineHealthCheck(1 << 20))

	if got := hm.GetHealth().Status; got != HealthStatusDegraded {
		t.Errorf("expected degraded before checks ran, got %s", got)
	}

	hm.RunChecks(context.Background())
	if got := hm.GetHealth().Status; got != HealthStatusHealthy {
		t.Errorf("expected healthy, got %s", got)
	}

	redisErr = errors.New("connection refused")
	hm.RunChecks(context.Background())
	health := hm.GetHealth()
	if health.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy with failing critical check, got %s", health.Status)
	}
	if health.Checks[1].Name != "redis" || health.Checks[1].Error != "connection refused" {
		t.Errorf("unexpected check details: %+v", health.Checks)
	}

	rec := httptest.NewRecorder()
	hm.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 from readiness, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	hm.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from liveness, got %d", rec.Code)
	}
	var live SystemHealth
	if err := json.NewDecoder(rec.Body).Decode(&live); err != nil {
		t.Fatal(err)
	}
	if live.Version != "test" {
		t.Errorf("expected version in body, got %q", live.Version)
	}
}

func TestHealthManager_StartStop(t *testing.T) {
	hm := NewHealthManager(HealthConfig{CheckInterval: 10 * time.Millisecond})
	ran := make(chan struct{}, 1)
	hm.RegisterCheck(&HealthCheck{Name: "tick", CheckFunc: func(ctx context.Context) HealthCheckResult {
		select {
		case ran <- struct{}{}:
		default:
		}
		return HealthCheckResult{Status: HealthStatusHealthy}
	}})

	hm.Start(context.Background())
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("check never ran")
	}
	hm.Stop()
	hm.Stop()
}
