// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name      string                                      `json:"name"`
	Status    HealthStatus                                `json:"status"`
	Message   string                                      `json:"message,omitempty"`
	Error     string                                      `json:"error,omitempty"`
	LastCheck time.Time                                   `json:"last_check"`
	Duration  time.Duration                               `json:"duration"`
	Critical  bool                                        `json:"critical"`
	CheckFunc func(ctx context.Context) HealthCheckResult `json:"-"`
	Timeout   time.Duration                               `json:"-"`
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status  HealthStatus
	Message string
	Error   error
}

// HealthConfig configuration for health monitoring
type HealthConfig struct {
	CheckInterval  time.Duration `json:"check_interval"`
	DefaultTimeout time.Duration `json:"default_timeout"`
	Version        string        `json:"version"`
}

// SystemHealth represents overall system health information
type SystemHealth struct {
	Status     HealthStatus  `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	Version    string        `json:"version,omitempty"`
	Uptime     string        `json:"uptime"`
	Goroutines int           `json:"goroutines"`
	Checks     []HealthCheck `json:"checks,omitempty"`
}

// HealthManager runs registered checks on an interval and serves the
// health, readiness and liveness endpoints from the latest results.
type HealthManager struct {
	checks   map[string]*HealthCheck
	mu       sync.RWMutex
	config   HealthConfig
	started  time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewHealthManager creates a new health manager
func NewHealthManager(config HealthConfig) *HealthManager {
	if config.CheckInterval == 0 {
		config.CheckInterval = 30 * time.Second
	}
	if config.DefaultTimeout == 0 {
		config.DefaultTimeout = 5 * time.Second
	}
	return &HealthManager{
		checks:  make(map[string]*HealthCheck),
		config:  config,
		started: time.Now(),
		stopCh:  make(chan struct{}),
	}
}

// RegisterCheck registers a new health check
func (hm *HealthManager) RegisterCheck(check *HealthCheck) {
	if check.Timeout == 0 {
		check.Timeout = hm.config.DefaultTimeout
	}
	if check.Status == "" {
		check.Status = HealthStatusUnknown
	}
	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// Start runs every check now and then on each interval until ctx is done or
// Stop is called.
func (hm *HealthManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(hm.config.CheckInterval)
		defer ticker.Stop()

		hm.RunChecks(ctx)
		for {
			select {
			case <-ticker.C:
				hm.RunChecks(ctx)
			case <-hm.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the health monitoring
func (hm *HealthManager) Stop() {
	hm.stopOnce.Do(func() { close(hm.stopCh) })
}

// RunChecks runs all registered checks concurrently.
func (hm *HealthManager) RunChecks(ctx context.Context) {
	hm.mu.RLock()
	checks := make([]*HealthCheck, 0, len(hm.checks))
	for _, check := range hm.checks {
		checks = append(checks, check)
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for _, check := range checks {
		wg.Add(1)
		go func(c *HealthCheck) {
			defer wg.Done()
			hm.runCheck(ctx, c)
		}(check)
	}
	wg.Wait()
}

func (hm *HealthManager) runCheck(ctx context.Context, check *HealthCheck) {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	result := HealthCheckResult{Status: HealthStatusUnknown, Message: "no check function defined"}
	if check.CheckFunc != nil {
		result = check.CheckFunc(checkCtx)
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	check.LastCheck = start
	check.Duration = time.Since(start)
	check.Status = result.Status
	check.Message = result.Message
	check.Error = ""
	if result.Error != nil {
		check.Error = result.Error.Error()
	}
}

// GetHealth returns the overall health status. A failing critical check makes
// the service unhealthy; any other failure only degrades it.
func (hm *HealthManager) GetHealth() SystemHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	health := SystemHealth{
		Status:     HealthStatusHealthy,
		Timestamp:  time.Now(),
		Version:    hm.config.Version,
		Uptime:     time.Since(hm.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Checks:     make([]HealthCheck, 0, len(hm.checks)),
	}

	for _, check := range hm.checks {
		health.Checks = append(health.Checks, *check)
		switch check.Status {
		case HealthStatusHealthy:
		case HealthStatusUnhealthy:
			if check.Critical {
				health.Status = HealthStatusUnhealthy
			} else if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		default:
			if health.Status == HealthStatusHealthy {
				health.Status = HealthStatusDegraded
			}
		}
	}
	sort.Slice(health.Checks, func(i, j int) bool { return health.Checks[i].Name < health.Checks[j].Name })
	return health
}

// GetReadiness treats degraded as ready and only unhealthy as not ready.
func (hm *HealthManager) GetReadiness() SystemHealth {
	health := hm.GetHealth()
	if health.Status != HealthStatusUnhealthy {
		health.Status = HealthStatusHealthy
	}
	return health
}

// HealthHandler returns HTTP handlers for health endpoints
func (hm *HealthManager) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, hm.GetHealth())
	}
}

// ReadinessHandler returns HTTP handler for readiness endpoint
func (hm *HealthManager) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, hm.GetReadiness())
	}
}

// LivenessHandler answers as long as the process can serve HTTP.
func (hm *HealthManager) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, SystemHealth{
			Status:     HealthStatusHealthy,
			Timestamp:  time.Now(),
			Version:    hm.config.Version,
			Uptime:     time.Since(hm.started).Round(time.Second).String(),
			Goroutines: runtime.NumGoroutine(),
		})
	}
}

func writeHealth(w http.ResponseWriter, health SystemHealth) {
	w.Header().Set("Content-Type", "application/json")
	if health.Status == HealthStatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(health)
}

// PingHealthCheck wraps a connectivity probe such as a database or Redis ping.
func PingHealthCheck(name string, critical bool, ping func(ctx context.Context) error) *HealthCheck {
	return &HealthCheck{
		Name:     name,
		Critical: critical,
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			if err := ping(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: fmt.Sprintf("%s unreachable", name),
					Error:   err,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Message: fmt.Sprintf("%s reachable", name)}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) *HealthCheck {
	return &HealthCheck{
		Name: "goroutines",
		CheckFunc: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			if count > maxGoroutines {
				return HealthCheckResult{
					Status:  HealthStatusDegraded,
					Message: fmt.Sprintf("High goroutine count: %d", count),
				}
			}
			return HealthCheckResult{
				Status:  HealthStatusHealthy,
				Message: fmt.Sprintf("Goroutine count normal: %d", count),
			}
		},
	}
}
