// internal/server/server.go

// Package server exposes service mode: health and metrics endpoints plus a
// small JSON API to list spiders, trigger runs and parse hours text.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/monitoring"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/scheduler"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// maxRuns bounds the run history kept in memory.
const maxRuns = 100

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is a run triggered through the API.
type Run struct {
	ID         string              `json:"id"`
	Spider     string              `json:"spider"`
	Status     string              `json:"status"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Result     *pipeline.RunResult `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// Server serves the HTTP API.
type Server struct {
	config    config.ServerConfig
	runner    *pipeline.Runner
	metrics   *monitoring.MetricsManager
	health    *monitoring.HealthManager
	scheduler *scheduler.Scheduler
	parser    *hours.Parser
	logger    utils.Logger
	router    *mux.Router

	// baseCtx is cancelled on shutdown so API-triggered runs stop with the server.
	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu    sync.RWMutex
	runs  map[string]*Run
	order []string
}

// Option configures a Server.
type Option func(*Server)

// WithScheduler shows scheduled runs in the spider listing.
func WithScheduler(s *scheduler.Scheduler) Option {
	return func(srv *Server) { srv.scheduler = s }
}

// WithHealth replaces the default health manager.
func WithHealth(h *monitoring.HealthManager) Option {
	return func(srv *Server) { srv.health = h }
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(srv *Server) { srv.logger = logger }
}

// New creates a server. metrics may be nil, in which case /metrics is not routed.
func New(cfg config.ServerConfig, runner *pipeline.Runner, metrics *monitoring.MetricsManager, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		runner:     runner,
		metrics:    metrics,
		logger:     utils.NewComponentLogger("server"),
		baseCtx:    ctx,
		baseCancel: cancel,
		runs:       make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = monitoring.NewHealthManager(monitoring.HealthConfig{})
		s.health.RegisterCheck(monitoring.GoroutineHealthCheck(10000))
	}
	s.parser = hours.NewParser(s.logger.WithField("component", "hours"))
	s.router = s.routes()
	return s
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	return s.logging(rateLimit(s.config.RateLimit, s.config.RateBurst, s.router))
}

// Health returns the health manager for registering extra checks.
func (s *Server) Health() *monitoring.HealthManager {
	return s.health
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.health.HealthHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.health.ReadinessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/live", s.health.LivenessHandler()).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.MetricsHandler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/spiders", s.listSpiders).Methods(http.MethodGet)
	api.HandleFunc("/spiders/{name}/runs", s.createRun).Methods(http.MethodPost)
	api.HandleFunc("/spiders/{name}/circuit/reset", s.resetCircuit).Methods(http.MethodPost)
	api.HandleFunc("/runs", s.listRuns).Methods(http.MethodGet)
	api.HandleFunc("/runs/{id}", s.getRun).Methods(http.MethodGet)
	api.HandleFunc("/hours/parse", s.parseHours).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully and
// waits for API-triggered runs to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.health.Start(ctx)
	defer s.health.Stop()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.config.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.baseCancel()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.baseCancel()
	s.wg.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return 30 * time.Second
}

// startRun reserves spider with the runner and runs it in the background.
// Errors come from the reservation: unknown, disabled or already running,
// whether the current run came from the API or the scheduler.
func (s *Server) startRun(spider string) (*Run, error) {
	res, err := s.runner.Reserve(spider)
	if err != nil {
		return nil, err
	}
	run := &Run{
		ID:        res.ID(),
		Spider:    spider,
		Status:    StatusRunning,
		StartedAt: res.StartedAt(),
	}
	s.mu.Lock()
	s.remember(run)
	snapshot := *run
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := res.Run(s.baseCtx)
		finished := time.Now()

		s.mu.Lock()
		defer s.mu.Unlock()
		run.FinishedAt = &finished
		run.Result = result
		if err != nil {
			run.Status = StatusFailed
			run.Error = err.Error()
			return
		}
		run.Status = StatusSucceeded
	}()
	return &snapshot, nil
}

// activeRun describes an in-flight run, using the API record when the run
// was started here.
func (s *Server) activeRun(active pipeline.ActiveRun) Run {
	if run, ok := s.run(active.RunID); ok {
		return run
	}
	return Run{
		ID:        active.RunID,
		Spider:    active.Spider,
		Status:    StatusRunning,
		StartedAt: active.StartedAt,
	}
}

// remember stores run and drops the oldest finished runs past maxRuns.
// Callers hold s.mu.
func (s *Server) remember(run *Run) {
	s.runs[run.ID] = run
	s.order = append(s.order, run.ID)
	for len(s.order) > maxRuns {
		oldest := s.order[0]
		if s.runs[oldest].Status == StatusRunning {
			break
		}
		delete(s.runs, oldest)
		s.order = s.order[1:]
	}
}

func (s *Server) run(id string) (Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, false
	}
	return *run, true
}

// lookupRun finds id in the API history or among scheduled runs in flight.
func (s *Server) lookupRun(id string) (Run, bool) {
	if run, ok := s.run(id); ok {
		return run, true
	}
	for _, active := range s.runner.ActiveRuns() {
		if active.RunID == id {
			return s.activeRun(active), true
		}
	}
	return Run{}, false
}

func (s *Server) runList() []Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Run, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.runs[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}
