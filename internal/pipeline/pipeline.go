// internal/pipeline/pipeline.go

// Package pipeline runs a spider end to end: build it from the configuration,
// validate and de-duplicate what it emits, and write the survivors.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/StoreScrapexter/internal/browser"
	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/dedupe"
	"github.com/valpere/StoreScrapexter/internal/errors"
	"github.com/valpere/StoreScrapexter/internal/monitoring"
	"github.com/valpere/StoreScrapexter/internal/output"
	"github.com/valpere/StoreScrapexter/internal/progress"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/spiders"
	"github.com/valpere/StoreScrapexter/internal/store"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Runner executes spider runs against the current configuration. It is safe
// for concurrent use; UpdateConfig affects runs started afterwards. At most
// one run per spider is in flight, whoever starts it.
type Runner struct {
	mu       sync.RWMutex
	config   *config.Config
	registry *spiders.Registry
	metrics  *monitoring.MetricsManager
	errors   *errors.Service
	logger   utils.Logger

	activeMu sync.Mutex
	active   map[string]ActiveRun
}

// Option configures a Runner.
type Option func(*Runner)

// WithRegistry replaces the built-in spider registry.
func WithRegistry(registry *spiders.Registry) Option {
	return func(r *Runner) { r.registry = registry }
}

// WithMetrics records request and run metrics.
func WithMetrics(metrics *monitoring.MetricsManager) Option {
	return func(r *Runner) { r.metrics = metrics }
}

// WithErrorService sets the retry and circuit breaker policy.
func WithErrorService(service *errors.Service) Option {
	return func(r *Runner) { r.errors = service }
}

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner creates a runner for cfg.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		config:   cfg,
		registry: spiders.Default(),
		errors:   errors.NewService(),
		logger:   utils.NewComponentLogger("pipeline"),
		active:   make(map[string]ActiveRun),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the configuration new runs will use.
func (r *Runner) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// UpdateConfig swaps the configuration, typically after a watcher reload.
func (r *Runner) UpdateConfig(cfg *config.Config) {
	r.mu.Lock()
	r.config = cfg
	r.mu.Unlock()
}

// Registry returns the spider registry.
func (r *Runner) Registry() *spiders.Registry {
	return r.registry
}

// Errors returns the error service guarding runs.
func (r *Runner) Errors() *errors.Service {
	return r.errors
}

// Reserve claims spider's run slot without starting the run, so callers
// can hand the run id out before the crawl begins. It fails with
// ErrAlreadyRunning, wrapped in an AlreadyRunningError, while another run
// of spider is in flight. The reservation must be run or released.
func (r *Runner) Reserve(spider string) (*Reservation, error) {
	if _, ok := r.registry.Info(spider); !ok {
		return nil, fmt.Errorf("%w: %s", spiders.ErrUnknownSpider, spider)
	}
	if !r.Config().Spider(spider).IsEnabled() {
		return nil, fmt.Errorf("%w: %s", ErrSpiderDisabled, spider)
	}

	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	if current, busy := r.active[spider]; busy {
		return nil, &AlreadyRunningError{Run: current}
	}
	run := ActiveRun{RunID: uuid.NewString(), Spider: spider, StartedAt: time.Now()}
	r.active[spider] = run
	return &Reservation{runner: r, run: run}, nil
}

// Active returns the in-flight run of spider, if any.
func (r *Runner) Active(spider string) (ActiveRun, bool) {
	r.activeMu.Lock()
	defer r.activeMu.Unlock()
	run, ok := r.active[spider]
	return run, ok
}

// ActiveRuns lists the runs in flight, by spider name.
func (r *Runner) ActiveRuns() []ActiveRun {
	r.activeMu.Lock()
	out := make([]ActiveRun, 0, len(r.active))
	for _, run := range r.active {
		out = append(out, run)
	}
	r.activeMu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Spider < out[j].Spider })
	return out
}

func (r *Runner) release(run ActiveRun) {
	r.activeMu.Lock()
	if r.active[run.Spider].RunID == run.RunID {
		delete(r.active, run.Spider)
	}
	r.activeMu.Unlock()
}

// Run crawls spider once. Whole-run failures are retried by the error
// service and repeated failures open the spider's circuit breaker. Stores
// collected before a crawl error are still written.
func (r *Runner) Run(ctx context.Context, spider string) (*RunResult, error) {
	res, err := r.Reserve(spider)
	if err != nil {
		return nil, err
	}
	return res.Run(ctx)
}

// Reservation holds a spider's run slot.
type Reservation struct {
	runner *Runner
	run    ActiveRun
	once   sync.Once
}

// ID is the id the run will report.
func (res *Reservation) ID() string { return res.run.RunID }

// StartedAt is when the slot was claimed.
func (res *Reservation) StartedAt() time.Time { return res.run.StartedAt }

// Release frees the slot without running.
func (res *Reservation) Release() {
	res.once.Do(func() { res.runner.release(res.run) })
}

// Run performs the reserved run and frees the slot when it returns.
func (res *Reservation) Run(ctx context.Context) (*RunResult, error) {
	defer res.Release()
	return res.runner.execute(ctx, res.run)
}

func (r *Runner) execute(ctx context.Context, run ActiveRun) (*RunResult, error) {
	cfg := r.Config()
	spider := run.Spider
	info, ok := r.registry.Info(spider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", spiders.ErrUnknownSpider, spider)
	}

	result := &RunResult{
		RunID:     run.RunID,
		Spider:    spider,
		StartedAt: run.StartedAt,
	}
	logger := r.logger.WithFields(map[string]interface{}{"spider": spider, "run_id": result.RunID})
	logger.Info("run started")

	if r.metrics != nil {
		r.metrics.RecordRunStart(spider)
	}

	err := r.errors.ExecuteWithRetry(ctx, func() error {
		result.reset()
		return r.run(ctx, cfg, info, result, logger)
	}, spider)

	result.Duration = time.Since(result.StartedAt)
	if r.metrics != nil {
		r.metrics.RecordRunComplete(spider, result.Duration, err)
	}
	if err != nil {
		result.Error = err.Error()
		logger.Errorf("run failed after %s: %v", result.Duration.Round(time.Millisecond), err)
		return result, err
	}

	logger.Infof("run finished in %s: emitted=%d valid=%d invalid=%d duplicates=%d written=%d target=%s",
		result.Duration.Round(time.Millisecond), result.Emitted, result.Valid, result.Invalid,
		result.Duplicates, result.Written, result.Target)
	return result, nil
}

// RunAll runs each spider in turn and joins the failures.
func (r *Runner) RunAll(ctx context.Context, names []string) ([]*RunResult, error) {
	results := make([]*RunResult, 0, len(names))
	var errs []error
	for _, name := range names {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result, err := r.Run(ctx, name)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return results, stderrors.Join(errs...)
}

// EnabledSpiders lists registered spiders the configuration does not disable.
func (r *Runner) EnabledSpiders() []string {
	cfg := r.Config()
	var names []string
	for _, name := range r.registry.Names() {
		if cfg.Spider(name).IsEnabled() {
			names = append(names, name)
		}
	}
	return names
}

func (r *Runner) run(ctx context.Context, cfg *config.Config, info spiders.Info, result *RunResult, logger utils.Logger) error {
	manager, err := output.NewManager(&cfg.Output)
	if err != nil {
		return err
	}
	result.Target = manager.Target(info.Name)

	env, cleanup, err := r.buildEnv(cfg, info, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sc := cfg.Spider(info.Name)
	spider, err := r.registry.Build(info.Name, env, spiders.Options{BaseURL: sc.BaseURL, APIURL: sc.APIURL})
	if err != nil {
		return err
	}

	filter, err := newFilter(cfg, info.Name)
	if err != nil {
		return err
	}
	defer filter.Close()

	var valid []store.Store
	crawlErr := spider.Crawl(ctx, func(s store.Store) {
		result.Emitted++
		if err := store.Validate(s); err != nil {
			result.Invalid++
			logger.Warnf("dropping invalid store %s: %v", s.String(), err)
			return
		}
		valid = append(valid, s)
	})
	result.Valid = len(valid)

	kept, keys, err := deduplicate(ctx, filter, valid)
	if err != nil {
		return err
	}
	result.Duplicates = len(valid) - len(kept)

	if len(kept) > 0 || crawlErr == nil {
		start := time.Now()
		if err := manager.Write(ctx, info.Name, kept); err != nil {
			if ferr := filter.Forget(ctx, keys...); ferr != nil {
				logger.Warnf("failed to release de-duplication keys: %v", ferr)
			}
			return fmt.Errorf("failed to write output: %w", err)
		}
		if r.metrics != nil {
			r.metrics.RecordOutput(string(manager.Format()), time.Since(start))
		}
		result.Written = len(kept)
	}

	for _, s := range kept {
		if !s.Hours.Complete() {
			result.IncompleteHours++
		}
	}
	r.recordStores(info.Name, result)

	if crawlErr != nil {
		return fmt.Errorf("crawl failed: %w", crawlErr)
	}
	return nil
}

// buildEnv wires the HTTP client, optional browser, seeds and progress
// tracker for one run. cleanup releases whatever was opened.
func (r *Runner) buildEnv(cfg *config.Config, info spiders.Info, logger utils.Logger) (spiders.Env, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warnf("cleanup failed: %v", err)
			}
		}
	}

	httpCfg, err := cfg.SpiderHTTP(info.Name)
	if err != nil {
		return spiders.Env{}, cleanup, err
	}
	clientCfg := httpCfg.ClientConfig()
	if r.metrics != nil {
		clientCfg.Observer = r.metrics
	}

	env := spiders.Env{
		Logger:      logger,
		Concurrency: httpCfg.Concurrency,
	}
	env.Client = scraper.NewHTTPClient(clientCfg)

	if shouldRender(cfg, info) {
		browserCfg := cfg.Browser
		renderer := browser.NewRenderer(&browserCfg, logger.WithField("component", "browser"))
		closers = append(closers, renderer.Close)
		env.Documents = renderer
	}

	if info.Seeded {
		zipcodes, err := seed.LoadZipcodes(cfg.Seeds.Zipcodes)
		if err != nil {
			cleanup()
			return spiders.Env{}, func() {}, err
		}
		env.Zipcodes = zipcodes

		if cfg.Progress.Enabled {
			tracker, err := progress.Open(cfg.Progress.Path)
			if err != nil {
				cleanup()
				return spiders.Env{}, func() {}, err
			}
			closers = append(closers, tracker.Close)
			env.Progress = tracker
		}
	}
	return env, cleanup, nil
}

// shouldRender lets a spider's render setting win; otherwise spiders flagged
// for rendering use the browser when it is enabled globally.
func shouldRender(cfg *config.Config, info spiders.Info) bool {
	if render := cfg.Spider(info.Name).Render; render != nil {
		return *render
	}
	return info.Render && cfg.Browser.Enabled
}

func newFilter(cfg *config.Config, spider string) (dedupe.Filter, error) {
	switch cfg.Dedupe.Backend {
	case "redis":
		return dedupe.NewRedisFilter(cfg.Dedupe.Redis, spider)
	default:
		return dedupe.NewMemoryFilter(), nil
	}
}

// deduplicate keeps the first store per key and returns the keys it claimed.
func deduplicate(ctx context.Context, filter dedupe.Filter, stores []store.Store) ([]store.Store, []string, error) {
	kept := make([]store.Store, 0, len(stores))
	keys := make([]string, 0, len(stores))
	for _, s := range stores {
		key := dedupe.Key(s)
		seen, err := filter.Seen(ctx, key)
		if err != nil {
			if ferr := filter.Forget(ctx, keys...); ferr != nil {
				err = stderrors.Join(err, ferr)
			}
			return nil, nil, fmt.Errorf("de-duplication failed: %w", err)
		}
		if seen {
			continue
		}
		kept = append(kept, s)
		keys = append(keys, key)
	}
	return kept, keys, nil
}

func (r *Runner) recordStores(spider string, result *RunResult) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordStores(spider, monitoring.OutcomeEmitted, result.Emitted)
	r.metrics.RecordStores(spider, monitoring.OutcomeInvalid, result.Invalid)
	r.metrics.RecordStores(spider, monitoring.OutcomeDuplicate, result.Duplicates)
	r.metrics.RecordStores(spider, monitoring.OutcomeWritten, result.Written)
	r.metrics.RecordStores(spider, monitoring.OutcomeHoursIncomplete, result.IncompleteHours)
}
