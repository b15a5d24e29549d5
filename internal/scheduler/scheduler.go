// internal/scheduler/scheduler.go

// Package scheduler runs spiders on the cron expressions from the configuration
// and re-plans them whenever the configuration changes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/valpere/StoreScrapexter/internal/config"
	"github.com/valpere/StoreScrapexter/internal/pipeline"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// RunFunc runs one spider.
type RunFunc func(ctx context.Context, spider string) error

// Entry describes one scheduled spider.
type Entry struct {
	Spider   string    `json:"spider"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next,omitempty"`
	Prev     time.Time `json:"prev,omitempty"`
}

type scheduled struct {
	id   cron.EntryID
	spec string
}

// Scheduler owns a cron instance with one entry per scheduled spider.
// A spider whose previous run is still going, scheduled or not, is skipped,
// not queued.
type Scheduler struct {
	cron    *cron.Cron
	chain   cron.Chain
	run     RunFunc
	logger  utils.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]scheduled
}

// New creates a stopped scheduler.
func New(run RunFunc, logger utils.Logger) *Scheduler {
	if logger == nil {
		logger = utils.NewComponentLogger("scheduler")
	}
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cl)),
		chain:   cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		run:     run,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]scheduled),
	}
}

// Apply brings the entries in line with cfg for the given spider names.
// Unchanged schedules keep their entry; disabled or unscheduled spiders are
// removed. Every bad expression is reported, the others still apply.
func (s *Scheduler) Apply(cfg *config.Config, spiders []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]string)
	for _, name := range spiders {
		sc := cfg.Spider(name)
		if sc.IsEnabled() && sc.Schedule != "" {
			want[name] = sc.Schedule
		}
	}

	for name, entry := range s.entries {
		if spec, ok := want[name]; !ok || spec != entry.spec {
			s.cron.Remove(entry.id)
			delete(s.entries, name)
			s.logger.Infof("unscheduled %s", name)
		}
	}

	var errs []error
	for _, name := range sortedKeys(want) {
		spec := want[name]
		if _, ok := s.entries[name]; ok {
			continue
		}
		schedule, err := config.ParseSchedule(spec)
		if err != nil {
			errs = append(errs, fmt.Errorf("spider %s: invalid schedule %q: %w", name, spec, err))
			continue
		}
		id := s.cron.Schedule(schedule, s.chain.Then(s.job(name)))
		s.entries[name] = scheduled{id: id, spec: spec}
		s.logger.Infof("scheduled %s at %q, next run %s", name, spec, schedule.Next(time.Now()).Format(time.RFC3339))
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to schedule %d spider(s): %v", len(errs), errs)
	}
	return nil
}

func (s *Scheduler) job(spider string) cron.Job {
	return cron.FuncJob(func() {
		s.logger.Infof("cron triggered %s", spider)
		err := s.run(s.ctx, spider)
		switch {
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			s.logger.Infof("skipping scheduled run: %v", err)
		case err != nil:
			s.logger.Errorf("scheduled run of %s failed: %v", spider, err)
		}
	})
}

// Entries lists the scheduled spiders by name.
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.entries))
	for name, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, Entry{Spider: name, Schedule: e.spec, Next: ce.Next, Prev: ce.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Spider < out[j].Spider })
	return out
}

// Start starts the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them to return
// or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cronLogger adapts utils.Logger to cron.Logger.
type cronLogger struct {
	logger utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Errorf("cron: %s: %v", msg, err)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}
