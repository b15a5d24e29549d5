// internal/spiders/spider.go

// Package spiders holds one recipe per retail chain. Each recipe walks the
// chain's store locator and emits store.Store records; the registry builds them
// by name for the runner, the CLI and the scheduler.
package spiders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/valpere/StoreScrapexter/internal/progress"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/store"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// ErrUnknownSpider is returned when a name is not registered.
var ErrUnknownSpider = errors.New("unknown spider")

// Spider crawls one locator. Crawl calls emit once per parsed store; emit is
// never called concurrently. Problems with a single store are logged and the
// store skipped; only failures that stop the whole crawl are returned.
type Spider interface {
	Name() string
	Crawl(ctx context.Context, emit func(store.Store)) error
}

// Env carries the shared services a recipe runs with.
type Env struct {
	Client *scraper.HTTPClient
	// Documents fetches HTML pages; a browser renderer for JS-heavy locators,
	// otherwise the same HTTP client.
	Documents scraper.DocumentFetcher
	Zipcodes  []seed.Zipcode
	// Progress is optional; seeded spiders skip finished seeds when set.
	Progress *progress.Tracker
	Logger   utils.Logger
	// Concurrency bounds parallel store page fetches.
	Concurrency int
}

func (e Env) withDefaults(name string) Env {
	if e.Client == nil {
		e.Client = scraper.NewHTTPClient(scraper.ClientConfig{})
	}
	if e.Documents == nil {
		e.Documents = e.Client
	}
	if e.Logger == nil {
		e.Logger = utils.NewComponentLogger("spider")
	}
	e.Logger = e.Logger.WithField("spider", name)
	if e.Concurrency <= 0 {
		e.Concurrency = 4
	}
	return e
}

// Options overrides a recipe's endpoints, mostly for tests.
type Options struct {
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	APIURL  string `yaml:"api_url,omitempty" json:"api_url,omitempty"`
}

func (o Options) orDefault(base, api string) Options {
	if o.BaseURL == "" {
		o.BaseURL = base
	}
	if o.APIURL == "" {
		o.APIURL = api
	}
	return o
}

// Factory builds a spider.
type Factory func(env Env, opts Options) Spider

// Info describes a registered spider.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Seeded spiders iterate the zipcode seed list.
	Seeded bool `json:"seeded"`
	// Render marks locators that need a browser to produce their data.
	Render bool `json:"render"`
}

type entry struct {
	info    Info
	factory Factory
}

// Registry maps spider names to factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a spider, replacing any previous one with the same name.
func (r *Registry) Register(info Info, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.Name] = entry{info: info, factory: factory}
}

// Build creates the named spider.
func (r *Registry) Build(name string, env Env, opts Options) (Spider, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpider, name)
	}
	if e.info.Seeded && len(env.Zipcodes) == 0 {
		return nil, fmt.Errorf("spider %s requires zipcode seeds", name)
	}
	return e.factory(env.withDefaults(name), opts), nil
}

// Info returns the description of a registered spider.
func (r *Registry) Info(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.info, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns every registered spider, sorted by name.
func (r *Registry) List() []Info {
	names := r.Names()
	infos := make([]Info, 0, len(names))
	for _, name := range names {
		info, _ := r.Info(name)
		infos = append(infos, info)
	}
	return infos
}

// Default returns a registry with every built-in recipe.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Info{Name: "tacobell", Description: "Taco Bell nearby-stores API seeded by zipcode", Seeded: true}, NewTacoBell)
	r.Register(Info{Name: "sweetgreen", Description: "Sweetgreen GraphQL location search seeded by zipcode", Seeded: true}, NewSweetgreen)
	r.Register(Info{Name: "dunkindonuts", Description: "Dunkin' location directory pages"}, NewDunkinDonuts)
	r.Register(Info{Name: "wafflehouse", Description: "Waffle House single-page location list"}, NewWaffleHouse)
	r.Register(Info{Name: "walmart", Description: "Walmart store directory walk", Render: true}, NewWalmart)
	r.Register(Info{Name: "tjmaxx", Description: "TJ Maxx all-stores list and store pages"}, NewTJMaxx)
	return r
}
