// internal/spiders/common.go
package spiders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/store"
)

// text decodes JSON strings and numbers alike; locators are inconsistent about
// ids and coordinates.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*t = text(n.String())
	}
	return nil
}

func (t text) String() string { return string(t) }

// first returns the first non-empty string of list.
func first(list []string) string {
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// resolve joins ref onto base; ref may be absolute, root-relative or a bare slug.
func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(b.Path, "/") {
		b.Path += "/"
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

// forEachSeed runs fn for every zipcode not yet finished according to the
// progress tracker. A failing seed is logged and marked failed; the loop stops
// only when ctx ends.
func forEachSeed(ctx context.Context, env Env, spider string, fn func(ctx context.Context, z seed.Zipcode) error) error {
	zipcodes := env.Zipcodes
	if env.Progress != nil {
		pending, err := env.Progress.Pending(ctx, spider, seed.Codes(zipcodes))
		if err != nil {
			return err
		}
		keep := make(map[string]bool, len(pending))
		for _, code := range pending {
			keep[code] = true
		}
		filtered := zipcodes[:0:0]
		for _, z := range zipcodes {
			if keep[z.Zipcode] {
				filtered = append(filtered, z)
			}
		}
		if skipped := len(zipcodes) - len(filtered); skipped > 0 {
			env.Logger.Infof("resuming: %d of %d seeds already done", skipped, len(zipcodes))
		}
		zipcodes = filtered
	}

	failed := 0
	for _, z := range zipcodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx, z)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			failed++
			env.Logger.WithField("zipcode", z.Zipcode).Warnf("seed failed: %v", err)
			if env.Progress != nil {
				if perr := env.Progress.MarkFailed(ctx, spider, z.Zipcode); perr != nil {
					return perr
				}
			}
			continue
		}
		if env.Progress != nil {
			if err := env.Progress.MarkDone(ctx, spider, z.Zipcode); err != nil {
				return err
			}
		}
	}
	if failed > 0 && failed == len(zipcodes) {
		return fmt.Errorf("all %d seeds failed", failed)
	}
	return nil
}

// crawlPages calls parse for every URL with bounded concurrency and emits what
// it returns. A page that fails is logged and skipped.
func crawlPages(ctx context.Context, env Env, urls []string, emit func(store.Store),
	parse func(ctx context.Context, pageURL string) (store.Store, error)) error {

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(env.Concurrency)

	for _, pageURL := range urls {
		pageURL := pageURL
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			s, err := parse(gctx, pageURL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if scraper.IsNotFound(err) {
					env.Logger.WithField("url", pageURL).Infof("store page gone: %v", err)
					return nil
				}
				env.Logger.WithField("url", pageURL).Warnf("skipping store: %v", err)
				return nil
			}
			mu.Lock()
			emit(s)
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

// point builds a location from loosely typed coordinates. Missing or invalid
// values give nil so validation reports the store instead of the crawl failing.
func point(lat, lon text) *store.Point {
	p, err := store.ParsePoint(lat.String(), lon.String())
	if err != nil {
		return nil
	}
	return p
}

// decodeRaw re-decodes a generic payload into a typed view of it.
func decodeRaw(raw map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unexpected store payload: %w", err)
	}
	return nil
}
