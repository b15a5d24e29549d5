// internal/spiders/dunkindonuts.go
package spiders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/store"
)

const dunkinDataVariable = "window.__INITIAL__DATA__"

// DunkinDonuts reads the directory tree embedded in the locator's landing page,
// then every store page's embedded document.
type DunkinDonuts struct {
	env  Env
	opts Options
}

// NewDunkinDonuts is the dunkindonuts factory.
func NewDunkinDonuts(env Env, opts Options) Spider {
	return &DunkinDonuts{
		env:  env,
		opts: opts.orDefault("https://locations.dunkindonuts.com/en", ""),
	}
}

func (s *DunkinDonuts) Name() string { return "dunkindonuts" }

type dunkinDirectory struct {
	Document struct {
		Children interface{} `json:"dm_directoryChildren"`
	} `json:"document"`
}

type dunkinStore struct {
	ID        text   `json:"id"`
	Name      string `json:"name"`
	MainPhone string `json:"mainPhone"`
	Address   struct {
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		City       string `json:"city"`
		Region     string `json:"region"`
		PostalCode string `json:"postalCode"`
	} `json:"address"`
	GeocodedCoordinate struct {
		Latitude  text `json:"latitude"`
		Longitude text `json:"longitude"`
	} `json:"geocodedCoordinate"`
	Hours    map[string]json.RawMessage `json:"hours"`
	Features []string                   `json:"c_storeFeatures"`
}

type dunkinDay struct {
	OpenIntervals []hours.Span `json:"openIntervals"`
	IsClosed      bool         `json:"isClosed"`
}

// Crawl implements Spider.
func (s *DunkinDonuts) Crawl(ctx context.Context, emit func(store.Store)) error {
	doc, err := s.env.Documents.GetDocument(ctx, s.opts.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to load directory: %w", err)
	}
	var dir dunkinDirectory
	if err := scraper.ExtractAssignedJSON(doc, dunkinDataVariable, &dir); err != nil {
		return fmt.Errorf("failed to read directory data: %w", err)
	}

	slugs := scraper.CollectSlugs(dir.Document.Children, "slug", "dm_directoryChildren")
	s.env.Logger.Infof("found %d store pages", len(slugs))

	urls := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		u, err := resolve(s.opts.BaseURL, slug)
		if err != nil {
			s.env.Logger.Warnf("bad store slug %q: %v", slug, err)
			continue
		}
		urls = append(urls, u)
	}
	return crawlPages(ctx, s.env, urls, emit, s.parseStore)
}

func (s *DunkinDonuts) parseStore(ctx context.Context, pageURL string) (store.Store, error) {
	doc, err := s.env.Documents.GetDocument(ctx, pageURL)
	if err != nil {
		return store.Store{}, err
	}
	var page struct {
		Document map[string]interface{} `json:"document"`
	}
	if err := scraper.ExtractAssignedJSON(doc, dunkinDataVariable, &page); err != nil {
		return store.Store{}, err
	}
	if page.Document == nil {
		return store.Store{}, fmt.Errorf("store page has no document")
	}
	var ds dunkinStore
	if err := decodeRaw(page.Document, &ds); err != nil {
		return store.Store{}, err
	}

	intervals := make(map[string][]hours.Span, len(ds.Hours))
	for key, rawDay := range ds.Hours {
		// holidayHours, reopenDate and friends share the map with the weekdays
		if _, ok := hours.DayName(key); !ok {
			continue
		}
		var day dunkinDay
		if err := json.Unmarshal(rawDay, &day); err != nil {
			s.env.Logger.Warnf("bad hours for %s at %s: %v", key, pageURL, err)
			continue
		}
		if day.IsClosed {
			intervals[key] = nil
			continue
		}
		intervals[key] = day.OpenIntervals
	}

	return store.Store{
		Number: ds.ID.String(),
		Name:   ds.Name,
		Address: store.FormatAddress(store.Address{
			Line1:      ds.Address.Line1,
			Line2:      ds.Address.Line2,
			City:       ds.Address.City,
			State:      ds.Address.Region,
			PostalCode: ds.Address.PostalCode,
		}),
		PhoneNumber: ds.MainPhone,
		Location:    point(ds.GeocodedCoordinate.Latitude, ds.GeocodedCoordinate.Longitude),
		Hours:       hours.FromIntervals(intervals, s.env.Logger),
		Services:    store.CleanServices(ds.Features),
		URL:         pageURL,
		Raw:         page.Document,
	}, nil
}
