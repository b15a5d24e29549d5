// internal/spiders/wafflehouse.go
package spiders

import (
	"context"
	"fmt"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/store"
)

// WaffleHouse reads every location from the locator's Next.js page payload.
type WaffleHouse struct {
	env  Env
	opts Options
}

// NewWaffleHouse is the wafflehouse factory.
func NewWaffleHouse(env Env, opts Options) Spider {
	return &WaffleHouse{
		env:  env,
		opts: opts.orDefault("https://locations.wafflehouse.com/", ""),
	}
}

func (s *WaffleHouse) Name() string { return "wafflehouse" }

type waffleHouseLocation struct {
	StoreCode     text       `json:"storeCode"`
	BusinessName  string     `json:"businessName"`
	AddressLines  []string   `json:"addressLines"`
	City          string     `json:"city"`
	State         string     `json:"state"`
	PostalCode    string     `json:"postalCode"`
	Latitude      text       `json:"latitude"`
	Longitude     text       `json:"longitude"`
	PhoneNumbers  []string   `json:"phoneNumbers"`
	BusinessHours [][]string `json:"businessHours"`
	WebsiteURL    string     `json:"websiteURL"`
}

// Crawl implements Spider.
func (s *WaffleHouse) Crawl(ctx context.Context, emit func(store.Store)) error {
	doc, err := s.env.Documents.GetDocument(ctx, s.opts.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to load locations page: %w", err)
	}
	var data map[string]interface{}
	if err := scraper.ExtractScriptJSON(doc, scraper.NextDataSelector, &data); err != nil {
		return err
	}
	node, ok := scraper.Lookup(data, "props.pageProps.locations")
	if !ok {
		return fmt.Errorf("page data has no props.pageProps.locations")
	}
	locations, ok := node.([]interface{})
	if !ok {
		return fmt.Errorf("props.pageProps.locations is not a list")
	}

	s.env.Logger.Infof("found %d locations", len(locations))
	for _, item := range locations {
		raw, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		parsed, err := s.parseLocation(raw)
		if err != nil {
			s.env.Logger.Warnf("skipping location: %v", err)
			continue
		}
		emit(parsed)
	}
	return nil
}

func (s *WaffleHouse) parseLocation(raw map[string]interface{}) (store.Store, error) {
	var loc waffleHouseLocation
	if err := decodeRaw(raw, &loc); err != nil {
		return store.Store{}, err
	}

	line1 := ""
	if len(loc.AddressLines) > 0 {
		line1 = loc.AddressLines[0]
	}

	return store.Store{
		Number: loc.StoreCode.String(),
		Name:   loc.BusinessName,
		Address: store.FormatAddress(store.Address{
			Line1:      line1,
			City:       loc.City,
			State:      loc.State,
			PostalCode: loc.PostalCode,
		}),
		PhoneNumber: first(loc.PhoneNumbers),
		Location:    point(loc.Latitude, loc.Longitude),
		Hours:       hours.FromWeekList(loc.BusinessHours),
		URL:         loc.WebsiteURL,
		Raw:         raw,
	}, nil
}
