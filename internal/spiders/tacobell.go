// internal/spiders/tacobell.go
package spiders

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/seed"
	"github.com/valpere/StoreScrapexter/internal/store"
)

// TacoBell resolves every seed zipcode to coordinates and asks the store API
// for the restaurants near them. Neighbouring seeds return overlapping stores;
// the runner's de-duplication drops the repeats by store number.
type TacoBell struct {
	env  Env
	opts Options
}

// NewTacoBell is the tacobell factory.
func NewTacoBell(env Env, opts Options) Spider {
	return &TacoBell{
		env:  env,
		opts: opts.orDefault("https://www.tacobell.com", "https://api.tacobell.com"),
	}
}

func (s *TacoBell) Name() string { return "tacobell" }

type tacoBellGeometry struct {
	Geometry struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"geometry"`
}

type tacoBellTime struct {
	FormattedHour string `json:"formattedHour"`
}

type tacoBellStore struct {
	StoreNumber text   `json:"storeNumber"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	URL         string `json:"url"`
	Address     struct {
		Line1      string `json:"line1"`
		Line2      string `json:"line2"`
		Town       string `json:"town"`
		PostalCode string `json:"postalCode"`
		Region     struct {
			IsoCodeShort string `json:"isocodeShort"`
		} `json:"region"`
	} `json:"address"`
	GeoPoint struct {
		Latitude  text `json:"latitude"`
		Longitude text `json:"longitude"`
	} `json:"geoPoint"`
	OpeningHours struct {
		WeekDayOpeningList []struct {
			WeekDay     string       `json:"weekDay"`
			Closed      bool         `json:"closed"`
			OpeningTime tacoBellTime `json:"openingTime"`
			ClosingTime tacoBellTime `json:"closingTime"`
		} `json:"weekDayOpeningList"`
	} `json:"openingHours"`
}

type tacoBellStores struct {
	NearByStores []map[string]interface{} `json:"nearByStores"`
}

// Crawl implements Spider.
func (s *TacoBell) Crawl(ctx context.Context, emit func(store.Store)) error {
	return forEachSeed(ctx, s.env, s.Name(), func(ctx context.Context, z seed.Zipcode) error {
		lat, lng := z.Latitude, z.Longitude
		if !z.HasLocation() {
			var geo tacoBellGeometry
			if err := s.env.Client.GetJSON(ctx, s.opts.APIURL+"/location/v1/"+url.PathEscape(z.Zipcode), &geo); err != nil {
				return fmt.Errorf("zipcode lookup failed: %w", err)
			}
			lat, lng = geo.Geometry.Lat, geo.Geometry.Lng
		}

		q := url.Values{}
		q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
		q.Set("longitude", strconv.FormatFloat(lng, 'f', -1, 64))
		var resp tacoBellStores
		if err := s.env.Client.GetJSON(ctx, s.opts.BaseURL+"/tacobellwebservices/v4/tacobell/stores?"+q.Encode(), &resp); err != nil {
			return fmt.Errorf("store search failed: %w", err)
		}

		for _, raw := range resp.NearByStores {
			parsed, err := s.parseStore(raw)
			if err != nil {
				s.env.Logger.Warnf("skipping store near %s: %v", z.Zipcode, err)
				continue
			}
			emit(parsed)
		}
		return nil
	})
}

func (s *TacoBell) parseStore(raw map[string]interface{}) (store.Store, error) {
	var ts tacoBellStore
	if err := decodeRaw(raw, &ts); err != nil {
		return store.Store{}, err
	}

	spans := make([]hours.DaySpan, 0, len(ts.OpeningHours.WeekDayOpeningList))
	for _, d := range ts.OpeningHours.WeekDayOpeningList {
		spans = append(spans, hours.DaySpan{
			Day:    d.WeekDay,
			Start:  d.OpeningTime.FormattedHour,
			End:    d.ClosingTime.FormattedHour,
			Closed: d.Closed,
		})
	}

	storeURL := ts.URL
	if storeURL == "" {
		storeURL = "/locations/" + ts.StoreNumber.String()
	}
	storeURL, err := resolve(s.opts.BaseURL, storeURL)
	if err != nil {
		return store.Store{}, err
	}

	return store.Store{
		Number: ts.StoreNumber.String(),
		Name:   ts.Name,
		Address: store.FormatAddress(store.Address{
			Line1:      ts.Address.Line1,
			Line2:      ts.Address.Line2,
			City:       ts.Address.Town,
			State:      ts.Address.Region.IsoCodeShort,
			PostalCode: ts.Address.PostalCode,
		}),
		PhoneNumber: ts.PhoneNumber,
		Location:    point(ts.GeoPoint.Latitude, ts.GeoPoint.Longitude),
		Hours:       hours.FromDaySpans(spans),
		URL:         storeURL,
		Raw:         raw,
	}, nil
}
