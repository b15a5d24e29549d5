// internal/spiders/walmart.go
package spiders

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/store"
)

var walmartStorePath = regexp.MustCompile(`^/store/\d+(?:[-/][^/]*)?/?$`)

// Walmart walks /store-directory state and city pages down to the store pages
// and reads each store's node detail from the page payload. The site serves its
// data only to real browsers, so the spider is flagged for rendering.
type Walmart struct {
	env  Env
	opts Options
}

// NewWalmart is the walmart factory.
func NewWalmart(env Env, opts Options) Spider {
	return &Walmart{
		env:  env,
		opts: opts.orDefault("https://www.walmart.com", ""),
	}
}

func (s *Walmart) Name() string { return "walmart" }

type walmartNode struct {
	ID          text   `json:"id"`
	DisplayName string `json:"displayName"`
	PhoneNumber string `json:"phoneNumber"`
	Address     struct {
		AddressLineOne string `json:"addressLineOne"`
		AddressLineTwo string `json:"addressLineTwo"`
		City           string `json:"city"`
		State          string `json:"state"`
		PostalCode     string `json:"postalCode"`
	} `json:"address"`
	GeoPoint struct {
		Latitude  text `json:"latitude"`
		Longitude text `json:"longitude"`
	} `json:"geoPoint"`
	OperationalHours []hours.DaySpan `json:"operationalHours"`
	Services         []struct {
		DisplayName string `json:"displayName"`
	} `json:"services"`
}

const walmartNodePath = "props.pageProps.initialData.initialDataNodeDetail.data.nodeDetail"

// Crawl implements Spider.
func (s *Walmart) Crawl(ctx context.Context, emit func(store.Store)) error {
	start, err := resolve(s.opts.BaseURL, "/store-directory")
	if err != nil {
		return err
	}
	walker := &scraper.DirectoryWalker{
		Fetcher:      s.env.Documents,
		LinkSelector: "a[href]",
		IsDirectory: func(u *url.URL) bool {
			return strings.HasPrefix(u.Path, "/store-directory")
		},
		IsStore: func(u *url.URL) bool {
			return walmartStorePath.MatchString(u.Path)
		},
		Logger: s.env.Logger,
	}
	urls, err := walker.Walk(ctx, start)
	if err != nil {
		return err
	}
	return crawlPages(ctx, s.env, urls, emit, s.parseStore)
}

func (s *Walmart) parseStore(ctx context.Context, pageURL string) (store.Store, error) {
	doc, err := s.env.Documents.GetDocument(ctx, pageURL)
	if err != nil {
		return store.Store{}, err
	}
	var data map[string]interface{}
	if err := scraper.ExtractScriptJSON(doc, scraper.NextDataSelector, &data); err != nil {
		return store.Store{}, err
	}
	node, ok := scraper.Lookup(data, walmartNodePath)
	raw, isMap := node.(map[string]interface{})
	if !ok || !isMap {
		return store.Store{}, fmt.Errorf("page data has no node detail")
	}
	var wn walmartNode
	if err := decodeRaw(raw, &wn); err != nil {
		return store.Store{}, err
	}

	services := make([]string, 0, len(wn.Services))
	for _, svc := range wn.Services {
		services = append(services, svc.DisplayName)
	}

	return store.Store{
		Number: wn.ID.String(),
		Name:   wn.DisplayName,
		Address: store.FormatAddress(store.Address{
			Line1:      wn.Address.AddressLineOne,
			Line2:      wn.Address.AddressLineTwo,
			City:       wn.Address.City,
			State:      wn.Address.State,
			PostalCode: wn.Address.PostalCode,
		}),
		PhoneNumber: wn.PhoneNumber,
		Location:    point(wn.GeoPoint.Latitude, wn.GeoPoint.Longitude),
		Hours:       hours.FromDaySpans(wn.OperationalHours),
		Services:    store.CleanServices(services),
		URL:         pageURL,
		Raw:         raw,
	}, nil
}
