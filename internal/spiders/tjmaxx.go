// internal/spiders/tjmaxx.go
package spiders

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/valpere/StoreScrapexter/internal/hours"
	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/store"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Selectors for the all-stores list and the store pages.
const (
	tjmaxxStoreLinks = "li.storelist-item > a"
	tjmaxxName       = "h4.store-name"
	tjmaxxPhone      = "div.store-details div.store-phone"
	tjmaxxAddress    = "div.store-details div.store-address"
	tjmaxxHours      = `div#title-block time[itemprop="openingHours"]`
	tjmaxxLatitude   = "input#lat"
	tjmaxxLongitude  = "input#long"
	tjmaxxFeatures   = "div#title-block ul.store-features > li"
	tjmaxxStoreID    = "input#storeID"
)

// TJMaxx follows the all-stores list to every store page and scrapes it.
type TJMaxx struct {
	env    Env
	opts   Options
	parser *hours.Parser
}

// NewTJMaxx is the tjmaxx factory.
func NewTJMaxx(env Env, opts Options) Spider {
	return &TJMaxx{
		env:    env,
		opts:   opts.orDefault("https://tjmaxx.tjx.com", ""),
		parser: hours.NewParser(env.Logger),
	}
}

func (s *TJMaxx) Name() string { return "tjmaxx" }

// Crawl implements Spider.
func (s *TJMaxx) Crawl(ctx context.Context, emit func(store.Store)) error {
	listURL, err := resolve(s.opts.BaseURL, "/store/stores/allStores.jsp")
	if err != nil {
		return err
	}
	doc, err := s.env.Documents.GetDocument(ctx, listURL)
	if err != nil {
		return fmt.Errorf("failed to load store list: %w", err)
	}

	links := scraper.ResolveLinks(doc, listURL, tjmaxxStoreLinks)
	seen := make(map[string]bool, len(links))
	urls := make([]string, 0, len(links))
	for _, link := range links {
		u := link.String()
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	s.env.Logger.Infof("found %d store pages", len(urls))
	return crawlPages(ctx, s.env, urls, emit, s.parseStore)
}

func (s *TJMaxx) parseStore(ctx context.Context, pageURL string) (store.Store, error) {
	doc, err := s.env.Documents.GetDocument(ctx, pageURL)
	if err != nil {
		return store.Store{}, err
	}

	var h hours.Hours
	if text := utils.CleanText(doc.Find(tjmaxxHours).First().Text()); text != "" {
		h = s.parser.Parse(text)
	} else {
		s.env.Logger.Warnf("no hours found for store: %s", pageURL)
	}

	lat, _ := doc.Find(tjmaxxLatitude).Attr("value")
	lon, _ := doc.Find(tjmaxxLongitude).Attr("value")
	location, err := store.ParsePoint(lat, lon)
	if err != nil {
		s.env.Logger.Warnf("bad coordinates for %s: %v", pageURL, err)
		location = nil
	}

	var features []string
	doc.Find(tjmaxxFeatures).Each(func(_ int, li *goquery.Selection) {
		features = append(features, li.Text())
	})

	number, _ := doc.Find(tjmaxxStoreID).Attr("value")

	return store.Store{
		Number:      strings.TrimSpace(number),
		Name:        utils.CleanText(doc.Find(tjmaxxName).First().Text()),
		Address:     store.JoinLines(textNodes(doc.Find(tjmaxxAddress).First())...),
		PhoneNumber: utils.CleanText(doc.Find(tjmaxxPhone).First().Text()),
		Location:    location,
		Hours:       h,
		Services:    store.CleanServices(features),
		URL:         pageURL,
	}, nil
}

// textNodes returns the cleaned direct text children of sel; <br>-separated
// address lines come out one per entry.
func textNodes(sel *goquery.Selection) []string {
	var lines []string
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if len(c.Nodes) == 0 || c.Nodes[0].Type != html.TextNode {
			return
		}
		if line := utils.CleanText(c.Text()); line != "" {
			lines = append(lines, line)
		}
	})
	return lines
}
