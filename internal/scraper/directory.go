// internal/scraper/directory.go
package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/valpere/StoreScrapexter/internal/utils"
)

// DirectoryWalker walks a locator's state -> city -> store link hierarchy
// breadth first and collects the store page URLs.
type DirectoryWalker struct {
	Fetcher DocumentFetcher
	// LinkSelector picks the candidate links on every directory page.
	LinkSelector string
	// IsDirectory tells directory pages (followed) from store pages (collected).
	IsDirectory func(u *url.URL) bool
	// IsStore, when set, drops non-directory links that are not store pages.
	IsStore func(u *url.URL) bool
	// MaxPages bounds the number of directory pages fetched; 0 means no bound.
	MaxPages int
	Logger   utils.Logger
}

// Walk returns store URLs in discovery order. A directory page that fails to load
// is logged and skipped; the walk only fails when ctx ends or the start page fails.
func (w *DirectoryWalker) Walk(ctx context.Context, startURL string) ([]string, error) {
	if w.Fetcher == nil || w.IsDirectory == nil {
		return nil, fmt.Errorf("directory walker requires a fetcher and a directory predicate")
	}
	logger := w.Logger
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	queue := []string{startURL}
	visited := make(map[string]bool)
	storeSeen := make(map[string]bool)
	var stores []string
	pages := 0

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return stores, err
		}
		current := queue[0]
		queue = queue[1:]

		key, err := utils.NormalizeURL(current)
		if err != nil || visited[key] {
			continue
		}
		visited[key] = true

		if w.MaxPages > 0 && pages >= w.MaxPages {
			logger.Warnf("directory page limit %d reached, stopping walk", w.MaxPages)
			break
		}
		pages++

		doc, err := w.Fetcher.GetDocument(ctx, current)
		if err != nil {
			if current == startURL {
				return nil, fmt.Errorf("failed to load directory %s: %w", current, err)
			}
			logger.Warnf("failed to load directory page %s: %v", current, err)
			continue
		}

		links := ResolveLinks(doc, current, w.LinkSelector)
		logger.Debugf("found %d links on %s", len(links), current)
		for _, link := range links {
			if w.IsDirectory(link) {
				queue = append(queue, link.String())
				continue
			}
			if w.IsStore != nil && !w.IsStore(link) {
				continue
			}
			norm, err := utils.NormalizeURL(link.String())
			if err != nil || storeSeen[norm] {
				continue
			}
			storeSeen[norm] = true
			stores = append(stores, link.String())
		}
	}

	logger.Infof("directory walk finished: %d pages, %d store URLs", pages, len(stores))
	return stores, nil
}

// ResolveLinks returns the absolute http(s) URLs of the hrefs matched by selector.
func ResolveLinks(doc *goquery.Document, pageURL, selector string) []*url.URL {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	var links []*url.URL
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		abs.Fragment = ""
		links = append(links, abs)
	})
	return links
}
