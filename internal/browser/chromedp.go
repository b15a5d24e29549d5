// internal/browser/chromedp.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/valpere/StoreScrapexter/internal/scraper"
	"github.com/valpere/StoreScrapexter/internal/utils"
)

// Renderer loads pages in headless Chrome and returns the rendered DOM.
// It satisfies scraper.DocumentFetcher. Chrome starts on the first render;
// every page gets its own tab.
type Renderer struct {
	config        *BrowserConfig
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        utils.Logger

	statsMu sync.Mutex
	stats   BrowserStats
}

var _ scraper.DocumentFetcher = (*Renderer)(nil)

// NewRenderer creates a renderer. No browser process is started yet.
func NewRenderer(config *BrowserConfig, logger utils.Logger) *Renderer {
	if config == nil {
		config = DefaultBrowserConfig()
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(config)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Debugf),
		chromedp.WithErrorf(logger.Warnf),
	)

	return &Renderer{
		config:        config,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}
}

func allocatorOptions(config *BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker environments
	}
	if config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}
	if config.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(config.UserDataDir))
	}
	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.ViewportWidth > 0 && config.ViewportHeight > 0 {
		opts = append(opts, chromedp.WindowSize(config.ViewportWidth, config.ViewportHeight))
	}
	if config.BlockResources {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return opts
}

// tasks builds the action list for one page load; html receives the rendered markup.
func (r *Renderer) tasks(targetURL string, html *string) chromedp.Tasks {
	tasks := chromedp.Tasks{}
	if r.config.BlockResources {
		tasks = append(tasks,
			network.Enable(),
			network.SetBlockedURLs(scraper.BlockedURLPatterns()),
		)
	}
	tasks = append(tasks,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body"),
	)
	if r.config.WaitForElement != "" {
		tasks = append(tasks, chromedp.WaitVisible(r.config.WaitForElement))
	}
	if r.config.WaitDelay > 0 {
		tasks = append(tasks, chromedp.Sleep(r.config.WaitDelay))
	}
	return append(tasks, chromedp.OuterHTML("html", html))
}

// RenderHTML navigates to targetURL in a fresh tab and returns the page HTML
// once the body (and the configured element, if any) is ready.
func (r *Renderer) RenderHTML(ctx context.Context, targetURL string) (string, error) {
	tabCtx, cancel := chromedp.NewContext(r.browserCtx)
	defer cancel()
	if r.config.Timeout > 0 {
		tabCtx, cancel = context.WithTimeout(tabCtx, r.config.Timeout)
		defer cancel()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx, r.tasks(targetURL, &html))
	r.record(time.Since(start), err)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("render %s failed: %w", targetURL, err)
	}
	return html, nil
}

// GetDocument renders targetURL and parses the result with goquery.
func (r *Renderer) GetDocument(ctx context.Context, targetURL string) (*goquery.Document, error) {
	html, err := r.RenderHTML(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered HTML from %s: %w", targetURL, err)
	}
	if u, err := url.Parse(targetURL); err == nil {
		doc.Url = u
	}
	return doc, nil
}

func (r *Renderer) record(loadTime time.Duration, err error) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	if err != nil {
		r.stats.Errors++
		if errors.Is(err, context.DeadlineExceeded) {
			r.stats.TimeoutsOccurred++
		}
		return
	}
	r.stats.PagesLoaded++
	if r.stats.PagesLoaded == 1 {
		r.stats.AverageLoadTime = loadTime
	} else {
		r.stats.AverageLoadTime = (r.stats.AverageLoadTime + loadTime) / 2
	}
}

// Stats returns a snapshot of rendering statistics.
func (r *Renderer) Stats() BrowserStats {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	return r.stats
}

// Close shuts the browser down.
func (r *Renderer) Close() error {
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}
