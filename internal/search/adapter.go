// Package search issues search-engine queries through a headless browser
// with a bounded page pool, block detection, and adaptive pacing, falling
// back to the engine's plain HTML endpoint.
package search

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/metrics"
)

const (
	defaultMaxPages   = 5
	defaultMaxResults = 30
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	searchEndpoint = "https://duckduckgo.com/"

	maxBlockRetries = 2
	blockBodyProbe  = 1000

	jitterMax = 500 * time.Millisecond
)

// blockMarkers identify anti-bot interstitials in the page title or body.
var blockMarkers = []string{
	"captcha", "unusual traffic", "blocked", "access denied",
	"too many requests", "robot", "automated", "bot check",
}

// resultSelectors is the cascade of CSS selectors tried against the result
// page, newest layout first.
var resultSelectors = []string{
	`a[data-testid="result-title-a"]`,
	`article[data-testid="result"] h2 a`,
	`.react-results--main article a[href]`,
	`#links .result__a`,
	`.results .result .result__a`,
	`.serp__results a[href]`,
	`h2 a[href^="http"]`,
}

// Config controls the search adapter.
type Config struct {
	UseBrowser      bool
	MaxPages        int
	MaxResults      int
	UserAgent       string
	NavTimeout      time.Duration
	SelectorTimeout time.Duration
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	FallbackURL     string
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 25 * time.Second
	}
	if c.SelectorTimeout <= 0 {
		c.SelectorTimeout = 4 * time.Second
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 1500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 60 * time.Second
	}
	return c
}

// Adapter implements leads.Searcher. One Adapter serves all jobs in the
// process; its adaptive delay and block counter are shared state.
type Adapter struct {
	cfg      Config
	browser  *chromeBrowser
	pool     *pagePool
	fallback *fallbackClient
	logger   *zap.Logger

	mu                sync.Mutex
	delay             time.Duration
	consecutiveBlocks int

	sleep  func(ctx context.Context, d time.Duration)
	jitter func() time.Duration
	run    func(ctx context.Context, page browserPage, query string) ([]string, bool, error)
}

// New builds an Adapter. The browser process starts lazily on first use.
func New(cfg Config, logger *zap.Logger) *Adapter {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{
		cfg:      cfg,
		fallback: newFallbackClient(cfg, logger),
		logger:   logger,
		delay:    cfg.BaseDelay,
		sleep:    sleepCtx,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(jitterMax)))
		},
	}
	a.run = a.runSearchPage
	if cfg.UseBrowser {
		a.browser = newChromeBrowser(cfg, logger)
		a.pool = newPagePool(cfg.MaxPages, a.browser.newPage)
		a.browser.onDisconnect = a.pool.drain
	}
	return a
}

// Close drains the page pool and stops the browser.
func (a *Adapter) Close() {
	if a.pool != nil {
		a.pool.drain()
	}
	if a.browser != nil {
		a.browser.close()
	}
}

// Search runs one query. The browser path handles blocks with retries and
// adaptive pacing; on browser errors (never on a blocked or empty result)
// the HTML endpoint takes over.
func (a *Adapter) Search(ctx context.Context, query string, maxResults int) leads.SearchResult {
	if maxResults <= 0 || maxResults > a.cfg.MaxResults {
		maxResults = a.cfg.MaxResults
	}
	if !a.cfg.UseBrowser {
		return a.fallback.search(ctx, query, maxResults)
	}
	result, err := a.browserSearch(ctx, query, maxResults, 0)
	if err != nil {
		a.logger.Warn("browser search failed, using http fallback",
			zap.String("query", query), zap.Error(err))
		metrics.SearchCompleted(leads.SearchSourceBrowser, "error")
		return a.fallback.search(ctx, query, maxResults)
	}
	return result
}

func (a *Adapter) browserSearch(ctx context.Context, query string, maxResults, retry int) (leads.SearchResult, error) {
	page, err := a.pool.acquire(ctx)
	if err != nil {
		return leads.SearchResult{}, err
	}

	hrefs, blocked, err := a.run(ctx, page, query)
	if err != nil {
		a.pool.discard(page)
		return leads.SearchResult{}, err
	}

	if blocked {
		a.pool.release(ctx, page)
		a.noteBlock()
		if retry < maxBlockRetries {
			backoff := time.Duration(8000+retry*12000) * time.Millisecond
			a.logger.Warn("search blocked, backing off",
				zap.String("query", query),
				zap.Duration("backoff", backoff),
				zap.Int("retry", retry+1))
			a.sleep(ctx, backoff)
			if ctx.Err() != nil {
				return leads.SearchResult{}, ctx.Err()
			}
			return a.browserSearch(ctx, query, maxResults, retry+1)
		}
		metrics.SearchCompleted(leads.SearchSourceBrowser, "blocked")
		return leads.SearchResult{Blocked: true, Source: leads.SearchSourceBrowser}, nil
	}

	a.pool.release(ctx, page)
	urls := normalizeResults(hrefs, maxResults)
	a.noteSuccess()
	metrics.SearchCompleted(leads.SearchSourceBrowser, "ok")

	// Pace before handing back so the next query does not hammer the engine.
	a.sleep(ctx, a.currentDelay()+a.jitter())
	return leads.SearchResult{URLs: urls, Source: leads.SearchSourceBrowser}, nil
}

// runSearchPage navigates, detects blocks, waits for results through the
// selector cascade, and extracts hrefs.
func (a *Adapter) runSearchPage(ctx context.Context, page browserPage, query string) (hrefs []string, blocked bool, err error) {
	err = page.Run(ctx, func(pageCtx context.Context) error {
		var title, bodyProbe string
		navCtx, cancel := context.WithTimeout(pageCtx, a.cfg.NavTimeout)
		err := chromedp.Run(navCtx,
			chromedp.Navigate(a.searchURL(query)),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Title(&title),
			chromedp.Evaluate(fmt.Sprintf(`document.body ? document.body.innerText.slice(0, %d) : ""`, blockBodyProbe), &bodyProbe),
		)
		cancel()
		if err != nil {
			return fmt.Errorf("navigate search page: %w", err)
		}
		if isBlockedPage(title, bodyProbe) {
			blocked = true
			return nil
		}

		selector := a.waitForResults(pageCtx)
		if selector == "" {
			// One scroll sometimes triggers lazy rendering of the result list.
			_ = chromedp.Run(pageCtx,
				chromedp.Evaluate(`window.scrollBy(0, 500)`, nil),
				chromedp.Sleep(800*time.Millisecond),
			)
			selector = a.waitForResults(pageCtx)
		}

		extract := `Array.from(document.querySelectorAll('a[href]'))
			.map(a => a.href)
			.filter(h => h.startsWith('http'))`
		if selector != "" {
			extract = fmt.Sprintf(`Array.from(document.querySelectorAll(%q)).map(a => a.href)`, selector)
		}
		if err := chromedp.Run(pageCtx, chromedp.Evaluate(extract, &hrefs)); err != nil {
			return fmt.Errorf("extract hrefs: %w", err)
		}
		return nil
	})
	return hrefs, blocked, err
}

// waitForResults tries each selector in the cascade with a short timeout and
// returns the first that appears.
func (a *Adapter) waitForResults(pageCtx context.Context) string {
	for _, selector := range resultSelectors {
		selCtx, cancel := context.WithTimeout(pageCtx, a.cfg.SelectorTimeout)
		err := chromedp.Run(selCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
		cancel()
		if err == nil {
			return selector
		}
		if pageCtx.Err() != nil {
			return ""
		}
	}
	return ""
}

func (a *Adapter) searchURL(query string) string {
	return searchEndpoint + "?q=" + url.QueryEscape(query) + "&kl=nl-nl&ia=web"
}

// noteBlock doubles the pacing delay up to the cap.
func (a *Adapter) noteBlock() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveBlocks++
	a.delay *= 2
	if a.delay > a.cfg.MaxDelay {
		a.delay = a.cfg.MaxDelay
	}
}

// noteSuccess resets the block streak and decays the delay toward its floor.
func (a *Adapter) noteSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveBlocks = 0
	a.delay = time.Duration(float64(a.delay) * 0.9)
	if a.delay < a.cfg.BaseDelay {
		a.delay = a.cfg.BaseDelay
	}
}

func (a *Adapter) currentDelay() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.delay
}

func (a *Adapter) blockStreak() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.consecutiveBlocks
}

func isBlockedPage(title, body string) bool {
	haystack := strings.ToLower(title + " " + body)
	for _, marker := range blockMarkers {
		if strings.Contains(haystack, marker) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

var _ leads.Searcher = (*Adapter)(nil)
