package search

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/metrics"
)

const (
	defaultFallbackURL = "https://html.duckduckgo.com/html/"
	rateLimitBackoff   = 30 * time.Second
)

// fallbackUserAgents rotate per request so the HTML endpoint sees a mix of
// ordinary browsers.
var fallbackUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// fallbackClient searches via the engine's plain HTML endpoint with a form
// POST, used when the browser path is disabled or erroring.
type fallbackClient struct {
	endpoint string
	base     *colly.Collector
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration)
}

func newFallbackClient(cfg Config, logger *zap.Logger) *fallbackClient {
	endpoint := cfg.FallbackURL
	if endpoint == "" {
		endpoint = defaultFallbackURL
	}
	base := colly.NewCollector(colly.Async(false))
	base.IgnoreRobotsTxt = true
	base.AllowURLRevisit = true
	base.SetRequestTimeout(cfg.NavTimeout)
	return &fallbackClient{
		endpoint: endpoint,
		base:     base,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

func (f *fallbackClient) search(ctx context.Context, query string, maxResults int) leads.SearchResult {
	collector := f.base.Clone()
	collector.UserAgent = fallbackUserAgents[rand.Intn(len(fallbackUserAgents))]

	var (
		hrefs       []string
		rateLimited bool
		fetchErr    error
	)
	collector.OnHTML("a.result__a", func(e *colly.HTMLElement) {
		if href := e.Attr("href"); href != "" {
			hrefs = append(hrefs, e.Request.AbsoluteURL(href))
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode == http.StatusTooManyRequests {
			rateLimited = true
			return
		}
		fetchErr = err
	})

	if err := collector.Post(f.endpoint, map[string]string{"q": query}); err != nil && fetchErr == nil && !rateLimited {
		fetchErr = err
	}
	collector.Wait()

	switch {
	case rateLimited:
		f.logger.Warn("html endpoint rate limited", zap.String("query", query))
		metrics.SearchCompleted(leads.SearchSourceHTTP, "rate_limited")
		f.sleep(ctx, rateLimitBackoff)
		return leads.SearchResult{Blocked: true, Source: leads.SearchSourceHTTP}
	case fetchErr != nil:
		metrics.SearchCompleted(leads.SearchSourceHTTP, "error")
		return leads.SearchResult{
			Source: leads.SearchSourceHTTP,
			Err:    fmt.Errorf("html search: %w", fetchErr),
		}
	}

	metrics.SearchCompleted(leads.SearchSourceHTTP, "ok")
	return leads.SearchResult{
		URLs:   normalizeResults(hrefs, maxResults),
		Source: leads.SearchSourceHTTP,
	}
}
