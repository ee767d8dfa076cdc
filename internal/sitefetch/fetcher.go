// Package sitefetch retrieves candidate homepages plus their contact pages
// and distills them into scored leads.
package sitefetch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xandervandijck/scraper-backend/internal/cache"
	"github.com/xandervandijck/scraper-backend/internal/emailcheck"
	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/metrics"
)

const (
	defaultHomepageTimeout = 12 * time.Second
	defaultContactTimeout  = 8 * time.Second
	defaultMaxRedirects    = 5
	defaultContactDelay    = 500 * time.Millisecond
	defaultPerDomainRPS    = 2

	maxContactPages = 2
)

// contactLinkRe matches the path tail of typical contact/about pages across
// the NL/BE/DE markets.
var contactLinkRe = regexp.MustCompile(`(?i)(contact|over-ons|about|kontakt|kontaktieren|uber-uns|over|info)[/-]?$`)

// Config controls fetch behavior.
type Config struct {
	UserAgent       string
	HomepageTimeout time.Duration
	ContactTimeout  time.Duration
	MaxRedirects    int
	ContactDelay    time.Duration
	PerDomainRPS    float64
}

func (c Config) withDefaults() Config {
	if c.HomepageTimeout <= 0 {
		c.HomepageTimeout = defaultHomepageTimeout
	}
	if c.ContactTimeout <= 0 {
		c.ContactTimeout = defaultContactTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	if c.ContactDelay <= 0 {
		c.ContactDelay = defaultContactDelay
	}
	if c.PerDomainRPS <= 0 {
		c.PerDomainRPS = defaultPerDomainRPS
	}
	return c
}

// Fetcher implements leads.Scraper over colly with per-domain politeness.
type Fetcher struct {
	cfg       Config
	cache     *cache.Cache
	validator *emailcheck.Validator
	logger    *zap.Logger
	base      *colly.Collector

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// New builds a Fetcher. The validator may be nil when email validation is
// globally disabled.
func New(cfg Config, store *cache.Cache, validator *emailcheck.Validator, logger *zap.Logger) *Fetcher {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	base := colly.NewCollector(colly.Async(false))
	// Homepage plus at most two contact pages per site; robots negotiation
	// is out of scope for this crawl shape. Dedup lives in the visited-domain
	// cache, and analyzers may legitimately re-fetch the homepage, so the
	// collector's own revisit guard stays off.
	base.IgnoreRobotsTxt = true
	base.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}
	return &Fetcher{
		cfg:       cfg,
		cache:     store,
		validator: validator,
		logger:    logger,
		base:      base,
		limiters:  make(map[string]*rate.Limiter),
		sleep:     sleepCtx,
		now:       time.Now,
	}
}

// Scrape fetches the homepage and up to two contact pages, runs the
// analyzer, validates the primary email, and assembles the Lead. A nil Lead
// with nil error means the site was skipped (noise or already visited).
func (f *Fetcher) Scrape(ctx context.Context, rawURL string, opts leads.ScrapeOptions) (*leads.Lead, error) {
	domain := leads.NormalizeDomain(rawURL)
	if domain == "" {
		return nil, fmt.Errorf("no domain in %q", rawURL)
	}
	if leads.IsNoiseDomain(domain) {
		return nil, nil
	}
	if !f.cache.Visited.Visit(domain) {
		return nil, nil
	}

	start := f.now()
	homepage, err := f.Fetch(ctx, rawURL, f.cfg.HomepageTimeout)
	if err != nil {
		metrics.SiteFetched("homepage", "error", f.now().Sub(start))
		return nil, fmt.Errorf("fetch homepage: %w", err)
	}
	metrics.SiteFetched("homepage", "ok", f.now().Sub(start))

	homeDoc, err := goquery.NewDocumentFromReader(bytes.NewReader(homepage))
	if err != nil {
		return nil, fmt.Errorf("parse homepage: %w", err)
	}

	textBuf := collapseText(homeDoc)
	rawBuf := string(homepage)
	docs := []*goquery.Document{homeDoc}

	for _, link := range f.contactLinks(rawURL, homeDoc) {
		// Politeness between consecutive fetches against the same site.
		f.sleep(ctx, f.cfg.ContactDelay)
		if ctx.Err() != nil {
			break
		}
		body, err := f.Fetch(ctx, link, f.cfg.ContactTimeout)
		if err != nil {
			metrics.SiteFetched("contact", "error", 0)
			f.logger.Debug("contact page fetch failed", zap.String("url", link), zap.Error(err))
			continue
		}
		metrics.SiteFetched("contact", "ok", 0)
		rawBuf += string(body)
		if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
			textBuf += " " + collapseText(doc)
			docs = append(docs, doc)
		}
	}

	extra := leads.ExtraResult{}
	if opts.Analyzer != nil {
		extra, err = opts.Analyzer.FetchExtra(ctx, rawURL, f.Fetch)
		if err != nil {
			f.logger.Debug("analyzer extra fetch failed", zap.String("domain", domain), zap.Error(err))
			extra = leads.ExtraResult{}
		}
		if extra.Text != "" {
			textBuf += " " + extra.Text
		}
	}

	primary, all := extractEmails(rawBuf+" "+textBuf, domain)

	result := leads.AnalyzeResult{}
	if opts.Analyzer != nil {
		result = opts.Analyzer.Analyze(leads.AnalyzeInput{
			Text:   textBuf,
			URL:    rawURL,
			Domain: domain,
			Extra:  extra.Data,
			Emails: all,
		})
	}

	lead := &leads.Lead{
		CompanyName:  extractCompanyName(homeDoc, domain),
		Website:      rawURL,
		Domain:       domain,
		Email:        primary,
		AllEmails:    all,
		Phone:        extractPhone(textBuf),
		Address:      extractAddress(docs),
		Description:  extractDescription(homeDoc),
		Score:        result.Score,
		AnalysisData: result.Data,
		FoundAt:      f.now(),
	}

	switch {
	case primary == "":
		lead.EmailValidationReason = "no_email_found"
	case opts.EmailValidation && f.validator != nil:
		res := f.validator.Validate(ctx, primary, opts.DeepValidation)
		lead.EmailValid = res.Valid
		lead.EmailValidationScore = res.Score
		lead.EmailValidationReason = res.Reason
		metrics.ValidationCompleted(res.Reason)
	}

	return lead, nil
}

// Fetch retrieves one URL body within the timeout, respecting per-domain
// pacing and the redirect cap. Also handed to analyzers as leads.FetchFunc.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error) {
	if err := f.domainLimiter(rawURL).Wait(ctx); err != nil {
		return nil, fmt.Errorf("politeness wait: %w", err)
	}

	collector := f.base.Clone()
	collector.SetRequestTimeout(timeout)
	redirects := f.cfg.MaxRedirects
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= redirects {
			return fmt.Errorf("stopped after %d redirects", redirects)
		}
		return nil
	})

	var (
		body     []byte
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() { done <- collector.Visit(rawURL) }()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", rawURL, err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
	}
	if body == nil {
		return nil, fmt.Errorf("fetch %s: empty response", rawURL)
	}
	return body, nil
}

// contactLinks finds same-domain contact/about links on the homepage,
// capped at two.
func (f *Fetcher) contactLinks(baseURL string, doc *goquery.Document) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	baseDomain := leads.NormalizeDomain(base.Host)
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		if leads.NormalizeDomain(abs.Host) != baseDomain {
			return true
		}
		abs.Fragment = ""
		target := strings.TrimSuffix(abs.String(), "/")
		if !contactLinkRe.MatchString(target) {
			return true
		}
		if _, dup := seen[target]; dup {
			return true
		}
		seen[target] = struct{}{}
		links = append(links, abs.String())
		return len(links) < maxContactPages
	})
	return links
}

func (f *Fetcher) domainLimiter(rawURL string) *rate.Limiter {
	domain := leads.NormalizeDomain(rawURL)
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(f.cfg.PerDomainRPS), 1)
		f.limiters[domain] = limiter
	}
	return limiter
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

var _ leads.Scraper = (*Fetcher)(nil)
