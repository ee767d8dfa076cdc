package leads

import (
	"context"
	"time"
)

// LeadSink persists leads. The implementation enforces uniqueness on
// (tenant, normalized domain); re-inserting an existing pair reports
// {Inserted: false, Reason: "duplicate"} without side effects.
type LeadSink interface {
	InsertDeduped(ctx context.Context, lead Lead, tenantID, listID string) (InsertOutcome, error)
}

// SessionStore persists one row per job execution with live counters.
type SessionStore interface {
	Create(ctx context.Context, tenantID, listID string, cfg JobConfig, queries []QuerySpec) (string, error)
	Update(ctx context.Context, sessionID string, update SessionUpdate) error
}

// Searcher issues one search-engine query and returns candidate URLs.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) SearchResult
}

// Scraper turns a candidate homepage URL into a scored Lead. A nil Lead with
// a nil error means the site was skipped (noise, already visited).
type Scraper interface {
	Scrape(ctx context.Context, rawURL string, opts ScrapeOptions) (*Lead, error)
}

// FetchFunc retrieves the body of a URL within a timeout. Analyzers receive
// one for their optional second-pass crawl.
type FetchFunc func(ctx context.Context, rawURL string, timeout time.Duration) ([]byte, error)

// ExtraResult is the outcome of an analyzer's optional second-pass crawl.
type ExtraResult struct {
	Text string
	Data map[string]any
}

// AnalyzeInput is everything an analyzer sees about a scraped site.
type AnalyzeInput struct {
	Text   string
	URL    string
	Domain string
	Extra  map[string]any
	Emails []string
}

// AnalyzeResult carries the final score and the opaque per-analyzer payload.
// Data always contains a top-level "score" and a "breakdown" map.
type AnalyzeResult struct {
	Score int
	Data  map[string]any
}

// Analyzer owns a use case: its sector taxonomy and query templates, an
// optional extra crawl, and the deterministic scoring of a site.
type Analyzer interface {
	GenerateQueries(cfg JobConfig) []QuerySpec
	FetchExtra(ctx context.Context, baseURL string, fetch FetchFunc) (ExtraResult, error)
	Analyze(in AnalyzeInput) AnalyzeResult
}
