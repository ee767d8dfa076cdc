package jobs

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/limiter"
	"github.com/xandervandijck/scraper-backend/internal/metrics"
	"github.com/xandervandijck/scraper-backend/internal/progress"
)

// drive runs the whole job: queries strictly in order, URL fan-out bounded
// by the per-job limiter, all URL tasks settled before the next query. It
// always removes the tenant entry on exit, panics included; that removal is
// what clears ErrJobAlreadyRunning for the tenant.
func (m *Manager) drive(job *Job, an leads.Analyzer, queries []leads.QuerySpec) {
	ctx := context.Background()
	log := m.deps.Logger.With(
		zap.String("session_id", job.SessionID),
		zap.String("tenant_id", job.TenantID),
	)

	finished := false
	defer func() {
		if r := recover(); r != nil && !finished {
			log.Error("job driver panicked", zap.Any("panic", r))
			m.finishJob(ctx, job, leads.SessionError, fmt.Sprintf("%v", r))
		}
		m.remove(job.TenantID)
		metrics.JobActive(-1)
	}()

	job.tracker.Start(len(queries))
	job.emit(progress.Event{Type: progress.TypeJobStarted, Queries: len(queries)})
	log.Info("job started",
		zap.Int("queries", len(queries)),
		zap.String("use_case", job.Config.UseCase))

	lim := limiter.New(job.Config.Concurrency)

	for _, spec := range queries {
		if job.stopRequested.Load() {
			break
		}
		if job.snapshotCounters().LeadsFound >= job.Config.TargetLeads {
			break
		}
		m.runQuery(ctx, job, an, lim, spec, log)
		job.tracker.QueryDone()
	}

	status := leads.SessionDone
	if job.stopRequested.Load() {
		status = leads.SessionStopped
	}
	m.finishJob(ctx, job, status, "")
	finished = true
	log.Info("job finished", zap.String("status", string(status)))
}

// runQuery searches one QuerySpec and fans its URLs out through the limiter.
// One failing URL never aborts its siblings.
func (m *Manager) runQuery(ctx context.Context, job *Job, an leads.Analyzer, lim *limiter.Limiter, spec leads.QuerySpec, log *zap.Logger) {
	job.emit(progress.Event{
		Type:    progress.TypeQueryStart,
		Query:   spec.Query,
		Sector:  spec.SectorLabel,
		Country: spec.CountryLabel,
	})
	job.tracker.QueryStarted(spec.SectorLabel, spec.CountryLabel)

	result := m.cachedSearch(ctx, spec.Query)
	evt := progress.Event{
		Type:         progress.TypeSearchProgress,
		Query:        spec.Query,
		ResultsFound: len(result.URLs),
		Blocked:      result.Blocked,
		Source:       result.Source,
	}
	if result.Err != nil {
		evt.Error = result.Err.Error()
		log.Warn("search failed", zap.String("query", spec.Query), zap.Error(result.Err))
	}
	job.emit(evt)

	candidates := job.filterCandidates(result.URLs)
	job.emit(progress.Event{Type: progress.TypeDomainsFound, Count: len(candidates)})
	job.tracker.DomainsFound(len(candidates))

	var wg sync.WaitGroup
	for _, rawURL := range candidates {
		wg.Add(1)
		go func(rawURL string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error("url task panicked", zap.String("url", rawURL), zap.Any("panic", r))
					job.addError()
					job.tracker.ErrorOccurred()
				}
			}()
			metrics.SetLimiterQueueDepth(lim.QueueDepth())
			_ = lim.Run(ctx, func() {
				m.processURL(ctx, job, an, rawURL, log)
			})
		}(rawURL)
	}
	wg.Wait()
}

// cachedSearch serves repeated queries from the shared TTL cache so
// overlapping sector/country combinations do not hit the engine twice within
// the cache window. Blocked or failed searches are never cached.
func (m *Manager) cachedSearch(ctx context.Context, query string) leads.SearchResult {
	cacheKey := "search:" + query
	if m.deps.Cache != nil {
		if cached, ok := m.deps.Cache.Results.Get(cacheKey); ok {
			if result, ok := cached.(leads.SearchResult); ok {
				return result
			}
		}
	}
	result := m.deps.Searcher.Search(ctx, query, 0)
	if m.deps.Cache != nil && !result.Blocked && result.Err == nil {
		m.deps.Cache.Results.Set(cacheKey, result)
	}
	return result
}

// filterCandidates drops invalid TLDs, noise hosts, and domains this job has
// already dispatched.
func (j *Job) filterCandidates(urls []string) []string {
	var out []string
	for _, rawURL := range urls {
		domain := leads.NormalizeDomain(rawURL)
		if domain == "" || !leads.HasValidTLD(domain) || leads.IsNoiseDomain(domain) {
			continue
		}
		if j.seenDomain(domain) {
			continue
		}
		out = append(out, rawURL)
	}
	return out
}

// processURL runs one candidate through scrape -> score gate -> persist.
func (m *Manager) processURL(ctx context.Context, job *Job, an leads.Analyzer, rawURL string, log *zap.Logger) {
	domain := leads.NormalizeDomain(rawURL)
	// Claim the domain before any work so a parallel query cannot race it in.
	if !job.markProcessed(domain) {
		return
	}
	if job.stopRequested.Load() {
		return
	}

	lead, err := m.deps.Scraper.Scrape(ctx, rawURL, leads.ScrapeOptions{
		EmailValidation: job.Config.ValidateEmails(),
		DeepValidation:  job.Config.DeepValidation,
		Analyzer:        an,
	})
	defer job.tracker.DomainProcessed(domain)

	if err != nil {
		log.Warn("scrape failed", zap.String("url", rawURL), zap.Error(err))
		job.addError()
		job.tracker.ErrorOccurred()
		job.tracker.Log(progress.LevelWarn, fmt.Sprintf("scrape %s failed: %v", domain, err))
		return
	}
	if lead == nil {
		return
	}
	if lead.Score < job.Config.MinScore {
		job.tracker.Log(progress.LevelInfo,
			fmt.Sprintf("%s scored %d, below threshold %d", domain, lead.Score, job.Config.MinScore))
		return
	}

	outcome, err := m.deps.Sink.InsertDeduped(ctx, *lead, job.TenantID, job.ListID)
	switch {
	case err != nil:
		metrics.LeadInserted("error")
		log.Error("lead insert failed", zap.String("domain", domain), zap.Error(err))
		job.addError()
		job.tracker.ErrorOccurred()
		job.tracker.Log(progress.LevelError, fmt.Sprintf("persist %s failed: %v", domain, err))
	case outcome.Inserted:
		metrics.LeadInserted("inserted")
		counters, flush := job.noteCompleted(func(c *leads.Counters) { c.LeadsFound++ })
		job.tracker.LeadFound()
		job.emit(progress.Event{Type: progress.TypeLead, Lead: lead})
		job.tracker.Log(progress.LevelSuccess, fmt.Sprintf("lead %s (%d)", domain, lead.Score))
		m.maybeFlush(ctx, job, counters, flush)
	case outcome.Reason == leads.ReasonDuplicate:
		metrics.LeadInserted(leads.ReasonDuplicate)
		counters, flush := job.noteCompleted(func(c *leads.Counters) { c.DuplicatesSkipped++ })
		m.maybeFlush(ctx, job, counters, flush)
	default:
		metrics.LeadInserted(outcome.Reason)
		job.addError()
		job.tracker.ErrorOccurred()
	}
}

// maybeFlush persists counters and emits a progress event every
// counterFlushInterval completed events.
func (m *Manager) maybeFlush(ctx context.Context, job *Job, counters leads.Counters, due bool) {
	if !due {
		return
	}
	if err := m.deps.Sessions.Update(ctx, job.SessionID, leads.SessionUpdate{
		Counters: counters,
		Status:   leads.SessionRunning,
	}); err != nil {
		m.deps.Logger.Warn("session counter flush failed",
			zap.String("session_id", job.SessionID), zap.Error(err))
	}
	job.emit(progress.Event{Type: progress.TypeProgress, Counters: &counters})
}

// finishJob writes the terminal session state and emits job_done (or
// job_error for a panicking driver).
func (m *Manager) finishJob(ctx context.Context, job *Job, status leads.SessionStatus, panicMsg string) {
	counters := job.snapshotCounters()
	if err := m.deps.Sessions.Update(ctx, job.SessionID, leads.SessionUpdate{
		Counters: counters,
		Status:   status,
	}); err != nil {
		m.deps.Logger.Warn("final session update failed",
			zap.String("session_id", job.SessionID), zap.Error(err))
	}
	job.tracker.Finish()
	if status == leads.SessionError {
		job.emit(progress.Event{Type: progress.TypeJobError, Error: panicMsg})
	} else {
		job.emit(progress.Event{
			Type:        progress.TypeJobDone,
			FinalStatus: string(status),
			Counters:    &counters,
		})
	}
	metrics.JobFinished(string(status))
}
