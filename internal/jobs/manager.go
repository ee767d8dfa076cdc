// Package jobs orchestrates scrape jobs: per-tenant exclusivity, query
// sequencing, bounded fan-out, and progress/event emission.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/analyzer"
	"github.com/xandervandijck/scraper-backend/internal/cache"
	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/metrics"
	"github.com/xandervandijck/scraper-backend/internal/progress"
)

// Fatal start errors. Anything past Start surfaces through events instead.
var (
	ErrJobAlreadyRunning = errors.New("job already running for tenant")
	ErrNoQueries         = errors.New("no queries generated")
)

// counterFlushInterval is how many completed events (lead or duplicate) pass
// between session-counter flushes.
const counterFlushInterval = 10

// Deps are the collaborators a Manager drives.
type Deps struct {
	Registry *analyzer.Registry
	Searcher leads.Searcher
	Scraper  leads.Scraper
	Sink     leads.LeadSink
	Sessions leads.SessionStore
	Cache    *cache.Cache
	Logger   *zap.Logger
}

// Manager holds at most one running Job per tenant.
type Manager struct {
	deps Deps

	mu   sync.Mutex
	jobs map[string]*Job
}

// Job is the per-tenant handle for one running scrape.
type Job struct {
	SessionID string
	TenantID  string
	ListID    string
	Config    leads.JobConfig

	tracker       *progress.Tracker
	sink          progress.Broadcaster
	stopRequested atomic.Bool

	mu         sync.Mutex
	counters   leads.Counters
	processed  map[string]struct{}
	sinceFlush int
}

// NewManager builds a Manager.
func NewManager(deps Deps) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Manager{deps: deps, jobs: make(map[string]*Job)}
}

// Start launches a job for the tenant. It fails fast with
// ErrJobAlreadyRunning, ErrNoQueries, or analyzer.ErrUnknownUseCase; once it
// returns a session ID the driver owns the job until it exits and removes
// the tenant entry. The shared visited-domain cache is cleared so a fresh
// run re-opens previously scraped domains.
func (m *Manager) Start(ctx context.Context, tenantID, listID string, cfg leads.JobConfig, sink progress.Broadcaster) (string, error) {
	cfg = cfg.Normalized()

	an, err := m.deps.Registry.Get(cfg.UseCase)
	if err != nil {
		return "", err
	}
	queries := an.GenerateQueries(cfg)
	if len(queries) == 0 {
		return "", ErrNoQueries
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.jobs[tenantID]; running {
		return "", fmt.Errorf("%w: %s", ErrJobAlreadyRunning, tenantID)
	}

	sessionID, err := m.deps.Sessions.Create(ctx, tenantID, listID, cfg, queries)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	if m.deps.Cache != nil {
		m.deps.Cache.Visited.Clear()
	}

	if sink == nil {
		sink = progress.BroadcastFunc(nil)
	}
	job := &Job{
		SessionID: sessionID,
		TenantID:  tenantID,
		ListID:    listID,
		Config:    cfg,
		sink:      sink,
		tracker:   progress.NewTracker(sessionID, sink),
		processed: make(map[string]struct{}),
	}
	m.jobs[tenantID] = job
	metrics.JobActive(1)

	go m.drive(job, an, queries)
	return sessionID, nil
}

// Stop requests cooperative cancellation and reports whether a job existed.
func (m *Manager) Stop(tenantID string) bool {
	m.mu.Lock()
	job, ok := m.jobs[tenantID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	job.stopRequested.Store(true)
	job.tracker.Stopping()
	return true
}

// StopAll requests cancellation of every active job. Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.Unlock()
	for _, job := range jobs {
		job.stopRequested.Store(true)
		job.tracker.Stopping()
	}
}

// Status returns a counters snapshot for the tenant's running job.
func (m *Manager) Status(tenantID string) (leads.Counters, bool) {
	m.mu.Lock()
	job, ok := m.jobs[tenantID]
	m.mu.Unlock()
	if !ok {
		return leads.Counters{}, false
	}
	return job.snapshotCounters(), true
}

// Active reports the number of running jobs.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

func (m *Manager) remove(tenantID string) {
	m.mu.Lock()
	delete(m.jobs, tenantID)
	m.mu.Unlock()
}

// markProcessed records the domain in the per-job set before any work
// begins, so parallel queries returning the same domain cannot double-fetch.
func (j *Job) markProcessed(domain string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, done := j.processed[domain]; done {
		return false
	}
	j.processed[domain] = struct{}{}
	return true
}

func (j *Job) seenDomain(domain string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, done := j.processed[domain]
	return done
}

func (j *Job) snapshotCounters() leads.Counters {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.counters
}

// noteCompleted bumps the given counter and reports whether the session
// counters are due for a flush.
func (j *Job) noteCompleted(apply func(*leads.Counters)) (leads.Counters, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	apply(&j.counters)
	j.sinceFlush++
	if j.sinceFlush >= counterFlushInterval {
		j.sinceFlush = 0
		return j.counters, true
	}
	return j.counters, false
}

func (j *Job) addError() leads.Counters {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.counters.ErrorsCount++
	return j.counters
}

func (j *Job) emit(evt progress.Event) {
	evt.SessionID = j.SessionID
	if evt.TS.IsZero() {
		evt.TS = time.Now()
	}
	j.sink.Broadcast(evt)
}
