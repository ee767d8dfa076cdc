package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xandervandijck/scraper-backend/internal/analyzer"
	"github.com/xandervandijck/scraper-backend/internal/cache"
	"github.com/xandervandijck/scraper-backend/internal/jobs"
	"github.com/xandervandijck/scraper-backend/internal/leads"
	"github.com/xandervandijck/scraper-backend/internal/storage/memory"
)

type stubAnalyzer struct{ queries []leads.QuerySpec }

func (s *stubAnalyzer) GenerateQueries(leads.JobConfig) []leads.QuerySpec { return s.queries }

func (s *stubAnalyzer) FetchExtra(context.Context, string, leads.FetchFunc) (leads.ExtraResult, error) {
	return leads.ExtraResult{}, nil
}

func (s *stubAnalyzer) Analyze(leads.AnalyzeInput) leads.AnalyzeResult {
	return leads.AnalyzeResult{}
}

type stubSearcher struct{ release chan struct{} }

func (s *stubSearcher) Search(context.Context, string, int) leads.SearchResult {
	if s.release != nil {
		<-s.release
	}
	return leads.SearchResult{}
}

type stubScraper struct{}

func (stubScraper) Scrape(context.Context, string, leads.ScrapeOptions) (*leads.Lead, error) {
	return nil, nil
}

func testServer(t *testing.T, searcher leads.Searcher) *Server {
	t.Helper()
	reg := analyzer.NewRegistry()
	reg.Register("erp", &stubAnalyzer{queries: []leads.QuerySpec{{Query: "q"}}})
	store := cache.New()
	t.Cleanup(store.Close)
	manager := jobs.NewManager(jobs.Deps{
		Registry: reg,
		Searcher: searcher,
		Scraper:  stubScraper{},
		Sink:     memory.NewLeadStore(),
		Sessions: memory.NewSessionStore(),
		Cache:    store,
	})
	return NewServer(manager, nil, nil)
}

func TestStartStopStatusFlow(t *testing.T) {
	t.Parallel()

	searcher := &stubSearcher{release: make(chan struct{})}
	srv := testServer(t, searcher)

	body := strings.NewReader(`{"list_id": "list-1", "config": {"use_case": "erp"}}`)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/tenant-1/start", body))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	require.NotEmpty(t, started["session_id"])

	// Second start conflicts while the job runs.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/tenant-1/start",
		strings.NewReader(`{"list_id": "list-1"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/tenant-1/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/tenant-1/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	close(searcher.release)
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/tenant-1/status", nil))
		return rec.Code == http.StatusNotFound
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStartBadRequests(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &stubSearcher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/t/start",
		strings.NewReader(`{not json`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/t/start",
		strings.NewReader(`{"config": {}}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing list_id")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/t/start",
		strings.NewReader(`{"list_id": "l", "config": {"use_case": "bogus"}}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code, "unknown use case")
}

func TestStopAndStatusWithoutJob(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &stubSearcher{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/jobs/ghost/stop", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs/ghost/status", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := testServer(t, &stubSearcher{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
