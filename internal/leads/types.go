package leads

import (
	"time"
)

// SessionStatus represents the lifecycle state of a scrape session.
type SessionStatus string

// Session status values persisted in the session store.
const (
	SessionRunning SessionStatus = "running"
	SessionDone    SessionStatus = "done"
	SessionStopped SessionStatus = "stopped"
	SessionError   SessionStatus = "error"
)

// QuerySpec is one concrete search-engine query plus its provenance.
type QuerySpec struct {
	Query        string `json:"query"`
	SectorKey    string `json:"sector_key"`
	SectorLabel  string `json:"sector_label"`
	CountryKey   string `json:"country_key"`
	CountryLabel string `json:"country_label"`
}

// JobConfig captures the per-job knobs requested by the client. A zero value
// is usable after Normalized fills in defaults.
type JobConfig struct {
	UseCase         string   `json:"use_case" mapstructure:"use_case"`
	TargetLeads     int      `json:"target_leads" mapstructure:"target_leads"`
	SectorKeys      []string `json:"sector_keys" mapstructure:"sector_keys"`
	CountryKeys     []string `json:"country_keys" mapstructure:"country_keys"`
	MinScore        int      `json:"min_score" mapstructure:"min_score"`
	EmailValidation *bool    `json:"email_validation" mapstructure:"email_validation"`
	DeepValidation  bool     `json:"deep_validation" mapstructure:"deep_validation"`
	Concurrency     int      `json:"concurrency" mapstructure:"concurrency"`
	UseBrowser      *bool    `json:"use_browser" mapstructure:"use_browser"`
}

// Defaults applied by Normalized.
const (
	DefaultTargetLeads = 1000
	DefaultMinScore    = 50
	DefaultConcurrency = 5
	DefaultUseCase     = "erp"
)

// Normalized returns a copy with defaults applied. Empty sector/country
// selections mean "all" and are left empty for the analyzer to expand.
func (c JobConfig) Normalized() JobConfig {
	if c.UseCase == "" {
		c.UseCase = DefaultUseCase
	}
	if c.TargetLeads <= 0 {
		c.TargetLeads = DefaultTargetLeads
	}
	if c.MinScore <= 0 {
		c.MinScore = DefaultMinScore
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.EmailValidation == nil {
		c.EmailValidation = boolPtr(true)
	}
	if c.UseBrowser == nil {
		c.UseBrowser = boolPtr(true)
	}
	return c
}

// ValidateEmails reports whether email validation is enabled.
func (c JobConfig) ValidateEmails() bool {
	return c.EmailValidation == nil || *c.EmailValidation
}

// BrowserSearch reports whether the headless browser search path is enabled.
func (c JobConfig) BrowserSearch() bool {
	return c.UseBrowser == nil || *c.UseBrowser
}

func boolPtr(b bool) *bool { return &b }

// Counters tracks per-session outcomes. LeadsFound plus DuplicatesSkipped is
// monotonically non-decreasing over a job's lifetime.
type Counters struct {
	LeadsFound        int `json:"leads_found"`
	DuplicatesSkipped int `json:"duplicates_skipped"`
	ErrorsCount       int `json:"errors_count"`
}

// Lead is a scored company record keyed by normalized domain per tenant.
type Lead struct {
	CompanyName           string         `json:"company_name"`
	Website               string         `json:"website"`
	Domain                string         `json:"domain"`
	Email                 string         `json:"email,omitempty"`
	AllEmails             []string       `json:"all_emails,omitempty"`
	Phone                 string         `json:"phone,omitempty"`
	Address               string         `json:"address,omitempty"`
	Description           string         `json:"description,omitempty"`
	Score                 int            `json:"score"`
	AnalysisData          map[string]any `json:"analysis_data,omitempty"`
	EmailValid            bool           `json:"email_valid"`
	EmailValidationScore  int            `json:"email_validation_score"`
	EmailValidationReason string         `json:"email_validation_reason,omitempty"`
	FoundAt               time.Time      `json:"found_at"`
}

// SearchResult is the outcome of a single search-engine query.
type SearchResult struct {
	URLs    []string
	Blocked bool
	Source  string
	Err     error
}

// Search result sources.
const (
	SearchSourceBrowser = "browser"
	SearchSourceHTTP    = "http"
)

// ScrapeOptions controls a single site scrape.
type ScrapeOptions struct {
	EmailValidation bool
	DeepValidation  bool
	Analyzer        Analyzer
}

// InsertOutcome is returned by LeadSink.InsertDeduped.
type InsertOutcome struct {
	Inserted bool
	ID       string
	Reason   string
}

// Rejection reasons reported by a LeadSink.
const (
	ReasonDuplicate     = "duplicate"
	ReasonInvalidDomain = "invalid_domain"
)

// SessionUpdate carries counter and status changes to the session store.
type SessionUpdate struct {
	Counters Counters
	Status   SessionStatus
}
