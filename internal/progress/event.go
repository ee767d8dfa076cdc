// Package progress defines the event stream emitted by running jobs and the
// tracker that derives rates, ETA, and percentages from it.
package progress

import (
	"time"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// Type denotes the kind of milestone represented by an Event.
type Type string

// Supported event types. Within one query a subscriber sees query_start,
// search_progress and domains_found in that order, then the query's lead
// events; progress, update and log events interleave, and a job ends with
// either job_done or job_error.
const (
	TypeJobStarted     Type = "job_started"
	TypeQueryStart     Type = "query_start"
	TypeDomainsFound   Type = "domains_found"
	TypeSearchProgress Type = "search_progress"
	TypeLead           Type = "lead"
	TypeProgress       Type = "progress"
	TypeUpdate         Type = "update"
	TypeLog            Type = "log"
	TypeJobError       Type = "job_error"
	TypeJobDone        Type = "job_done"
)

// Log levels carried by TypeLog events.
const (
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Event is a single progress milestone. Only the fields relevant to the
// event's Type are populated.
type Event struct {
	Type      Type      `json:"type"`
	TS        time.Time `json:"ts"`
	SessionID string    `json:"session_id,omitempty"`

	// query_start / search_progress
	Query   string `json:"query,omitempty"`
	Sector  string `json:"sector,omitempty"`
	Country string `json:"country,omitempty"`

	// job_started / domains_found
	Queries int `json:"queries,omitempty"`
	Count   int `json:"count,omitempty"`

	// search_progress
	ResultsFound int    `json:"results_found,omitempty"`
	Blocked      bool   `json:"blocked,omitempty"`
	Source       string `json:"source,omitempty"`

	// lead / progress / job_done
	Lead        *leads.Lead     `json:"lead,omitempty"`
	Counters    *leads.Counters `json:"counters,omitempty"`
	FinalStatus string          `json:"final_status,omitempty"`

	// log
	Level   string `json:"level,omitempty"`
	Message string `json:"message,omitempty"`

	// job_error / search_progress
	Error string `json:"error,omitempty"`

	// update
	Snapshot *Snapshot `json:"snapshot,omitempty"`
}

// Broadcaster delivers events to a subscribed client. Broadcast is
// fire-and-forget and must never block the caller.
type Broadcaster interface {
	Broadcast(evt Event)
}

// BroadcastFunc adapts a function to the Broadcaster interface.
type BroadcastFunc func(evt Event)

// Broadcast calls f.
func (f BroadcastFunc) Broadcast(evt Event) {
	if f != nil {
		f(evt)
	}
}
