// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// LeadStore implements leads.LeadSink with a map keyed by tenant+domain.
type LeadStore struct {
	mu    sync.RWMutex
	byKey map[string]leads.Lead
	seq   int
}

// NewLeadStore constructs an empty LeadStore.
func NewLeadStore() *LeadStore {
	return &LeadStore{byKey: make(map[string]leads.Lead)}
}

// InsertDeduped stores the lead once per (tenant, domain).
func (s *LeadStore) InsertDeduped(_ context.Context, lead leads.Lead, tenantID, _ string) (leads.InsertOutcome, error) {
	domain := leads.NormalizeDomain(lead.Domain)
	if domain == "" {
		return leads.InsertOutcome{Inserted: false, Reason: leads.ReasonInvalidDomain}, nil
	}
	key := tenantID + "/" + domain
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[key]; exists {
		return leads.InsertOutcome{Inserted: false, Reason: leads.ReasonDuplicate}, nil
	}
	s.seq++
	s.byKey[key] = lead
	return leads.InsertOutcome{Inserted: true, ID: fmt.Sprintf("%d", s.seq)}, nil
}

// Count reports the number of stored leads.
func (s *LeadStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// Leads returns a copy of all stored leads for a tenant.
func (s *LeadStore) Leads(tenantID string) []leads.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []leads.Lead
	prefix := tenantID + "/"
	for key, lead := range s.byKey {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, lead)
		}
	}
	return out
}

// Session is one stored job execution.
type Session struct {
	ID        string
	TenantID  string
	ListID    string
	Config    leads.JobConfig
	Queries   []leads.QuerySpec
	Counters  leads.Counters
	Status    leads.SessionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore implements leads.SessionStore in memory.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	seq      int
}

// NewSessionStore constructs an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

// Create stores a new running session.
func (s *SessionStore) Create(_ context.Context, tenantID, listID string, cfg leads.JobConfig, queries []leads.QuerySpec) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("session-%d", s.seq)
	now := time.Now().UTC()
	s.sessions[id] = Session{
		ID:        id,
		TenantID:  tenantID,
		ListID:    listID,
		Config:    cfg,
		Queries:   append([]leads.QuerySpec(nil), queries...),
		Status:    leads.SessionRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

// Update writes counters and status.
func (s *SessionStore) Update(_ context.Context, sessionID string, update leads.SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return errors.New("session not found")
	}
	session.Counters = update.Counters
	if update.Status != "" {
		session.Status = update.Status
	}
	session.UpdatedAt = time.Now().UTC()
	s.sessions[sessionID] = session
	return nil
}

// Get fetches a session by ID.
func (s *SessionStore) Get(sessionID string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	return session, ok
}

var (
	_ leads.LeadSink     = (*LeadStore)(nil)
	_ leads.SessionStore = (*SessionStore)(nil)
)
