package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// SessionStore implements leads.SessionStore on Postgres.
type SessionStore struct {
	db  DB
	ids func() string
}

// NewSessionStore wraps an existing connection pool.
func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db, ids: uuid.NewString}
}

const (
	createSessionSQL = `
		INSERT INTO scrape_sessions (id, tenant_id, list_id, config, queries, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	updateSessionSQL = `
		UPDATE scrape_sessions
		SET leads_found = $1, duplicates_skipped = $2, errors_count = $3,
			status = $4, updated_at = $5
		WHERE id = $6;
	`
)

// Create persists one session row and returns its ID.
func (s *SessionStore) Create(ctx context.Context, tenantID, listID string, cfg leads.JobConfig, queries []leads.QuerySpec) (string, error) {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	queriesJSON, err := json.Marshal(queries)
	if err != nil {
		return "", fmt.Errorf("marshal queries: %w", err)
	}

	sessionID := s.ids()
	_, err = s.db.Exec(ctx, createSessionSQL,
		sessionID, tenantID, listID, configJSON, queriesJSON,
		leads.SessionRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return sessionID, nil
}

// Update writes counters and status for the session.
func (s *SessionStore) Update(ctx context.Context, sessionID string, update leads.SessionUpdate) error {
	_, err := s.db.Exec(ctx, updateSessionSQL,
		update.Counters.LeadsFound, update.Counters.DuplicatesSkipped,
		update.Counters.ErrorsCount, update.Status, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

var _ leads.SessionStore = (*SessionStore)(nil)
