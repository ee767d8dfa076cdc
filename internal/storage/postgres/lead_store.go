// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// DB is the pgx surface the stores need; satisfied by *pgxpool.Pool and by
// pgxmock in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LeadStore implements leads.LeadSink on Postgres. Uniqueness is enforced by
// the (tenant_id, domain) constraint; each insert is its own transaction.
type LeadStore struct {
	db DB
}

// NewLeadStore wraps an existing connection pool.
func NewLeadStore(db DB) *LeadStore {
	return &LeadStore{db: db}
}

// Connect opens a pool and returns both stores sharing it.
func Connect(ctx context.Context, dsn string) (*LeadStore, *SessionStore, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create connection pool: %w", err)
	}
	return NewLeadStore(pool), NewSessionStore(pool), pool, nil
}

const insertLeadSQL = `
	INSERT INTO leads (
		tenant_id, list_id, company_name, website, domain, email, all_emails,
		phone, address, description, score, analysis_data,
		email_valid, email_validation_score, email_validation_reason, found_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (tenant_id, domain) DO NOTHING
	RETURNING id;
`

// InsertDeduped persists the lead once per (tenant, domain). A conflicting
// insert reports a duplicate without side effects; a missing or malformed
// domain is rejected before touching the database.
func (s *LeadStore) InsertDeduped(ctx context.Context, lead leads.Lead, tenantID, listID string) (leads.InsertOutcome, error) {
	domain := leads.NormalizeDomain(lead.Domain)
	if domain == "" {
		return leads.InsertOutcome{Inserted: false, Reason: leads.ReasonInvalidDomain}, nil
	}

	analysis, err := json.Marshal(lead.AnalysisData)
	if err != nil {
		return leads.InsertOutcome{}, fmt.Errorf("marshal analysis data: %w", err)
	}

	var id string
	err = s.db.QueryRow(ctx, insertLeadSQL,
		tenantID, listID, lead.CompanyName, lead.Website, domain, lead.Email,
		lead.AllEmails, lead.Phone, lead.Address, lead.Description, lead.Score,
		analysis, lead.EmailValid, lead.EmailValidationScore,
		lead.EmailValidationReason, lead.FoundAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leads.InsertOutcome{Inserted: false, Reason: leads.ReasonDuplicate}, nil
		}
		return leads.InsertOutcome{}, fmt.Errorf("insert lead: %w", err)
	}
	return leads.InsertOutcome{Inserted: true, ID: id}, nil
}

var _ leads.LeadSink = (*LeadStore)(nil)
