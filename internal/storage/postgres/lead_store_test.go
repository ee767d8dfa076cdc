package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

func sampleLead() leads.Lead {
	return leads.Lead{
		CompanyName:  "Acme BV",
		Website:      "https://www.acme.nl/",
		Domain:       "acme.nl",
		Email:        "info@acme.nl",
		AllEmails:    []string{"info@acme.nl"},
		Score:        72,
		AnalysisData: map[string]any{"score": 72},
		FoundAt:      time.Unix(1000, 0),
	}
}

func TestInsertDedupedInserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("lead-1"))

	store := NewLeadStore(mock)
	outcome, err := store.InsertDeduped(context.Background(), sampleLead(), "tenant-1", "list-1")
	require.NoError(t, err)
	require.True(t, outcome.Inserted)
	require.Equal(t, "lead-1", outcome.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDedupedDuplicate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	store := NewLeadStore(mock)
	outcome, err := store.InsertDeduped(context.Background(), sampleLead(), "tenant-1", "list-1")
	require.NoError(t, err)
	require.False(t, outcome.Inserted)
	require.Equal(t, leads.ReasonDuplicate, outcome.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertDedupedInvalidDomain(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewLeadStore(mock)
	bad := sampleLead()
	bad.Domain = ""
	outcome, err := store.InsertDeduped(context.Background(), bad, "tenant-1", "list-1")
	require.NoError(t, err)
	require.False(t, outcome.Inserted)
	require.Equal(t, leads.ReasonInvalidDomain, outcome.Reason)
	require.NoError(t, mock.ExpectationsWereMet(), "no query is issued for an invalid domain")
}

func TestInsertDedupedDatabaseError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection lost"))

	store := NewLeadStore(mock)
	_, err = store.InsertDeduped(context.Background(), sampleLead(), "tenant-1", "list-1")
	require.Error(t, err)
}

func TestSessionCreateAndUpdate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewSessionStore(mock)
	store.ids = func() string { return "session-1" }

	mock.ExpectExec("INSERT INTO scrape_sessions").
		WithArgs("session-1", "tenant-1", "list-1", pgxmock.AnyArg(), pgxmock.AnyArg(),
			leads.SessionRunning, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sessionID, err := store.Create(context.Background(), "tenant-1", "list-1",
		leads.JobConfig{}.Normalized(), []leads.QuerySpec{{Query: "q"}})
	require.NoError(t, err)
	require.Equal(t, "session-1", sessionID)

	mock.ExpectExec("UPDATE scrape_sessions").
		WithArgs(3, 1, 0, leads.SessionDone, pgxmock.AnyArg(), "session-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.Update(context.Background(), "session-1", leads.SessionUpdate{
		Counters: leads.Counters{LeadsFound: 3, DuplicatesSkipped: 1},
		Status:   leads.SessionDone,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
