package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

func TestLeadStoreDedup(t *testing.T) {
	t.Parallel()

	store := NewLeadStore()
	ctx := context.Background()
	lead := leads.Lead{Domain: "acme.nl", Score: 80}

	outcome, err := store.InsertDeduped(ctx, lead, "t1", "l1")
	require.NoError(t, err)
	require.True(t, outcome.Inserted)

	outcome, err = store.InsertDeduped(ctx, lead, "t1", "l1")
	require.NoError(t, err)
	require.False(t, outcome.Inserted)
	require.Equal(t, leads.ReasonDuplicate, outcome.Reason)
	require.Equal(t, 1, store.Count(), "duplicate insert has no side effects")

	// Same domain under another tenant is a separate lead.
	outcome, err = store.InsertDeduped(ctx, lead, "t2", "l1")
	require.NoError(t, err)
	require.True(t, outcome.Inserted)
	require.Len(t, store.Leads("t1"), 1)
	require.Len(t, store.Leads("t2"), 1)
}

func TestLeadStoreInvalidDomain(t *testing.T) {
	t.Parallel()

	store := NewLeadStore()
	outcome, err := store.InsertDeduped(context.Background(), leads.Lead{}, "t1", "l1")
	require.NoError(t, err)
	require.Equal(t, leads.ReasonInvalidDomain, outcome.Reason)
	require.Zero(t, store.Count())
}

func TestSessionStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewSessionStore()
	ctx := context.Background()

	id, err := store.Create(ctx, "t1", "l1", leads.JobConfig{}.Normalized(), []leads.QuerySpec{{Query: "q"}})
	require.NoError(t, err)

	session, ok := store.Get(id)
	require.True(t, ok)
	require.Equal(t, leads.SessionRunning, session.Status)

	err = store.Update(ctx, id, leads.SessionUpdate{
		Counters: leads.Counters{LeadsFound: 4},
		Status:   leads.SessionDone,
	})
	require.NoError(t, err)

	session, _ = store.Get(id)
	require.Equal(t, 4, session.Counters.LeadsFound)
	require.Equal(t, leads.SessionDone, session.Status)

	require.Error(t, store.Update(ctx, "ghost", leads.SessionUpdate{}))
}
