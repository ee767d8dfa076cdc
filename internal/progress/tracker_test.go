package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Broadcast(evt Event) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *captureSink) byType(t Type) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func TestTrackerEmitsUpdatePerMutation(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	tr := NewTracker("s1", sink)
	tr.Start(4)
	tr.QueryStarted("logistics", "NL")
	tr.DomainsFound(10)
	tr.DomainProcessed("acme.nl")
	tr.LeadFound()
	tr.ErrorOccurred()
	tr.Finish()

	updates := sink.byType(TypeUpdate)
	require.Len(t, updates, 7)
	last := updates[len(updates)-1].Snapshot
	require.Equal(t, StatusDone, last.Status)
	require.Equal(t, 10, last.TotalDomains)
	require.Equal(t, 1, last.ProcessedDomains)
	require.Equal(t, 1, last.LeadsFound)
	require.Equal(t, 1, last.Errors)
	require.Equal(t, "s1", updates[0].SessionID)
}

func TestTrackerProgressPctBounds(t *testing.T) {
	t.Parallel()

	tr := NewTracker("s1", nil)
	require.Zero(t, tr.Snapshot().ProgressPct, "no domains yet")

	tr.Start(1)
	tr.DomainsFound(4)
	tr.DomainProcessed("a.nl")
	snap := tr.Snapshot()
	require.Equal(t, 25, snap.ProgressPct)
	require.LessOrEqual(t, snap.ProcessedDomains, snap.TotalDomains)

	tr.DomainProcessed("b.nl")
	tr.DomainProcessed("c.nl")
	tr.DomainProcessed("d.nl")
	snap = tr.Snapshot()
	require.Equal(t, 100, snap.ProgressPct)
}

func TestTrackerETA(t *testing.T) {
	t.Parallel()

	base := time.Unix(1000, 0)
	now := base
	tr := NewTracker("s1", nil).WithClock(func() time.Time { return now })
	tr.Start(1)
	tr.DomainsFound(10)

	require.Nil(t, tr.Snapshot().ETASeconds, "no progress yet")

	now = base.Add(10 * time.Second)
	for i := 0; i < 5; i++ {
		tr.DomainProcessed("x.nl")
	}
	snap := tr.Snapshot()
	require.NotNil(t, snap.ETASeconds)
	// 5 domains in 10 s => 0.5/s; 5 remaining => 10 s.
	require.Equal(t, int64(10), *snap.ETASeconds)
	require.Equal(t, int64(10), snap.ElapsedSeconds)
}

func TestTrackerLeadsPerMinuteWindow(t *testing.T) {
	t.Parallel()

	base := time.Unix(2000, 0)
	now := base
	tr := NewTracker("s1", nil).WithClock(func() time.Time { return now })
	tr.Start(1)

	tr.LeadFound()
	tr.LeadFound()
	require.Equal(t, 2, tr.Snapshot().LeadsPerMinute)

	now = base.Add(61 * time.Second)
	tr.LeadFound()
	require.Equal(t, 1, tr.Snapshot().LeadsPerMinute, "old timestamps fall out of the window")
}

func TestTrackerLogRingBounded(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	tr := NewTracker("s1", sink)
	for i := 0; i < maxLogEntries+25; i++ {
		tr.Log(LevelInfo, "line")
	}
	snap := tr.Snapshot()
	require.Len(t, snap.Log, maxLogEntries)
	require.Len(t, sink.byType(TypeLog), maxLogEntries+25)
}

func TestTrackerSnapshotIsDefensiveCopy(t *testing.T) {
	t.Parallel()

	tr := NewTracker("s1", nil)
	tr.Log(LevelWarn, "original")
	snap := tr.Snapshot()
	snap.Log[0].Message = "mutated"
	require.Equal(t, "original", tr.Snapshot().Log[0].Message)
}
