package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/progress"
)

func TestFanoutDeliversToAllSubscribers(t *testing.T) {
	t.Parallel()

	f := NewFanout(4)
	ch1, cancel1 := f.Subscribe()
	ch2, cancel2 := f.Subscribe()
	defer cancel1()
	defer cancel2()

	f.Broadcast(progress.Event{Type: progress.TypeJobStarted, SessionID: "s1"})

	for _, ch := range []<-chan progress.Event{ch1, ch2} {
		select {
		case evt := <-ch:
			require.Equal(t, progress.TypeJobStarted, evt.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestFanoutNeverBlocksOnSlowSubscriber(t *testing.T) {
	t.Parallel()

	f := NewFanout(1)
	_, cancel := f.Subscribe()
	defer cancel()

	start := time.Now()
	for i := 0; i < 100; i++ {
		f.Broadcast(progress.Event{Type: progress.TypeLead})
	}
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestFanoutUnsubscribe(t *testing.T) {
	t.Parallel()

	f := NewFanout(4)
	ch, cancel := f.Subscribe()
	require.Equal(t, 1, f.Subscribers())

	cancel()
	cancel() // idempotent
	require.Zero(t, f.Subscribers())

	_, open := <-ch
	require.False(t, open, "channel is closed on unsubscribe")
}

func TestLoggerBroadcastDoesNotPanic(t *testing.T) {
	t.Parallel()

	l := NewLogger(zap.NewNop())
	l.Broadcast(progress.Event{Type: progress.TypeUpdate})
	l.Broadcast(progress.Event{Type: progress.TypeLog, Level: progress.LevelWarn, Message: "m"})
	l.Broadcast(progress.Event{Type: progress.TypeLog, Level: progress.LevelError, Message: "m"})
	l.Broadcast(progress.Event{Type: progress.TypeJobError, Error: "boom"})
	l.Broadcast(progress.Event{Type: progress.TypeJobDone})
}

func TestMulti(t *testing.T) {
	t.Parallel()

	f1 := NewFanout(4)
	f2 := NewFanout(4)
	ch1, cancel1 := f1.Subscribe()
	ch2, cancel2 := f2.Subscribe()
	defer cancel1()
	defer cancel2()

	m := Multi{f1, nil, f2}
	m.Broadcast(progress.Event{Type: progress.TypeLead})

	require.Len(t, ch1, 1)
	require.Len(t, ch2, 1)
}
