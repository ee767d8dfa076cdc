package limiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsParallelism(t *testing.T) {
	t.Parallel()

	l := New(2)
	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Run(context.Background(), func() {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			}))
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestLimiterTotalTimeApproximatesCeiling(t *testing.T) {
	t.Parallel()

	const d = 50 * time.Millisecond
	l := New(2)
	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Run(context.Background(), func() { time.Sleep(d) })
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)
	// ceil(5/2) = 3 rounds of d each.
	require.GreaterOrEqual(t, elapsed, 3*d-10*time.Millisecond)
	require.Less(t, elapsed, 5*d)
}

func TestLimiterFIFOOrder(t *testing.T) {
	t.Parallel()

	l := New(1)
	require.NoError(t, l.Acquire(context.Background()))

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 1; i <= 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, l.Acquire(context.Background()))
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			l.Release()
		}(i)
		// Let each waiter enqueue before the next arrives.
		require.Eventually(t, func() bool { return l.QueueDepth() == i }, time.Second, time.Millisecond)
	}

	l.Release()
	wg.Wait()
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestLimiterFailingTaskFreesSlot(t *testing.T) {
	t.Parallel()

	l := New(1)
	func() {
		defer func() { _ = recover() }()
		_ = l.Run(context.Background(), func() { panic("boom") })
	}()
	require.Zero(t, l.InFlight())

	done := make(chan struct{})
	go func() {
		_ = l.Run(context.Background(), func() {})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("slot was not released after panic")
	}
}

func TestLimiterAcquireCanceled(t *testing.T) {
	t.Parallel()

	l := New(1)
	require.NoError(t, l.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Acquire(ctx) }()
	require.Eventually(t, func() bool { return l.QueueDepth() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.Error(t, <-errCh)
	require.Zero(t, l.QueueDepth())

	// The held slot is still usable and releasable.
	l.Release()
	require.Zero(t, l.InFlight())
}
