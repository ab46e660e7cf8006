package selectloop

import (
	"testing"
	"time"

	"github.com/joeycumines/go-tickloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestLoop(t *testing.T, opts ...Option) (*tickloop.Loop, *Backend) {
	t.Helper()
	backend := New(opts...)
	loop, err := tickloop.New(backend)
	require.NoError(t, err)
	return loop, backend
}

func TestBackend_Empty(t *testing.T) {
	loop, backend := newTestLoop(t)
	assert.True(t, backend.IsEmpty())
	start := time.Now()
	require.NoError(t, loop.Run())
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, uint64(0), loop.Metrics().Ticks)
}

func TestBackend_RunWaitsForTimer(t *testing.T) {
	loop, backend := newTestLoop(t)

	var fired time.Duration
	start := time.Now()
	loop.AddTimer(20*time.Millisecond, func(*tickloop.Loop) {
		fired = time.Since(start)
	})
	assert.False(t, backend.IsEmpty())
	assert.Equal(t, 1, backend.Timers())

	require.NoError(t, loop.Run())
	assert.GreaterOrEqual(t, fired, 20*time.Millisecond)
	assert.True(t, backend.IsEmpty())
}

func TestBackend_PeriodicTimerRun(t *testing.T) {
	loop, _ := newTestLoop(t)

	var calls int
	loop.AddPeriodicTimer(time.Millisecond, func(l *tickloop.Loop) {
		calls++
		if calls == 3 {
			l.Stop()
		}
	})

	require.NoError(t, loop.Run())
	assert.Equal(t, 3, calls)
}

func TestWatch_OneValuePerPass(t *testing.T) {
	loop, backend := newTestLoop(t)

	ch := make(chan int, 3)
	ch <- 1
	ch <- 2
	ch <- 3

	var got []int
	w := Watch(backend, ch, func(v int, ok bool) {
		require.True(t, ok)
		got = append(got, v)
	})
	assert.True(t, w.Active())
	assert.Equal(t, 1, backend.Watchers())

	for i := 1; i <= 3; i++ {
		require.NoError(t, loop.Tick())
		assert.Len(t, got, i)
	}
	assert.Equal(t, []int{1, 2, 3}, got)

	// nothing ready, must not block
	require.NoError(t, loop.Tick())
	assert.Len(t, got, 3)
	assert.True(t, w.Active())
}

func TestWatch_ClosedChannel(t *testing.T) {
	loop, backend := newTestLoop(t)

	ch := make(chan string, 1)
	ch <- "a"
	close(ch)

	type recv struct {
		v  string
		ok bool
	}
	var got []recv
	w := Watch(backend, ch, func(v string, ok bool) {
		got = append(got, recv{v, ok})
	})

	require.NoError(t, loop.Run())
	assert.Equal(t, []recv{{"a", true}, {"", false}}, got)
	assert.False(t, w.Active())
	assert.True(t, backend.IsEmpty())
}

func TestWatch_RunUntilClosed(t *testing.T) {
	loop, backend := newTestLoop(t)

	ch := make(chan int)
	go func() {
		for i := range 5 {
			ch <- i
		}
		close(ch)
	}()

	var got []int
	Watch(backend, ch, func(v int, ok bool) {
		if ok {
			got = append(got, v)
		}
	})

	require.NoError(t, loop.Run())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestWatch_CancelDuringPass(t *testing.T) {
	loop, backend := newTestLoop(t)

	a := make(chan int, 1)
	b := make(chan int, 1)
	a <- 1
	b <- 2

	var wa, wb *Watcher
	var delivered int
	wa = Watch(backend, a, func(int, bool) {
		delivered++
		wb.Cancel()
	})
	wb = Watch(backend, b, func(int, bool) {
		delivered++
		wa.Cancel()
	})

	require.NoError(t, loop.Tick())
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, len(a)+len(b), `the cancelled watcher must not receive`)
	assert.Equal(t, 1, backend.Watchers())
	assert.False(t, backend.IsEmpty())
	assert.NotEqual(t, wa.Active(), wb.Active())

	// cancelling again is harmless
	wa.Cancel()
	wb.Cancel()
	assert.Equal(t, 0, backend.Watchers())
	assert.True(t, backend.IsEmpty())
}

func TestWatch_AddedDuringPassWaitsForNextPass(t *testing.T) {
	loop, backend := newTestLoop(t)

	a := make(chan int, 1)
	b := make(chan int, 1)
	a <- 1
	b <- 2

	var got []int
	Watch(backend, a, func(v int, ok bool) {
		got = append(got, v)
		Watch(backend, b, func(v int, ok bool) {
			got = append(got, v)
		})
	})

	require.NoError(t, loop.Tick())
	assert.Equal(t, []int{1}, got)
	require.NoError(t, loop.Tick())
	assert.Equal(t, []int{1, 2}, got)
}

func TestWatch_StopFromCallback(t *testing.T) {
	loop, backend := newTestLoop(t)

	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	w := Watch(backend, ch, func(_ struct{}, _ bool) {
		loop.Stop()
	})

	require.NoError(t, loop.Run())
	assert.True(t, w.Active())
	assert.False(t, backend.IsEmpty())
	assert.Equal(t, tickloop.StateIdle, loop.State())
}

func TestWatch_NilCallback(t *testing.T) {
	loop, backend := newTestLoop(t)
	ch := make(chan int, 1)
	ch <- 1
	Watch(backend, ch, nil)
	require.NoError(t, loop.Tick())
	assert.Empty(t, ch)
}

func TestBackend_IdleTimeout(t *testing.T) {
	_, backend := newTestLoop(t, WithIdleTimeout(10*time.Millisecond))

	var delivered bool
	Watch(backend, make(chan int), func(int, bool) { delivered = true })

	start := time.Now()
	require.NoError(t, backend.FlushEvents(true))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.False(t, delivered)
}

func TestBackend_ZeroIdleTimeoutNeverBlocks(t *testing.T) {
	_, backend := newTestLoop(t, WithIdleTimeout(0))
	Watch(backend, make(chan int), nil)
	start := time.Now()
	require.NoError(t, backend.FlushEvents(true))
	assert.Less(t, time.Since(start), time.Second)
}

func TestBackend_DueTimerSkipsWait(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	loop, backend := newTestLoop(t, WithClock(clock))

	Watch(backend, make(chan int), nil)

	var fired bool
	loop.AddTimer(time.Hour, func(*tickloop.Loop) { fired = true })
	clock.now = clock.now.Add(time.Hour)

	start := time.Now()
	require.NoError(t, backend.FlushEvents(true))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, fired)
}

func TestBackend_CancelTimer(t *testing.T) {
	loop, backend := newTestLoop(t)

	timer := loop.AddTimer(time.Hour, func(*tickloop.Loop) { t.Error(`should not fire`) })
	assert.Equal(t, 1, backend.Timers())
	loop.CancelTimer(timer)
	assert.Equal(t, 0, backend.Timers())
	assert.False(t, loop.IsTimerActive(timer))
	require.NoError(t, loop.Run())
}

func TestBackend_WatchersBeforeTimers(t *testing.T) {
	loop, backend := newTestLoop(t)

	ch := make(chan int, 1)
	ch <- 1

	var order []string
	loop.AddTimer(0, func(*tickloop.Loop) { order = append(order, `timer`) })
	Watch(backend, ch, func(int, bool) { order = append(order, `watcher`) })

	require.NoError(t, loop.Tick())
	assert.Equal(t, []string{`watcher`, `timer`}, order)
}

func TestResolveOptions(t *testing.T) {
	cfg := resolveOptions([]Option{nil, WithClock(nil)})
	assert.NotNil(t, cfg.clock)
	assert.Equal(t, time.Duration(-1), cfg.idleTimeout)
	assert.Nil(t, cfg.logger)
}
