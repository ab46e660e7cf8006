package tickloop

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Loop is the driver of a single-threaded event loop.
//
// It owns the next-tick queue and the stop flag, and delegates timers and
// I/O to its [Backend]. The zero value is not usable, see [New].
type Loop struct {
	// Prevent copying
	_ [0]func()

	backend Backend
	logger  *logiface.Logger[logiface.Event]

	// starvation is nil unless a threshold was configured
	starvation *catrate.Limiter

	nextTicks nextTickQueue

	metrics Metrics

	id uint64

	starvationThreshold int

	// stopped is only read by the liveness check, at the top of Run
	stopped bool

	// running guards against re-entrant Run calls
	running bool
}

var loopIDCounter atomic.Uint64

// New creates a loop driving the provided backend.
func New(backend Backend, opts ...LoopOption) (*Loop, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}

	options, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	loop := &Loop{
		id:                  loopIDCounter.Add(1),
		backend:             backend,
		logger:              options.logger,
		nextTicks:           newNextTickQueue(),
		starvationThreshold: options.starvationThreshold,
	}

	if options.starvationThreshold > 0 {
		loop.starvation, err = newStarvationLimiter(options.starvationRates)
		if err != nil {
			return nil, err
		}
	}

	return loop, nil
}

func newStarvationLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			limiter, err = nil, fmt.Errorf("%w: %v", ErrInvalidOption, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// ID returns a process-unique identifier, used in log output.
func (l *Loop) ID() uint64 {
	return l.id
}

// Backend returns the backend the loop was created with.
func (l *Loop) Backend() Backend {
	return l.backend
}

// State returns the current state of the run/stop state machine.
func (l *Loop) State() LoopState {
	switch {
	case !l.running:
		return StateIdle
	case l.stopped:
		return StateStopping
	default:
		return StateRunning
	}
}

// Metrics returns a copy of the loop's counters.
func (l *Loop) Metrics() Metrics {
	return l.metrics
}

// AddTimer schedules cb to be called once, after interval has elapsed.
// Negative intervals are treated as zero, and a zero interval fires on the
// next backend flush.
func (l *Loop) AddTimer(interval time.Duration, cb TimerCallback) *Timer {
	return l.addTimer(interval, cb, false)
}

// AddPeriodicTimer schedules cb to be called every interval, until the
// returned timer is cancelled.
func (l *Loop) AddPeriodicTimer(interval time.Duration, cb TimerCallback) *Timer {
	return l.addTimer(interval, cb, true)
}

func (l *Loop) addTimer(interval time.Duration, cb TimerCallback, periodic bool) *Timer {
	if interval < 0 {
		interval = 0
	}
	t := &Timer{
		loop:     l,
		callback: cb,
		interval: interval,
		periodic: periodic,
	}
	l.metrics.TimersScheduled++
	l.logger.Trace().
		Uint64(`loop`, l.id).
		Dur(`interval`, interval).
		Bool(`periodic`, periodic).
		Log(`timer scheduled`)
	l.backend.ScheduleTimer(t)
	return t
}

// CancelTimer is equivalent to [Timer.Cancel]. A nil timer is ignored.
func (l *Loop) CancelTimer(t *Timer) {
	if t != nil {
		t.Cancel()
	}
}

// IsTimerActive returns true if t may still fire.
func (l *Loop) IsTimerActive(t *Timer) bool {
	return t.Active()
}

// NextTick appends cb to the next-tick queue. It will run before the
// backend is next flushed, after every callback enqueued before it.
// A nil callback is ignored.
func (l *Loop) NextTick(cb Callback) {
	if cb == nil {
		return
	}
	l.nextTicks.enqueue(cb)
}

// Tick performs exactly one non-blocking tick, regardless of whether Run
// is in progress, or Stop has been called.
func (l *Loop) Tick() error {
	return l.tickLogic(false)
}

// Run performs blocking ticks until the loop is no longer live, see
// [Loop.Stop]. It returns nil once there is nothing left to do, or the first
// error returned by the backend, as a [*FlushError].
//
// Run must not be called from within a callback of the same loop.
func (l *Loop) Run() error {
	if l.running {
		return ErrReentrantRun
	}
	l.running = true
	defer func() { l.running = false }()

	l.stopped = false

	l.logger.Debug().
		Uint64(`loop`, l.id).
		Int(`queued`, l.nextTicks.len()).
		Log(`run started`)

	for l.isRunning() {
		if err := l.tickLogic(true); err != nil {
			l.logger.Debug().
				Uint64(`loop`, l.id).
				Err(err).
				Log(`run failed`)
			return err
		}
	}

	l.logger.Debug().
		Uint64(`loop`, l.id).
		Bool(`stopped`, l.stopped).
		Uint64(`ticks`, l.metrics.Ticks).
		Log(`run finished`)

	return nil
}

// Stop requests that an active Run returns, before it starts another tick.
// It has no effect on a tick already in progress, and Run clears the
// request when it starts.
func (l *Loop) Stop() {
	l.stopped = true
}

// isRunning is the liveness predicate, evaluated before each tick of Run.
func (l *Loop) isRunning() bool {
	if l.stopped {
		return false
	}
	if !l.nextTicks.empty() {
		return true
	}
	return !l.backend.IsEmpty()
}

// tickLogic is a single iteration of the loop.
func (l *Loop) tickLogic(blocking bool) error {
	l.metrics.Ticks++

	l.logger.Trace().
		Uint64(`loop`, l.id).
		Uint64(`tick`, l.metrics.Ticks).
		Bool(`blocking`, blocking).
		Log(`tick`)

	l.nextTicks.drain(l, l.visitNextTick)

	// the queue is always empty here, but the flush must never block while
	// callbacks are pending
	blocking = blocking && l.nextTicks.empty()
	if blocking {
		l.metrics.BlockingFlushes++
	}

	if err := l.backend.FlushEvents(blocking); err != nil {
		return &FlushError{Cause: err, Blocking: blocking}
	}

	return nil
}

// visitNextTick is called before each callback of a drain, n being the
// number of callbacks started by the drain so far.
func (l *Loop) visitNextTick(n int) {
	l.metrics.NextTicksRun++
	if n > l.metrics.MaxDrain {
		l.metrics.MaxDrain = n
	}
	if n == l.starvationThreshold && l.starvation != nil {
		l.warnStarvation(n)
	}
}

func (l *Loop) warnStarvation(n int) {
	l.metrics.StarvationWarnings++
	if _, ok := l.starvation.Allow(l.id); !ok {
		return
	}
	l.logger.Warning().
		Uint64(`loop`, l.id).
		Int(`drained`, n).
		Int(`queued`, l.nextTicks.len()).
		Log(`next tick queue is starving timers and I/O`)
}
