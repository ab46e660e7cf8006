package selectloop

import (
	"reflect"
	"slices"
	"time"

	"github.com/joeycumines/go-tickloop"
	"github.com/joeycumines/go-tickloop/internal/timerqueue"
	"github.com/joeycumines/logiface"
)

// Backend implements [tickloop.Backend] using Go's select, where the I/O
// sources are channels, see [Watch].
//
// Like the loop, it must only be used from the loop goroutine. Values may
// be sent on watched channels from any goroutine.
type Backend struct {
	timers   *timerqueue.Queue
	logger   *logiface.Logger[logiface.Event]
	watchers []*Watcher

	idleTimeout time.Duration
}

var (
	_ tickloop.Backend       = (*Backend)(nil)
	_ tickloop.TimerCanceler = (*Backend)(nil)
)

// New creates a backend with no timers or watchers.
func New(opts ...Option) *Backend {
	options := resolveOptions(opts)
	return &Backend{
		timers:      timerqueue.New(options.clock),
		logger:      options.logger,
		idleTimeout: options.idleTimeout,
	}
}

// ScheduleTimer implements [tickloop.Backend].
func (b *Backend) ScheduleTimer(t *tickloop.Timer) {
	b.timers.Schedule(t)
}

// CancelTimer implements [tickloop.TimerCanceler].
func (b *Backend) CancelTimer(t *tickloop.Timer) {
	b.timers.Cancel(t)
}

// IsEmpty implements [tickloop.Backend].
func (b *Backend) IsEmpty() bool {
	return b.timers.Len() == 0 && len(b.watchers) == 0
}

// Timers returns the number of active timers.
func (b *Backend) Timers() int {
	return b.timers.Len()
}

// Watchers returns the number of active watchers.
func (b *Backend) Watchers() int {
	return len(b.watchers)
}

// FlushEvents implements [tickloop.Backend].
//
// Each watcher that is ready is delivered at most once per call, after
// which any due timers fire. When blocking, at most one wait is performed,
// for the nearest timer deadline, the first ready watcher, or the idle
// timeout, see [WithIdleTimeout].
func (b *Backend) FlushEvents(blocking bool) error {
	delivered := b.flushWatchers(blocking)
	fired := b.timers.FireDue()

	b.logger.Trace().
		Bool(`blocking`, blocking).
		Int(`delivered`, delivered).
		Int(`fired`, fired).
		Log(`flushed events`)

	return nil
}

func (b *Backend) flushWatchers(blocking bool) (delivered int) {
	// watchers added by callbacks wait for the next pass
	pending := slices.Clone(b.watchers)
	timeout, wait := b.waitTimeout(blocking, len(pending) != 0)

	for {
		pending = slices.DeleteFunc(pending, func(w *Watcher) bool { return !w.active })
		if len(pending) == 0 && !wait {
			return delivered
		}

		cases := make([]reflect.SelectCase, len(pending), len(pending)+1)
		for i, w := range pending {
			cases[i] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: w.ch}
		}

		var timer *time.Timer
		switch {
		case !wait:
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectDefault})
		case timeout >= 0:
			timer = time.NewTimer(timeout)
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(timer.C)})
		}

		chosen, value, ok := reflect.Select(cases)
		if timer != nil {
			timer.Stop()
		}

		// only the first select may block
		wait = false

		if chosen >= len(pending) {
			// default, or timed out
			return delivered
		}

		w := pending[chosen]
		pending = slices.Delete(pending, chosen, chosen+1)
		delivered++
		b.deliver(w, value, ok)
	}
}

// waitTimeout returns whether the next select should block, and for how
// long, where negative means until a watcher is ready.
func (b *Backend) waitTimeout(blocking, watching bool) (time.Duration, bool) {
	if !blocking {
		return 0, false
	}
	if d, ok := b.timers.Timeout(); ok {
		return d, d > 0
	}
	if !watching || b.idleTimeout == 0 {
		return 0, false
	}
	return b.idleTimeout, true
}

func (b *Backend) deliver(w *Watcher, value reflect.Value, ok bool) {
	if !ok {
		b.logger.Debug().
			Str(`type`, w.ch.Type().String()).
			Log(`watched channel closed`)
		w.Cancel()
	}
	w.recv(value, ok)
}

// Watcher is a registration created by [Watch].
type Watcher struct {
	b      *Backend
	recv   func(value reflect.Value, ok bool)
	ch     reflect.Value
	active bool
}

// Watch registers cb to be called, during FlushEvents, with each value
// received from ch. Once ch is closed, cb is called a final time with
// ok=false, and the watcher is removed.
//
// Watchers keep the loop running until cancelled, or the channel is closed.
func Watch[T any](b *Backend, ch <-chan T, cb func(value T, ok bool)) *Watcher {
	w := &Watcher{
		b:      b,
		ch:     reflect.ValueOf(ch),
		active: true,
		recv: func(value reflect.Value, ok bool) {
			var v T
			if ok {
				v, _ = value.Interface().(T)
			}
			if cb != nil {
				cb(v, ok)
			}
		},
	}
	b.watchers = append(b.watchers, w)
	return w
}

// Active returns true until the watcher is cancelled, or its channel closed.
func (w *Watcher) Active() bool {
	return w != nil && w.active
}

// Cancel removes the watcher. Values not yet received stay in the channel.
func (w *Watcher) Cancel() {
	if !w.Active() {
		return
	}
	w.active = false
	if i := slices.Index(w.b.watchers, w); i >= 0 {
		w.b.watchers = slices.Delete(w.b.watchers, i, i+1)
	}
}
