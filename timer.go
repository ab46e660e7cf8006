// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"math"
	"time"
)

// TimerCallback is invoked when a [Timer] fires, with the owning loop.
type TimerCallback func(l *Loop)

// TimerState is the liveness state of a [Timer].
type TimerState uint8

const (
	// TimerScheduled indicates the timer may still fire.
	TimerScheduled TimerState = iota
	// TimerCancelled indicates the timer was cancelled, and will never fire again.
	TimerCancelled
	// TimerRetired indicates a one-shot timer that has fired.
	TimerRetired
)

// String returns a human-readable representation of the state.
func (s TimerState) String() string {
	switch s {
	case TimerScheduled:
		return "Scheduled"
	case TimerCancelled:
		return "Cancelled"
	case TimerRetired:
		return "Retired"
	default:
		return "Unknown"
	}
}

// Timer is the handle of one scheduled unit of work, created by
// [Loop.AddTimer] or [Loop.AddPeriodicTimer], and stored by a [Backend].
//
// Backends must invoke timers exclusively via [Timer.Fire], which guarantees
// cancelled timers never run.
type Timer struct {
	// loop is a plain reference, used only to pass the loop to the callback.
	loop     *Loop
	callback TimerCallback
	interval time.Duration
	state    TimerState
	periodic bool
}

// Interval returns the (non-negative) interval of the timer.
func (t *Timer) Interval() time.Duration {
	return t.interval
}

// Periodic returns true if the timer re-arms after each firing.
func (t *Timer) Periodic() bool {
	return t.periodic
}

// Loop returns the loop the timer was created by.
func (t *Timer) Loop() *Loop {
	return t.loop
}

// State returns the current liveness state.
func (t *Timer) State() TimerState {
	return t.state
}

// Active returns true if the timer may still fire.
func (t *Timer) Active() bool {
	return t != nil && t.state == TimerScheduled
}

// Cancel prevents any further invocation of the timer's callback, including
// an invocation the backend has already selected for the current flush.
// If the backend implements [TimerCanceler], it is notified, so it may
// release the timer. Cancel is a no-op for timers that are not active.
func (t *Timer) Cancel() {
	if !t.Active() {
		return
	}
	t.state = TimerCancelled
	if t.loop != nil {
		if c, ok := t.loop.backend.(TimerCanceler); ok {
			c.CancelTimer(t)
		}
	}
}

// Fire invokes the callback, if the timer is active, returning true if it
// was. One-shot timers are retired before the callback runs, so a one-shot
// timer fires at most once, even if the callback panics.
//
// Fire is intended for use by [Backend] implementations.
func (t *Timer) Fire() bool {
	if !t.Active() {
		return false
	}
	if !t.periodic {
		t.state = TimerRetired
	}
	if t.loop != nil {
		t.loop.metrics.TimersFired++
	}
	if t.callback != nil {
		t.callback(t.loop)
	}
	return true
}

// Seconds converts a real-valued number of seconds to a [time.Duration],
// rounding to the nearest nanosecond. Negative and NaN values yield zero,
// and values too large to represent saturate.
func Seconds(s float64) time.Duration {
	switch {
	case math.IsNaN(s) || s <= 0:
		return 0
	case s >= float64(math.MaxInt64)/float64(time.Second):
		return time.Duration(math.MaxInt64)
	default:
		return time.Duration(math.Round(s * float64(time.Second)))
	}
}
