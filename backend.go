package tickloop

// Backend owns timer storage and I/O watching for a [Loop].
//
// The loop calls the backend, never the reverse, with the exception of
// backends invoking [Timer.Fire] (and their own I/O callbacks) during
// FlushEvents.
//
// Implementations include selectloop.Backend and epollloop.Backend.
type Backend interface {
	// ScheduleTimer registers a timer for future firing. The backend must
	// call [Timer.Fire] once the interval has elapsed, re-register periodic
	// timers after they fire (while they remain active), and must never
	// fire a timer that is not active.
	ScheduleTimer(t *Timer)

	// FlushEvents performs one pass of timer and I/O readiness checking,
	// invoking the callbacks of anything that is due or ready.
	//
	// If blocking is true, the backend may wait for the nearest timer
	// deadline or I/O readiness, and must return immediately if it has
	// nothing pending. If blocking is false, it must check once and return
	// without waiting.
	//
	// Panics raised by callbacks must be allowed to propagate.
	FlushEvents(blocking bool) error

	// IsEmpty returns true if the backend holds no active timers and no
	// active I/O watchers.
	IsEmpty() bool
}

// TimerCanceler may be implemented by a [Backend] to be notified, by
// [Timer.Cancel], that a timer will never fire again.
// Backends that don't implement it must discard inactive timers themselves,
// and must not count them towards IsEmpty.
type TimerCanceler interface {
	CancelTimer(t *Timer)
}
