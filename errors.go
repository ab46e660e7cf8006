package tickloop

import (
	"errors"
)

// Standard errors.
var (
	// ErrNilBackend is returned by New when no backend is provided.
	ErrNilBackend = errors.New("tickloop: nil backend")

	// ErrReentrantRun is returned when Run is called from within a callback
	// of the same, already running, loop.
	ErrReentrantRun = errors.New("tickloop: cannot call Run from within the loop")

	// ErrUnsupportedStream is returned by StreamKeyOf for values that do not
	// identify an open I/O resource.
	ErrUnsupportedStream = errors.New("tickloop: unsupported stream")

	// ErrInvalidOption is returned by New for an option with an invalid value.
	ErrInvalidOption = errors.New("tickloop: invalid option")
)

// FlushError wraps an error returned by [Backend.FlushEvents].
// It is returned by [Loop.Tick] and [Loop.Run], without retry.
type FlushError struct {
	Cause    error
	Blocking bool
}

// Error implements the error interface.
func (e *FlushError) Error() string {
	if e.Cause == nil {
		return "tickloop: flush events"
	}
	return "tickloop: flush events: " + e.Cause.Error()
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *FlushError) Unwrap() error {
	return e.Cause
}
