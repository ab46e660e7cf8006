package tickloop

// LoopState represents the observable state of the driver.
//
// State Machine:
//
//	StateIdle → StateRunning       [Run()]
//	StateRunning → StateStopping   [Stop() during Run]
//	StateRunning → StateIdle       [liveness check false]
//	StateStopping → StateIdle      [next liveness check]
//
// Calling Stop while idle records the request, but Run clears it on entry,
// so State still reports StateIdle. Tick never changes the state.
type LoopState uint8

const (
	// StateIdle indicates no Run call is in progress.
	StateIdle LoopState = iota
	// StateRunning indicates Run is in progress and Stop has not been called.
	StateRunning
	// StateStopping indicates Stop was called during Run, but the next
	// liveness check has not been reached yet.
	StateStopping
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}
