package tickloop

// Metrics are counters maintained by a [Loop], see [Loop.Metrics].
//
// As with the loop itself, they are not safe for concurrent use.
type Metrics struct {
	// Ticks counts driver ticks, from both Tick and Run.
	Ticks uint64

	// BlockingFlushes counts FlushEvents calls made with blocking=true.
	BlockingFlushes uint64

	// NextTicksRun counts next-tick callbacks that were started.
	NextTicksRun uint64

	// TimersScheduled counts timers passed to Backend.ScheduleTimer.
	TimersScheduled uint64

	// TimersFired counts callbacks started via Timer.Fire.
	TimersFired uint64

	// MaxDrain is the largest number of callbacks run by a single drain.
	MaxDrain int

	// StarvationWarnings counts drains that reached the starvation threshold.
	StarvationWarnings uint64
}
