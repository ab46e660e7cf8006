// Package tickloop provides the backend-agnostic driver of a single-threaded,
// cooperative event loop: a next-tick queue, a timer registration front end,
// and the run/tick/stop state machine shared by every I/O backend.
//
// # Architecture
//
// A [Loop] owns the next-tick queue and the stop flag, and delegates timer
// storage and I/O readiness to a [Backend]. Concrete backends live in their
// own packages:
//   - selectloop: timers and Go channel watchers, multiplexed with select
//   - epollloop (Linux): timers and file descriptor watchers, over epoll
//
// Any type implementing [Backend] may be used, e.g. a test double.
//
// # Execution Model
//
// Each driver tick:
//  1. Drains the next-tick queue completely, including callbacks enqueued by
//     callbacks running during the drain
//  2. Asks the backend to flush due timers and ready I/O, blocking only when
//     requested and the queue is still empty
//
// [Loop.Run] performs blocking ticks while the loop is live, i.e. [Loop.Stop]
// has not been called since Run started, and either the next-tick queue is
// non-empty or the backend reports pending work. [Loop.Tick] performs exactly
// one non-blocking tick, independent of Run and Stop.
//
// A next-tick callback that keeps re-enqueueing itself starves timers and I/O
// indefinitely. That is intended. See [WithStarvationThreshold] to be warned
// about it.
//
// # Thread Safety
//
// None. A Loop, its timers and its backend must only be used from a single
// goroutine, usually the one calling Run.
//
// # Usage
//
//	loop, err := tickloop.New(selectloop.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	loop.NextTick(func(l *tickloop.Loop) {
//	    fmt.Println("first")
//	})
//	loop.AddTimer(100*time.Millisecond, func(l *tickloop.Loop) {
//	    fmt.Println("after 100ms")
//	})
//
//	if err := loop.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// Panics raised by callbacks are not recovered: they unwind out of
// [Loop.Tick] or [Loop.Run], leaving any remaining next-tick callbacks queued
// for a later tick. Errors returned by [Backend.FlushEvents] are wrapped and
// returned, see [FlushError].
package tickloop
