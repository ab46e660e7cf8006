//go:build linux

package epollloop

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/joeycumines/go-tickloop"
	"github.com/joeycumines/go-tickloop/internal/timerqueue"
	"github.com/joeycumines/logiface"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// StreamCallback is called with the registered stream, once it is ready.
type StreamCallback func(stream any)

// registration stores the callbacks of a single descriptor.
type registration struct {
	stream any
	read   StreamCallback
	write  StreamCallback
}

func (r *registration) epollEvents() uint32 {
	var events uint32
	if r.read != nil {
		events |= unix.EPOLLIN
	}
	if r.write != nil {
		events |= unix.EPOLLOUT
	}
	return events
}

// Backend implements [tickloop.Backend] using epoll.
//
// It must only be used from the loop goroutine, and must be closed once it
// is no longer needed, see [Backend.Close].
type Backend struct {
	timers  *timerqueue.Queue
	logger  *logiface.Logger[logiface.Event]
	streams map[tickloop.StreamKey]*registration

	events []unix.EpollEvent

	idleTimeout time.Duration

	epfd   int
	closed bool
}

var (
	_ tickloop.Backend       = (*Backend)(nil)
	_ tickloop.TimerCanceler = (*Backend)(nil)
)

// New creates an epoll instance, returning an error if it could not be
// created, or an option is invalid.
func New(opts ...Option) (*Backend, error) {
	options, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epollloop: epoll_create1: %w", err)
	}

	return &Backend{
		timers:      timerqueue.New(options.clock),
		logger:      options.logger,
		streams:     make(map[tickloop.StreamKey]*registration),
		events:      make([]unix.EpollEvent, options.maxEvents),
		idleTimeout: options.idleTimeout,
		epfd:        epfd,
	}, nil
}

// Close deregisters every stream, and closes the epoll instance. Streams
// themselves are not closed. Calling Close more than once is a no-op.
func (b *Backend) Close() (err error) {
	if b.closed {
		return nil
	}
	b.closed = true

	for key := range b.streams {
		err = multierr.Append(err, b.ctl(unix.EPOLL_CTL_DEL, key, 0))
	}
	clear(b.streams)

	if e := unix.Close(b.epfd); e != nil {
		err = multierr.Append(err, fmt.Errorf("epollloop: close: %w", e))
	}

	b.logger.Debug().
		Err(err).
		Log(`backend closed`)

	return err
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
	return b.timers.Len() == 0 && len(b.streams) == 0
}

// Timers returns the number of active timers.
func (b *Backend) Timers() int {
	return b.timers.Len()
}

// Streams returns the number of registered streams.
func (b *Backend) Streams() int {
	return len(b.streams)
}

// AddReadStream calls cb each flush that stream is readable, or has hung up.
//
// The stream must be removed before it is closed. The kernel silently drops
// closed descriptors from the epoll set, but the registration remains, and
// keeps the loop running. RemoveStream still succeeds after a close.
func (b *Backend) AddReadStream(stream any, cb StreamCallback) error {
	return b.addStream(stream, cb, false)
}

// AddWriteStream calls cb each flush that stream is writable, or has an
// error condition. As with AddReadStream, remove the stream before closing it.
func (b *Backend) AddWriteStream(stream any, cb StreamCallback) error {
	return b.addStream(stream, cb, true)
}

// RemoveReadStream removes the read callback of stream.
func (b *Backend) RemoveReadStream(stream any) error {
	return b.removeStream(stream, true, false)
}

// RemoveWriteStream removes the write callback of stream.
func (b *Backend) RemoveWriteStream(stream any) error {
	return b.removeStream(stream, false, true)
}

// RemoveStream removes both callbacks of stream.
func (b *Backend) RemoveStream(stream any) error {
	return b.removeStream(stream, true, true)
}

func (b *Backend) addStream(stream any, cb StreamCallback, write bool) error {
	if b.closed {
		return ErrClosed
	}
	if cb == nil {
		return errors.New("epollloop: nil stream callback")
	}

	key, err := streamKey(stream)
	if err != nil {
		return err
	}

	reg, exists := b.streams[key]
	if !exists {
		reg = &registration{stream: stream}
	}

	if write {
		if reg.write != nil {
			return ErrStreamAlreadyWatched
		}
		reg.write = cb
	} else {
		if reg.read != nil {
			return ErrStreamAlreadyWatched
		}
		reg.read = cb
	}

	op := unix.EPOLL_CTL_MOD
	if !exists {
		op = unix.EPOLL_CTL_ADD
	}
	if err := b.ctl(op, key, reg.epollEvents()); err != nil {
		// rollback
		if write {
			reg.write = nil
		} else {
			reg.read = nil
		}
		return err
	}

	reg.stream = stream
	b.streams[key] = reg

	b.logger.Trace().
		Uint64(`fd`, uint64(key)).
		Bool(`write`, write).
		Log(`stream added`)

	return nil
}

func (b *Backend) removeStream(stream any, read, write bool) error {
	if b.closed {
		return ErrClosed
	}

	key, err := streamKey(stream)
	if err != nil {
		return err
	}

	reg, ok := b.streams[key]
	if !ok || (!read || reg.read == nil) && (!write || reg.write == nil) {
		return ErrStreamNotWatched
	}

	if read {
		reg.read = nil
	}
	if write {
		reg.write = nil
	}

	if events := reg.epollEvents(); events != 0 {
		err = b.ctl(unix.EPOLL_CTL_MOD, key, events)
	} else {
		delete(b.streams, key)
		err = b.ctl(unix.EPOLL_CTL_DEL, key, 0)
	}

	b.logger.Trace().
		Uint64(`fd`, uint64(key)).
		Bool(`read`, read).
		Bool(`write`, write).
		Err(err).
		Log(`stream removed`)

	return err
}

func (b *Backend) ctl(op int, key tickloop.StreamKey, events uint32) error {
	fd := int(key)
	var ev *unix.EpollEvent
	if op != unix.EPOLL_CTL_DEL {
		ev = &unix.EpollEvent{Events: events, Fd: int32(fd)}
	}
	err := unix.EpollCtl(b.epfd, op, fd, ev)
	if err == nil {
		return nil
	}
	if op == unix.EPOLL_CTL_DEL && (errors.Is(err, unix.ENOENT) || errors.Is(err, unix.EBADF)) {
		// already gone, e.g. closed before it was removed
		return nil
	}
	return fmt.Errorf("epollloop: epoll_ctl fd %d: %w", fd, err)
}

func streamKey(stream any) (tickloop.StreamKey, error) {
	key, err := tickloop.StreamKeyOf(stream)
	if err != nil {
		return 0, err
	}
	if key > math.MaxInt32 {
		return 0, fmt.Errorf("%w: descriptor %d out of range", tickloop.ErrUnsupportedStream, key)
	}
	return key, nil
}

// FlushEvents implements [tickloop.Backend].
//
// Ready streams are dispatched first, then due timers fire. Signal
// interruptions are not errors.
func (b *Backend) FlushEvents(blocking bool) error {
	if b.closed {
		return ErrClosed
	}

	timeout := b.pollTimeout(blocking)

	n, err := unix.EpollWait(b.epfd, b.events, timeout)
	if err != nil {
		if !errors.Is(err, unix.EINTR) {
			b.logger.Err().
				Err(err).
				Int(`timeout_ms`, timeout).
				Log(`epoll_wait failed`)
			return fmt.Errorf("epollloop: epoll_wait: %w", err)
		}
		n = 0
	}

	b.dispatch(n)

	fired := b.timers.FireDue()

	b.logger.Trace().
		Bool(`blocking`, blocking).
		Int(`timeout_ms`, timeout).
		Int(`ready`, n).
		Int(`fired`, fired).
		Log(`flushed events`)

	return nil
}

// pollTimeout returns the epoll_wait timeout in milliseconds, where -1
// means indefinitely.
func (b *Backend) pollTimeout(blocking bool) int {
	if !blocking {
		return 0
	}
	if d, ok := b.timers.Timeout(); ok {
		return durationToMillis(d)
	}
	switch {
	case len(b.streams) == 0:
		return 0
	case b.idleTimeout < 0:
		return -1
	default:
		return durationToMillis(b.idleTimeout)
	}
}

// durationToMillis rounds up, so that timers are never woken early.
func durationToMillis(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	if d > math.MaxInt32*time.Millisecond {
		return math.MaxInt32
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

func (b *Backend) dispatch(n int) {
	for i := range n {
		ev := b.events[i]
		key := tickloop.StreamKey(ev.Fd)

		// callbacks may change registrations, so each lookup is repeated
		if ev.Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			if reg := b.streams[key]; reg != nil && reg.read != nil {
				reg.read(reg.stream)
			}
		}
		if ev.Events&(unix.EPOLLOUT|unix.EPOLLERR) != 0 {
			if reg := b.streams[key]; reg != nil && reg.write != nil {
				reg.write(reg.stream)
			}
		}
	}
}
