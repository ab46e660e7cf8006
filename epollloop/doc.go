// Package epollloop is a Linux tickloop backend, multiplexing timers and
// file descriptor readiness using epoll.
//
// Streams are anything [tickloop.StreamKeyOf] accepts, e.g. an *os.File, a
// net.Conn, or a raw descriptor. Callbacks are level triggered: a read
// callback that does not consume the available data will be called again on
// the next flush.
//
// Closing a descriptor while it is registered is undefined, remove it first.
package epollloop
