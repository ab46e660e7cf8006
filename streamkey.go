package tickloop

import (
	"fmt"
	"syscall"
)

// StreamKey is the identity of an open I/O resource, for use by backends
// that index watchers per resource. Keys are unique among resources that
// are open at the same time, and may be reused once a resource is closed.
type StreamKey uintptr

// StreamKeyOf returns the key of stream, which may be:
//   - a non-negative int, int32 or uintptr file descriptor
//   - a [syscall.Conn], e.g. *os.File or *net.TCPConn
//   - any value with an Fd() uintptr method
//
// [syscall.Conn] is preferred over Fd, because (*os.File).Fd switches the
// file to blocking mode.
func StreamKeyOf(stream any) (StreamKey, error) {
	switch v := stream.(type) {
	case int:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative descriptor %d", ErrUnsupportedStream, v)
		}
		return StreamKey(v), nil
	case int32:
		if v < 0 {
			return 0, fmt.Errorf("%w: negative descriptor %d", ErrUnsupportedStream, v)
		}
		return StreamKey(v), nil
	case uintptr:
		return StreamKey(v), nil
	case StreamKey:
		return v, nil
	case syscall.Conn:
		raw, err := v.SyscallConn()
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrUnsupportedStream, err)
		}
		var fd uintptr
		if err := raw.Control(func(d uintptr) { fd = d }); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrUnsupportedStream, err)
		}
		return StreamKey(fd), nil
	case interface{ Fd() uintptr }:
		return StreamKey(v.Fd()), nil
	case nil:
		return 0, fmt.Errorf("%w: nil", ErrUnsupportedStream)
	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedStream, stream)
	}
}
