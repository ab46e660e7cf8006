package epollloop

import (
	"errors"
)

// Standard errors.
var (
	ErrClosed               = errors.New("epollloop: backend closed")
	ErrStreamAlreadyWatched = errors.New("epollloop: stream already watched")
	ErrStreamNotWatched     = errors.New("epollloop: stream not watched")
)
