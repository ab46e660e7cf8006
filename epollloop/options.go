// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package epollloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-tickloop"
	"github.com/joeycumines/go-tickloop/internal/timerqueue"
	"github.com/joeycumines/logiface"
)

// Clock is the time source used for timer deadlines.
type Clock = timerqueue.Clock

const defaultMaxEvents = 256

// backendOptions holds configuration options for Backend creation.
type backendOptions struct {
	clock       Clock
	logger      *logiface.Logger[logiface.Event]
	idleTimeout time.Duration
	maxEvents   int
}

// Option configures a Backend instance.
type Option interface {
	applyBackend(*backendOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyBackendFunc func(*backendOptions) error
}

func (o *optionImpl) applyBackend(opts *backendOptions) error {
	return o.applyBackendFunc(opts)
}

// WithClock sets the clock used to compute timer deadlines. Waiting always
// uses real time.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *backendOptions) error {
		opts.clock = clock
		return nil
	}}
}

// WithLogger sets the structured logger used by the backend.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *backendOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithIdleTimeout bounds blocking flushes that have streams but no timers.
// It is rounded up to whole milliseconds. Negative values (the default)
// wait until a stream is ready.
func WithIdleTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *backendOptions) error {
		opts.idleTimeout = d
		return nil
	}}
}

// WithMaxEvents sets the number of readiness events retrieved by a single
// flush. Defaults to 256.
func WithMaxEvents(n int) Option {
	return &optionImpl{func(opts *backendOptions) error {
		if n <= 0 {
			return fmt.Errorf("%w: max events %d", tickloop.ErrInvalidOption, n)
		}
		opts.maxEvents = n
		return nil
	}}
}

// resolveOptions applies Option instances to backendOptions.
func resolveOptions(opts []Option) (*backendOptions, error) {
	cfg := &backendOptions{
		idleTimeout: -1,
		maxEvents:   defaultMaxEvents,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBackend(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = timerqueue.SystemClock
	}
	return cfg, nil
}
