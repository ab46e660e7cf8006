// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package selectloop

import (
	"time"

	"github.com/joeycumines/go-tickloop/internal/timerqueue"
	"github.com/joeycumines/logiface"
)

// Clock is the time source used for timer deadlines.
type Clock = timerqueue.Clock

// backendOptions holds configuration options for Backend creation.
type backendOptions struct {
	clock       Clock
	logger      *logiface.Logger[logiface.Event]
	idleTimeout time.Duration
}

// Option configures a Backend instance.
type Option interface {
	applyBackend(*backendOptions)
}

// optionImpl implements Option.
type optionImpl struct {
	applyBackendFunc func(*backendOptions)
}

func (o *optionImpl) applyBackend(opts *backendOptions) {
	o.applyBackendFunc(opts)
}

// WithClock sets the clock used to compute timer deadlines. Waiting always
// uses real time.
func WithClock(clock Clock) Option {
	return &optionImpl{func(opts *backendOptions) {
		opts.clock = clock
	}}
}

// WithLogger sets the structured logger used by the backend.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *backendOptions) {
		opts.logger = logger
	}}
}

// WithIdleTimeout bounds blocking flushes that have watchers but no timers.
// Negative values (the default) wait until a watched channel is ready.
func WithIdleTimeout(d time.Duration) Option {
	return &optionImpl{func(opts *backendOptions) {
		opts.idleTimeout = d
	}}
}

// resolveOptions applies Option instances to backendOptions.
func resolveOptions(opts []Option) *backendOptions {
	cfg := &backendOptions{
		clock:       timerqueue.SystemClock,
		idleTimeout: -1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyBackend(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = timerqueue.SystemClock
	}
	return cfg
}
