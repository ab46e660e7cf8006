// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package tickloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger              *logiface.Logger[logiface.Event]
	starvationRates     map[time.Duration]int
	starvationThreshold int
}

// --- Loop Options ---

// LoopOption configures a Loop instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the structured logger used by the loop.
// A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithStarvationThreshold enables a warning, logged once per drain pass,
// when a single drain of the next-tick queue has run n callbacks.
// The drain itself is never bounded. Zero (the default) disables the check.
func WithStarvationThreshold(n int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if n < 0 {
			return fmt.Errorf("%w: negative starvation threshold %d", ErrInvalidOption, n)
		}
		opts.starvationThreshold = n
		return nil
	}}
}

// WithStarvationLogRates overrides the rate limits applied to starvation
// warnings, see catrate.NewLimiter for the format. Defaults to one warning
// per second and ten per minute.
func WithStarvationLogRates(rates map[time.Duration]int) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if len(rates) == 0 {
			return fmt.Errorf("%w: empty starvation log rates", ErrInvalidOption)
		}
		for window, count := range rates {
			if window <= 0 || count <= 0 {
				return fmt.Errorf("%w: starvation log rate %v: %d", ErrInvalidOption, window, count)
			}
		}
		opts.starvationRates = rates
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{
		starvationRates: map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
