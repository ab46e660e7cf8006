// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package timerqueue implements deadline ordered storage of tickloop timers,
// for use by backends.
package timerqueue

import (
	"container/heap"
	"time"

	"github.com/joeycumines/go-tickloop"
)

// Clock is the time source used to compute deadlines.
type Clock interface {
	Now() time.Time
}

// ClockFunc implements Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock uses time.Now, which includes a monotonic reading.
var SystemClock Clock = ClockFunc(time.Now)

// entry is a scheduled timer
type entry struct {
	when  time.Time
	timer *tickloop.Timer
	seq   uint64
	index int
}

// entryHeap is a min-heap of entries, ordered by deadline, then insertion.
type entryHeap []*entry

// Implement heap.Interface for entryHeap
func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue stores timers until they are due. It is not safe for concurrent use.
type Queue struct {
	clock   Clock
	entries map[*tickloop.Timer]*entry
	heap    entryHeap
	seq     uint64
}

// New returns an empty queue, using clock for deadlines (nil means
// SystemClock).
func New(clock Clock) *Queue {
	if clock == nil {
		clock = SystemClock
	}
	return &Queue{
		clock:   clock,
		entries: make(map[*tickloop.Timer]*entry),
	}
}

// Clock returns the time source of the queue.
func (x *Queue) Clock() Clock {
	return x.clock
}

// Len returns the number of stored timers.
func (x *Queue) Len() int {
	return len(x.heap)
}

// Schedule stores t, to fire its interval from now. Inactive timers, and
// timers already stored, are ignored.
func (x *Queue) Schedule(t *tickloop.Timer) {
	if !t.Active() {
		return
	}
	if _, ok := x.entries[t]; ok {
		return
	}
	x.push(t, x.clock.Now().Add(t.Interval()))
}

func (x *Queue) push(t *tickloop.Timer, when time.Time) {
	x.seq++
	e := &entry{when: when, timer: t, seq: x.seq}
	x.entries[t] = e
	heap.Push(&x.heap, e)
}

// Cancel removes t, if it is stored.
func (x *Queue) Cancel(t *tickloop.Timer) {
	e, ok := x.entries[t]
	if !ok {
		return
	}
	delete(x.entries, t)
	if e.index >= 0 {
		heap.Remove(&x.heap, e.index)
	}
}

// NextDeadline returns the earliest deadline, if there is one.
func (x *Queue) NextDeadline() (time.Time, bool) {
	if len(x.heap) == 0 {
		return time.Time{}, false
	}
	return x.heap[0].when, true
}

// Timeout returns the duration until the earliest deadline, clamped to
// zero, if there is one.
func (x *Queue) Timeout() (time.Duration, bool) {
	when, ok := x.NextDeadline()
	if !ok {
		return 0, false
	}
	d := when.Sub(x.clock.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// FireDue fires every timer due as of a single reading of the clock,
// returning the number of callbacks started.
//
// Due timers are removed before any of them fire, so timers scheduled by
// callbacks (and re-armed periodic timers) wait for a later call. Periodic
// timers are re-armed at the reading plus their interval, just before their
// callback runs, and are removed again if the callback cancels them. If a
// callback panics, the due timers that have not been visited are restored.
func (x *Queue) FireDue() (fired int) {
	now := x.clock.Now()

	var due []*entry
	for len(x.heap) != 0 && !x.heap[0].when.After(now) {
		e := heap.Pop(&x.heap).(*entry)
		delete(x.entries, e.timer)
		due = append(due, e)
	}

	var next int
	defer func() {
		for _, e := range due[next:] {
			x.restore(e)
		}
	}()

	for next < len(due) {
		t := due[next].timer
		next++
		if t.Periodic() && t.Active() {
			if _, ok := x.entries[t]; !ok {
				x.push(t, now.Add(t.Interval()))
			}
		}
		if t.Fire() {
			fired++
		}
	}

	return fired
}

// restore puts back an entry removed by FireDue, unless the timer was
// cancelled or scheduled again in the meantime.
func (x *Queue) restore(e *entry) {
	if !e.timer.Active() {
		return
	}
	if _, ok := x.entries[e.timer]; ok {
		return
	}
	x.entries[e.timer] = e
	heap.Push(&x.heap, e)
}
