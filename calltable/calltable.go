// Package calltable implements the client's map of outstanding request ids
// to their completion callable and timer, with the single atomic "claim"
// step that resolves the race between a response arriving and a timeout
// firing (spec.md §9: "Timer vs completion race").
package calltable

import (
	"sync"
	"time"
)

// Status is the outcome a completion callback is invoked with.
type Status int

const (
	// Success: the call returned a result.
	Success Status = iota
	// CallError: the call returned an error (unknown function, bad
	// arguments, handler-reported failure).
	CallError
	// Timeout: the per-call timer fired before a response arrived.
	Timeout
	// WriteError: the request could not be written to the transport.
	WriteError
)

func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case CallError:
		return "CallError"
	case Timeout:
		return "Timeout"
	case WriteError:
		return "WriteError"
	default:
		return "Unknown"
	}
}

// Completion is invoked exactly once when an entry resolves.
type Completion func(status Status, value any)

// entry is a call-table value: a one-shot completion and the timer racing
// against a response for the right to consume it.
type entry struct {
	completion Completion
	timer      *time.Timer
}

// Table is the concurrency-safe map of id -> entry. One mutex guards
// insert/remove/claim; it is never held while invoking a Completion.
type Table struct {
	mu      sync.Mutex
	entries map[uint32]*entry
}

// New returns an empty call table.
func New() *Table {
	return &Table{entries: make(map[uint32]*entry)}
}

// Insert registers a pending call. If timeout > 0, a timer is armed; should
// it fire before Resolve claims the entry, completion is invoked
// with (Timeout, a string describing the timeout).
func (t *Table) Insert(id uint32, timeout time.Duration, completion Completion) {
	e := &entry{completion: completion}

	t.mu.Lock()
	t.entries[id] = e
	if timeout > 0 {
		e.timer = time.AfterFunc(timeout, func() { t.fireTimeout(id) })
	}
	t.mu.Unlock()
}

func (t *Table) fireTimeout(id uint32) {
	e := t.claim(id)
	if e == nil {
		return // already resolved by a response or a write failure
	}
	e.completion(Timeout, "Timeout")
}

// Resolve completes the entry for id with the given status/value. It is a
// no-op if the entry does not exist (unknown or already-resolved ids are
// silently dropped, per spec.md §4.5) or has already been claimed by its
// timer.
func (t *Table) Resolve(id uint32, status Status, value any) {
	e := t.claim(id)
	if e == nil {
		return
	}
	e.completion(status, value)
}

// claim removes the entry for id from the table and stops its timer,
// returning nil if no such entry exists. This is the single atomic step
// that arbitrates the timer-vs-response race: whichever caller removes the
// entry first wins, the other finds it already gone.
func (t *Table) claim(id uint32) *entry {
	t.mu.Lock()
	e, ok := t.entries[id]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	delete(t.entries, id)
	t.mu.Unlock()

	if e.timer != nil {
		e.timer.Stop()
	}
	return e
}

// Len reports the number of currently outstanding entries. Intended for
// tests and diagnostics.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
