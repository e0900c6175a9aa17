// Package dispatcher implements the server's method name -> handler
// registry (spec.md §4.3) and the reflective adapters that decode wire
// arguments into a handler's declared Go parameter types.
package dispatcher

import (
	"sync"

	"github.com/AlexCasual/packio/completion"
)

// Func is the raw handler signature every registered function is wrapped
// into before insertion into the registry: given the decoded params and a
// completion handler (nil for notifications), produce a reply by invoking
// the handler exactly once. Handlers built by Add/AddAsync/AddCoro never
// see this signature directly; it exists so the registry itself stays
// ignorant of sync/async/coro distinctions.
type Func func(params []any, reply *completion.Handler)

// Dispatcher is the concurrency-safe name -> handler map shared by every
// Session using it; a single Dispatcher can and should be handed to
// multiple Servers/Listeners (spec.md §4.3, §4.6).
type Dispatcher struct {
	mu  sync.RWMutex
	fns map[string]Func
}

// New returns an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{fns: make(map[string]Func)}
}

// insert registers fn under name, returning false if the name is already
// taken (matching add/add_async/add_coro's "returns false on clash"
// contract, not overwriting the pre-existing handler).
func (d *Dispatcher) insert(name string, fn Func) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.fns[name]; exists {
		return false
	}
	d.fns[name] = fn
	return true
}

// Add registers a synchronous handler built by reflecting over fct's
// signature: fct must be a func taking zero or more typed parameters and
// returning either nothing, a single value, or (value, error). Argument
// count and type mismatches are reported to the caller as
// "Incompatible arguments" rather than panicking.
func (d *Dispatcher) Add(name string, fct any) bool {
	return d.insert(name, wrapSync(fct))
}

// AddAsync registers a handler that receives a *completion.Handler as its
// first argument and is responsible for eventually calling Complete or
// SetError on it itself, possibly from another goroutine.
func (d *Dispatcher) AddAsync(name string, fct any) bool {
	return d.insert(name, wrapAsync(fct))
}

// AddCoro registers a handler that runs as its own goroutine, receiving no
// completion handler: its single return value (or returned error) is
// reported automatically once the goroutine finishes, the way a coroutine
// handler's lazily-awaited result is wired into a reply in the original
// design (spec.md §4.3, "lazy, resumable computation"). The handler runs on
// its own goroutine rather than blocking the calling Session's dispatch
// loop, the Go substitute for "executed on the given executor".
func (d *Dispatcher) AddCoro(name string, fct any) bool {
	return d.insert(name, wrapCoro(fct))
}

// Remove deletes the handler registered under name, reporting whether one
// existed.
func (d *Dispatcher) Remove(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.fns[name]; !ok {
		return false
	}
	delete(d.fns, name)
	return true
}

// Has reports whether name is currently registered.
func (d *Dispatcher) Has(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.fns[name]
	return ok
}

// Clear removes every registered handler, returning the count removed.
func (d *Dispatcher) Clear() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.fns)
	d.fns = make(map[string]Func)
	return n
}

// Known returns a snapshot of the currently registered method names.
func (d *Dispatcher) Known() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.fns))
	for name := range d.fns {
		names = append(names, name)
	}
	return names
}

// Dispatch looks up name and, on a hit, invokes its handler with params and
// reply. On miss it returns false and does nothing further; the caller
// (Session) is responsible for the "Unknown function" reply or silent drop
// depending on whether this was a request or a notification.
func (d *Dispatcher) Dispatch(name string, params []any, reply *completion.Handler) bool {
	d.mu.RLock()
	fn, ok := d.fns[name]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	fn(params, reply)
	return true
}
