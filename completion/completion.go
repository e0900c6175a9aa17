// Package completion implements the one-shot reply capability passed to
// asynchronous server handlers.
package completion

import (
	"runtime"
	"sync"
)

// defaultErrorMessage is sent when a Handler is garbage collected without
// ever being completed or errored — the Go analogue of packio's
// completion_handler destructor, which the original implements as RAII.
// Go has no destructors, so the same "drop = error" contract is enforced
// with a finalizer on the handler itself, per spec.md §9's suggested
// fallback ("a finalizer on an owning reference").
const defaultErrorMessage = "Call finished with no result"

// errorDuringCallMessage is sent by SetError when called with no explicit
// message.
const errorDuringCallMessage = "Error during call"

// Reply is invoked exactly once with either a result (err == nil) or an
// error value (err != nil, errVal holds the error payload to put on the
// wire).
type Reply func(err error, errVal, result any)

// Handler is a one-shot reply capability: the first of Complete/SetError to
// run wins, every later call and the eventual finalizer are no-ops.
// Handlers must not be copied after construction; pass *Handler by pointer
// or let it escape into a closure, the way a server handler would save it
// across a goroutine boundary.
type Handler struct {
	mu      sync.Mutex
	replied bool
	reply   Reply
}

// New wraps reply in a one-shot Handler and arms the drop-time default
// error finalizer.
func New(reply Reply) *Handler {
	h := &Handler{reply: reply}
	runtime.SetFinalizer(h, (*Handler).finalize)
	return h
}

// Complete replies with a successful result.
func (h *Handler) Complete(result any) {
	h.fire(nil, nil, result)
}

// SetError replies with an error. With no argument, the default message
// "Error during call" is used.
func (h *Handler) SetError(msg ...string) {
	m := errorDuringCallMessage
	if len(msg) > 0 {
		m = msg[0]
	}
	h.fire(errDuringCall{}, m, nil)
}

func (h *Handler) finalize() {
	h.fire(errDuringCall{}, defaultErrorMessage, nil)
}

func (h *Handler) fire(err error, errVal, result any) {
	h.mu.Lock()
	if h.replied {
		h.mu.Unlock()
		return
	}
	h.replied = true
	h.mu.Unlock()

	runtime.SetFinalizer(h, nil)
	h.reply(err, errVal, result)
}

// errDuringCall is a sentinel error type distinguishing "the handler
// replied with an error" from "the handler replied with a result" without
// allocating a new error value per call.
type errDuringCall struct{}

func (errDuringCall) Error() string { return errorDuringCallMessage }
