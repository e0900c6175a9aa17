package server

import (
	"log"
	"time"

	"github.com/AlexCasual/packio/completion"
	"golang.org/x/time/rate"
)

// HandlerFunc is the server-side handler signature middleware wraps: given
// the dispatched method name, its decoded params, and the reply capability
// (nil for notifications), produce a reply (or nothing, for notifications).
type HandlerFunc func(name string, params []any, reply *completion.Handler)

// Middleware wraps a HandlerFunc with cross-cutting behavior, composed the
// same way the teacher's onion-model Chain composes HandlerFuncs around a
// business handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, applied in the order given:
// Chain(A, B, C)(handler) runs A.before, B.before, C.before, handler,
// C.after, B.after, A.after.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// LoggingMiddleware logs the method name and duration of every dispatch,
// plus the error value if the call replied with one.
func LoggingMiddleware(logger *log.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(name string, params []any, reply *completion.Handler) {
			start := time.Now()
			if reply == nil {
				next(name, params, reply)
				logger.Printf("method=%s notification duration=%s", name, time.Since(start))
				return
			}

			done := make(chan struct{})
			var failed bool
			var failure any
			wrapped := completion.New(func(err error, errVal, result any) {
				failed, failure = err != nil, errVal
				close(done)
				// Re-fire the original reply with the same values; completion.Handler
				// only allows one real send, so this proxy exists solely to observe
				// the outcome for logging before forwarding it.
				if err != nil {
					reply.SetError(toString(errVal))
				} else {
					reply.Complete(result)
				}
			})
			next(name, params, wrapped)
			<-done
			if failed {
				logger.Printf("method=%s duration=%s error=%v", name, time.Since(start), failure)
				return
			}
			logger.Printf("method=%s duration=%s", name, time.Since(start))
		}
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return "Error during call"
}

// TimeoutMiddleware bounds how long a handler may run before the pending
// reply is resolved with a timeout error on the caller's behalf. The
// handler itself is not cancelled (Go has no generic goroutine
// cancellation); it keeps running and any Complete/SetError it performs
// after the timeout is forwarded to the already-answered reply and becomes a
// no-op, matching completion.Handler's one-shot contract.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(name string, params []any, reply *completion.Handler) {
			if reply == nil {
				next(name, params, reply)
				return
			}

			timer := time.AfterFunc(timeout, func() {
				reply.SetError("request timed out")
			})
			// The handler replies through a proxy so the timer stops when the
			// reply is sent, not when next returns: AddAsync and AddCoro
			// handlers return before they reply.
			proxy := completion.New(func(err error, errVal, result any) {
				timer.Stop()
				if err != nil {
					reply.SetError(toString(errVal))
				} else {
					reply.Complete(result)
				}
			})
			next(name, params, proxy)
		}
	}
}

// RateLimitMiddleware rejects dispatches once the token bucket (rate r,
// burst capacity burst) is exhausted, replying with "rate limit exceeded"
// instead of invoking the handler.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(name string, params []any, reply *completion.Handler) {
			if !limiter.Allow() {
				if reply != nil {
					reply.SetError("rate limit exceeded")
				}
				return
			}
			next(name, params, reply)
		}
	}
}
