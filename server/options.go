package server

import (
	"log"
	"os"
	"time"

	"github.com/AlexCasual/packio/codec"
)

// Option configures a Server at construction time, grounded in the
// teacher's constructor-parameter style generalized into the functional
// options pattern idiomatic Go servers use instead.
type Option func(*Server)

// WithLogger sets the logger used by LoggingMiddleware and session-level
// diagnostics. Defaults to a logger writing to os.Stderr with log.LstdFlags.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLogging enables per-dispatch duration logging.
func WithLogging() Option {
	return func(s *Server) { s.middlewares = append(s.middlewares, LoggingMiddleware(s.logger)) }
}

// WithRateLimit enables a token-bucket rate limit (rate r per second, burst
// capacity burst) shared across every connection's dispatches.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) { s.middlewares = append(s.middlewares, RateLimitMiddleware(r, burst)) }
}

// WithTimeout bounds how long a single dispatch may run before its pending
// reply is resolved with a timeout error.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.middlewares = append(s.middlewares, TimeoutMiddleware(d)) }
}

// WithCodec selects the wire dialect sessions accepted by this Server
// decode/encode with. Defaults to codec.TypePacked.
func WithCodec(t codec.Type) Option {
	return func(s *Server) { s.codecType = t }
}

// WithWriteQueueDepth sets how many outbound frames may be queued per
// session before Submit blocks. Defaults to 16.
func WithWriteQueueDepth(n int) Option {
	return func(s *Server) { s.writeQueueDepth = n }
}

func defaultLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}
