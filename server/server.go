// Package server implements the accept loop and per-connection session
// that dispatch incoming requests/notifications against a shared
// dispatcher.Dispatcher (spec.md §4.6, §4.7).
package server

import (
	"context"
	"log"
	"net"
	"sync"
	"sync/atomic"

	"github.com/AlexCasual/packio/codec"
	"github.com/AlexCasual/packio/completion"
	"github.com/AlexCasual/packio/dispatcher"
)

// Server owns an accept loop over a single net.Listener and spawns a
// Session per accepted connection. Multiple Servers (e.g. one per
// listening address) may share the same *dispatcher.Dispatcher, the way
// packio's io_context-bound servers share a dispatcher across transports.
type Server struct {
	dispatcher      *dispatcher.Dispatcher
	logger          *log.Logger
	middlewares     []Middleware
	codecType       codec.Type
	writeQueueDepth int

	listener net.Listener
	wg       sync.WaitGroup
	closing  atomic.Bool
}

// New creates a Server dispatching against d.
func New(d *dispatcher.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher:      d,
		logger:          defaultLogger(),
		codecType:       codec.TypePacked,
		writeQueueDepth: 16,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Use appends a middleware to the chain wrapping every session's dispatch.
// Must be called before Serve.
func (s *Server) Use(mw Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// handler returns the fully composed HandlerFunc: every registered
// middleware wrapped around a terminal call into the shared dispatcher.
func (s *Server) handler() HandlerFunc {
	terminal := func(name string, params []any, reply *completion.Handler) {
		if !s.dispatcher.Dispatch(name, params, reply) {
			if reply != nil {
				reply.SetError("Unknown function")
			}
			// notifications with no matching method are silently dropped
		}
	}
	if len(s.middlewares) == 0 {
		return terminal
	}
	return Chain(s.middlewares...)(terminal)
}

// Serve listens on network/address and accepts connections until ctx is
// canceled or Close is called. Each connection is handled by its own
// Session running on its own goroutine.
func (s *Server) Serve(ctx context.Context, network, address string) error {
	ln, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	handler := s.handler()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.closing.Load() {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			sess := newSession(conn, s.codecType, handler, s.writeQueueDepth, s.logger)
			sess.run()
		}()
	}
}

// Addr returns the listener's address once Serve has started, or nil.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close stops accepting new connections. In-flight sessions are not
// interrupted; call Wait to block until they finish draining.
func (s *Server) Close() error {
	s.closing.Store(true)
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Wait blocks until every Session spawned by Serve has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}
