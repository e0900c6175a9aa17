// Package transport provides the byte-stream endpoints (TCP or Unix domain
// sockets) that framers, clients and server sessions read from and write
// to, plus the per-connection serialized write queue shared by both sides
// (spec.md §4.6's "write queue preserves FIFO order").
package transport

import (
	"net"
)

// Dial opens a client connection over network ("tcp" or "unix") to address.
func Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}

// Listen opens a listener over network ("tcp" or "unix") on address.
func Listen(network, address string) (net.Listener, error) {
	return net.Listen(network, address)
}

// writeRequest is a single queued write: the bytes to send and the channel
// the submitter is waiting on for the outcome.
type writeRequest struct {
	buf  []byte
	done chan error
}

// WriteQueue serializes writes to a single net.Conn so that replies and
// requests produced by different goroutines (handlers, timers, dispatch
// workers) never interleave on the wire, regardless of which goroutine
// produced them — the FIFO write-ordering guarantee of spec.md §4.6,
// adapted from the teacher's ConnPool channel-as-queue idiom
// (transport/pool.go) applied here to outbound frames instead of pooled
// connections.
type WriteQueue struct {
	conn net.Conn
	reqs chan writeRequest
	done chan struct{}
}

// NewWriteQueue starts the background goroutine that drains queued writes
// to conn in submission order. depth bounds how many writes may be queued
// before Submit blocks; 0 means unbuffered (Submit blocks until the
// previous write has started draining).
func NewWriteQueue(conn net.Conn, depth int) *WriteQueue {
	q := &WriteQueue{
		conn: conn,
		reqs: make(chan writeRequest, depth),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *WriteQueue) run() {
	for {
		select {
		case req, ok := <-q.reqs:
			if !ok {
				return
			}
			_, err := q.conn.Write(req.buf)
			req.done <- err
		case <-q.done:
			return
		}
	}
}

// Submit enqueues buf for writing and blocks until it has been written (or
// the queue has been closed, in which case it returns the closed-queue
// error). Safe to call concurrently from any number of goroutines.
func (q *WriteQueue) Submit(buf []byte) error {
	done := make(chan error, 1)
	select {
	case q.reqs <- writeRequest{buf: buf, done: done}:
	case <-q.done:
		return net.ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-q.done:
		return net.ErrClosed
	}
}

// Close stops the queue's background goroutine. Pending Submit calls
// return net.ErrClosed. It does not close the underlying connection.
func (q *WriteQueue) Close() {
	close(q.done)
}
