// Package client implements the RPC client core (spec.md §4.5): a single
// transport, a framer reading its incoming bytes, a call table routing
// responses back to their callers, and an atomic id counter.
package client

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AlexCasual/packio/calltable"
	"github.com/AlexCasual/packio/codec"
	"github.com/AlexCasual/packio/framer"
	"github.com/AlexCasual/packio/message"
	"github.com/AlexCasual/packio/transport"
)

// Client owns one connection and multiplexes concurrent calls/notifications
// over it. The zero value is not usable; construct with Dial or New.
type Client struct {
	conn    net.Conn
	codec   codec.Codec
	framer  framer.Framer
	writer  *transport.WriteQueue
	calls   *calltable.Table
	nextID  uint32
	timeout time.Duration

	writeQueueDepth int

	readOnce sync.Once
	readErr  atomic.Value // error, set once the read loop exits
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithTimeout sets the default per-call timeout. Zero (the default) means
// calls never time out on their own and rely solely on a response arriving;
// closing the connection does not resolve them (spec.md §4.5's "open
// question").
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithWriteQueueDepth sets how many outbound frames may be queued before
// Call/Notify blocks on submission. Defaults to 16.
func WithWriteQueueDepth(n int) Option {
	return func(c *Client) { c.writeQueueDepth = n }
}

// Dial opens a connection over network ("tcp" or "unix") to address and
// wraps it in a Client speaking the given wire dialect.
func Dial(network, address string, dialect codec.Type, opts ...Option) (*Client, error) {
	conn, err := transport.Dial(network, address)
	if err != nil {
		return nil, err
	}
	return New(conn, dialect, opts...), nil
}

// New wraps an already-established connection in a Client.
func New(conn net.Conn, dialect codec.Type, opts ...Option) *Client {
	var f framer.Framer
	if dialect == codec.TypeJSON {
		f = framer.NewJSONFramer()
	} else {
		f = framer.NewPackedFramer()
	}

	c := &Client{
		conn:            conn,
		codec:           codec.Get(dialect),
		framer:          f,
		calls:           calltable.New(),
		writeQueueDepth: 16,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.writer = transport.NewWriteQueue(conn, c.writeQueueDepth)
	return c
}

// Close cancels the read loop and closes the underlying connection.
func (c *Client) Close() error {
	c.writer.Close()
	return c.conn.Close()
}

// maybeStartReading launches the single background read loop the first
// time a call or notification needs it, mirroring "start reading if not
// already" in spec.md §4.5.
func (c *Client) maybeStartReading() {
	c.readOnce.Do(func() {
		go c.readLoop()
	})
}

const readChunk = 4096

func (c *Client) readLoop() {
	for {
		for {
			buf, ok, err := c.framer.Next()
			if err != nil {
				c.readErr.Store(err)
				return
			}
			if !ok {
				break
			}
			msg, err := c.codec.Decode(buf)
			if err != nil {
				c.readErr.Store(err)
				return
			}
			c.route(msg)
		}

		dst := c.framer.Reserve(readChunk)
		n, err := c.conn.Read(dst)
		if n > 0 {
			c.framer.Consumed(n)
		}
		if err != nil {
			c.readErr.Store(err)
			return
		}
	}
}

func (c *Client) route(msg *message.Message) {
	if msg.Kind != message.KindResponse {
		return // a client only ever receives responses
	}
	resp := msg.Response
	if resp.Err != nil {
		c.calls.Resolve(resp.ID, calltable.CallError, resp.Err)
	} else {
		c.calls.Resolve(resp.ID, calltable.Success, resp.Result)
	}
}

// Notify sends a fire-and-forget notification; onWriteDone (if non-nil) is
// invoked with the outcome of the write itself, not of any remote
// processing (notifications never receive a reply).
func (c *Client) Notify(name string, params []any, onWriteDone func(error)) {
	buf, err := c.codec.EncodeNotification(name, params)
	if err != nil {
		if onWriteDone != nil {
			onWriteDone(err)
		}
		return
	}
	c.maybeStartReading()
	err = c.writer.Submit(buf)
	if onWriteDone != nil {
		onWriteDone(err)
	}
}

// Call sends a request and invokes onComplete exactly once with the
// outcome: (Success, result), (CallError, errVal), (Timeout, message), or
// (WriteError, message). Uses the client's default timeout (set via
// WithTimeout at construction).
func (c *Client) Call(name string, params []any, onComplete calltable.Completion) {
	c.callWithTimeout(name, params, c.timeout, onComplete)
}

// callWithTimeout is Call with an explicit per-call timeout, letting
// CallSync honor a caller-supplied timeout without mutating any
// client-wide state (c.timeout is set once at construction and never
// written again, so it's safe to read concurrently from any number of
// goroutines calling Call/CallSync on the same Client).
func (c *Client) callWithTimeout(name string, params []any, timeout time.Duration, onComplete calltable.Completion) {
	id := atomic.AddUint32(&c.nextID, 1)

	buf, err := c.codec.EncodeRequest(id, name, params)
	if err != nil {
		onComplete(calltable.CallError, err.Error())
		return
	}

	c.calls.Insert(id, timeout, onComplete)
	c.maybeStartReading()

	if err := c.writer.Submit(buf); err != nil {
		c.calls.Resolve(id, calltable.WriteError, err.Error())
	}
}

// CallSync is a synchronous convenience wrapper around Call for
// request/response styles that don't need the callback API directly; it
// blocks until the call resolves or the given timeout elapses. A timeout of
// 0 falls back to the client's default (set via WithTimeout). Safe to call
// concurrently with other Call/CallSync/Notify calls: unlike c.timeout,
// which is set once at construction, the per-call timeout here never
// touches shared client state.
func (c *Client) CallSync(name string, params []any, timeout time.Duration) (any, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}

	done := make(chan struct{})
	var status calltable.Status
	var value any
	c.callWithTimeout(name, params, timeout, func(s calltable.Status, v any) {
		status, value = s, v
		close(done)
	})
	<-done

	switch status {
	case calltable.Success:
		return value, nil
	case calltable.CallError:
		return nil, fmt.Errorf("call error: %v", value)
	case calltable.Timeout:
		return nil, fmt.Errorf("call timeout: %v", value)
	case calltable.WriteError:
		return nil, fmt.Errorf("write error: %v", value)
	default:
		return nil, fmt.Errorf("unknown call status %v", status)
	}
}

// NotifySync blocks until the notification has been written (or failed to
// write); timeout bounds how long it waits for the write itself, not for
// any remote effect.
func (c *Client) NotifySync(name string, params []any, timeout time.Duration) error {
	done := make(chan error, 1)
	c.Notify(name, params, func(err error) { done <- err })

	if timeout <= 0 {
		return <-done
	}
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("notify: write did not complete within %s", timeout)
	}
}
