package server

import (
	"log"
	"net"

	"github.com/AlexCasual/packio/codec"
	"github.com/AlexCasual/packio/completion"
	"github.com/AlexCasual/packio/framer"
	"github.com/AlexCasual/packio/message"
	"github.com/AlexCasual/packio/transport"
)

// session is a single connection's read loop plus serialized write path
// (spec.md §4.6): reads are sequential (one framer, one goroutine), but
// each parsed message is dispatched on its own goroutine so a slow handler
// never blocks the next message's framing, matching the teacher's
// handleConn/handleRequest split (server/server.go).
type session struct {
	conn    net.Conn
	codec   codec.Codec
	framer  framer.Framer
	handler HandlerFunc
	writer  *transport.WriteQueue
	logger  *log.Logger
}

func newSession(conn net.Conn, t codec.Type, handler HandlerFunc, writeQueueDepth int, logger *log.Logger) *session {
	var f framer.Framer
	if t == codec.TypeJSON {
		f = framer.NewJSONFramer()
	} else {
		f = framer.NewPackedFramer()
	}
	return &session{
		conn:    conn,
		codec:   codec.Get(t),
		framer:  f,
		handler: handler,
		writer:  transport.NewWriteQueue(conn, writeQueueDepth),
		logger:  logger,
	}
}

const readChunk = 4096

func (s *session) run() {
	defer s.conn.Close()
	defer s.writer.Close()

	for {
		for {
			buf, ok, err := s.framer.Next()
			if err != nil {
				return // framing error: fatal to the session
			}
			if !ok {
				break
			}
			msg, err := s.codec.Decode(buf)
			if err != nil {
				return // decode error: fatal to the session
			}
			go s.dispatch(msg)
		}

		dst := s.framer.Reserve(readChunk)
		n, err := s.conn.Read(dst)
		if n > 0 {
			s.framer.Consumed(n)
		}
		if err != nil {
			return
		}
	}
}

func (s *session) dispatch(msg *message.Message) {
	switch msg.Kind {
	case message.KindRequest:
		req := msg.Request
		reply := completion.New(func(err error, errVal, result any) {
			var buf []byte
			var encErr error
			if err != nil {
				buf, encErr = s.codec.EncodeResponse(req.ID, errVal, nil)
			} else {
				buf, encErr = s.codec.EncodeResponse(req.ID, nil, result)
			}
			if encErr != nil {
				return
			}
			_ = s.writer.Submit(buf)
		})
		s.handler(req.Method, req.Params, reply)

	case message.KindNotification:
		n := msg.Notification
		s.handler(n.Method, n.Params, nil)

	default:
		// unreachable: codecs only ever produce request/response/notification
	}
}
