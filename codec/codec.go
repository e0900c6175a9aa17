// Package codec encodes and decodes single RPC messages against one of the
// two wire dialects spoken by this runtime: a packed-binary dialect
// (MessagePack-RPC) and a JSON dialect (JSON-RPC 2.0-compatible).
//
// Both implementations satisfy the same Codec interface; everything above
// this package (the framer, the client, the server session) is dialect
// agnostic.
package codec

import (
	"errors"

	"github.com/AlexCasual/packio/message"
)

// ErrBadMessage is returned by Decode on any structural mismatch: wrong
// array arity, wrong tag, missing field, wrong jsonrpc version. It is always
// fatal to the session that received it.
var ErrBadMessage = errors.New("codec: bad message")

// Type identifies which dialect a Codec speaks.
type Type byte

const (
	TypeJSON Type = iota
	TypePacked
)

func (t Type) String() string {
	if t == TypeJSON {
		return "json"
	}
	return "packed"
}

// Codec encodes and decodes one RPC message at a time against its dialect.
type Codec interface {
	// EncodeRequest serializes a Request envelope.
	EncodeRequest(id uint32, method string, params []any) ([]byte, error)
	// EncodeNotification serializes a Notification envelope.
	EncodeNotification(method string, params []any) ([]byte, error)
	// EncodeResponse serializes a Response envelope. Exactly one of
	// errVal/result should be non-nil; pass the other as nil.
	EncodeResponse(id uint32, errVal, result any) ([]byte, error)
	// Decode parses one complete message buffer (as produced by a Framer)
	// into a message.Message. It returns ErrBadMessage on structural
	// mismatch.
	Decode(buf []byte) (*message.Message, error)
	// Type reports which dialect this Codec speaks.
	Type() Type
}

// Get returns the Codec implementation for the given dialect.
func Get(t Type) Codec {
	if t == TypePacked {
		return &PackedCodec{}
	}
	return &JSONCodec{}
}
